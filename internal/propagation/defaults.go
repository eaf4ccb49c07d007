package propagation

import (
	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
	"github.com/custodia-labs/idsync/internal/propagation/jsonl"
)

// RegisterDefaults registers all built-in targets with the registry.
func RegisterDefaults(r *Registry) {
	r.Register(jsonl.Name, buildJSONL)
	r.Register(LogTargetName, buildLog)
}

// buildJSONL creates a JSON-lines file target.
// Supported config keys:
//   - path (string): Output file, required
//   - fsync (bool): Sync the file after every task
func buildJSONL(resource domain.Resource) (driven.PropagationTarget, error) {
	var opts []jsonl.Option
	if resource.PropagationConfig["fsync"] == "true" {
		opts = append(opts, jsonl.WithFsync())
	}
	return jsonl.New(resource.PropagationConfig["path"], opts...)
}

func buildLog(resource domain.Resource) (driven.PropagationTarget, error) {
	return NewLogTarget(resource.Name), nil
}
