package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

// ConfigFileName is the configuration file inside the config directory.
const ConfigFileName = "idsync.toml"

// Config is the on-disk configuration of idsync.
type Config struct {
	// DataDir holds the SQLite database. Defaults to <config dir>/data.
	DataDir string `toml:"data_dir,omitempty"`

	// Concurrency bounds how many resources sync at once.
	Concurrency int `toml:"concurrency,omitempty"`

	Workflow    WorkflowConfig    `toml:"workflow"`
	Propagation PropagationConfig `toml:"propagation"`
	Scheduler   SchedulerConfig   `toml:"scheduler"`

	Derived   []DerivedConfig  `toml:"derived,omitempty"`
	Resources []ResourceConfig `toml:"resources,omitempty"`
}

// WorkflowConfig selects how identity changes are applied.
type WorkflowConfig struct {
	// Kind is "direct" or "approval".
	Kind string `toml:"kind"`
}

// PropagationConfig throttles pushes to external resources.
type PropagationConfig struct {
	// Rate is the maximum pushes per second. Zero disables throttling.
	Rate  float64 `toml:"rate"`
	Burst int     `toml:"burst"`
}

// SchedulerConfig configures background runs. Intervals are Go durations;
// "0" turns the task off.
type SchedulerConfig struct {
	Enabled           bool   `toml:"enabled"`
	SyncInterval      string `toml:"sync_interval,omitempty"`
	ReconcileInterval string `toml:"reconcile_interval,omitempty"`
	PruneInterval     string `toml:"prune_interval,omitempty"`
	HistoryKeep       int    `toml:"history_keep,omitempty"`
}

// DerivedConfig declares a derived attribute.
type DerivedConfig struct {
	Name       string `toml:"name"`
	Expression string `toml:"expression"`
}

// ResourceConfig declares one external resource.
type ResourceConfig struct {
	Name              string            `toml:"name"`
	Connector         string            `toml:"connector"`
	ObjectClass       string            `toml:"object_class,omitempty"`
	ConnectorConfig   map[string]string `toml:"connector_config,omitempty"`
	AccountID         *AccountIDConfig  `toml:"account_id,omitempty"`
	SyncPolicy        *SyncPolicyConfig `toml:"sync_policy,omitempty"`
	Mapping           []MappingConfig   `toml:"mapping,omitempty"`
	PerformCreate     *bool             `toml:"perform_create,omitempty"`
	PerformUpdate     *bool             `toml:"perform_update,omitempty"`
	PerformDelete     *bool             `toml:"perform_delete,omitempty"`
	SyncStatus        bool              `toml:"sync_status,omitempty"`
	TraceLevel        string            `toml:"trace_level,omitempty"`
	DefaultResources  []string          `toml:"default_resources,omitempty"`
	PropagationTarget string            `toml:"propagation_target,omitempty"`
	PropagationConfig map[string]string `toml:"propagation_config,omitempty"`

	// SyncInterval overrides the scheduler's sync interval for this resource.
	SyncInterval string `toml:"sync_interval,omitempty"`
}

// AccountIDConfig is the account-id mapping of a resource.
type AccountIDConfig struct {
	Kind      string `toml:"kind"`
	Attribute string `toml:"attribute,omitempty"`
}

// SyncPolicyConfig is the matching policy of a resource.
type SyncPolicyConfig struct {
	ConflictResolution  string   `toml:"conflict_resolution,omitempty"`
	AltSearchAttributes []string `toml:"alt_search_attributes,omitempty"`
}

// MappingConfig maps one external attribute name to an identity attribute.
type MappingConfig struct {
	External string `toml:"external"`
	Internal string `toml:"internal"`
}

// DefaultConfigDir returns ~/.idsync.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".idsync"), nil
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Concurrency: 4,
		Workflow:    WorkflowConfig{Kind: "direct"},
		Propagation: PropagationConfig{Rate: 10, Burst: 5},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			SyncInterval:  "15m",
			PruneInterval: "24h",
			HistoryKeep:   domain.DefaultHistoryKeep,
		},
	}
}

// Load reads the configuration file at path. A missing file yields the
// default configuration. Relative data directories are resolved against
// the file's directory.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.DataDir = filepath.Join(filepath.Dir(path), "data")
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	switch {
	case cfg.DataDir == "":
		cfg.DataDir = filepath.Join(filepath.Dir(path), "data")
	case strings.HasPrefix(cfg.DataDir, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, cfg.DataDir[2:])
	case !filepath.IsAbs(cfg.DataDir):
		cfg.DataDir = filepath.Join(filepath.Dir(path), cfg.DataDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path with restricted permissions.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks every resource and derived schema.
func (c *Config) Validate() error {
	var errs []error
	seen := make(map[string]struct{}, len(c.Resources))
	for i := range c.Resources {
		res, err := c.Resources[i].ToDomain()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, ok := seen[res.Name]; ok {
			errs = append(errs, fmt.Errorf("%w: duplicate resource %q", domain.ErrInvalidInput, res.Name))
		}
		seen[res.Name] = struct{}{}
	}
	if _, err := c.DerivedSchemas(); err != nil {
		errs = append(errs, err)
	}
	switch c.Workflow.Kind {
	case "", "direct", "approval":
	default:
		errs = append(errs, fmt.Errorf("%w: workflow kind %q", domain.ErrInvalidInput, c.Workflow.Kind))
	}
	if _, err := c.DomainSchedulerConfig(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DerivedSchemas parses the derived attribute declarations.
func (c *Config) DerivedSchemas() (domain.DerivedSchemas, error) {
	schemas := make([]domain.DerivedSchema, 0, len(c.Derived))
	for _, d := range c.Derived {
		schemas = append(schemas, domain.DerivedSchema{Name: d.Name, Expression: d.Expression})
	}
	return domain.NewDerivedSchemas(schemas)
}

// DomainSchedulerConfig converts the scheduler section and per-resource
// sync intervals, filling unset values from the defaults.
func (c *Config) DomainSchedulerConfig() (domain.SchedulerConfig, error) {
	out := domain.DefaultSchedulerConfig()
	out.Enabled = c.Scheduler.Enabled

	fields := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"sync_interval", c.Scheduler.SyncInterval, &out.SyncInterval},
		{"reconcile_interval", c.Scheduler.ReconcileInterval, &out.ReconcileInterval},
		{"prune_interval", c.Scheduler.PruneInterval, &out.PruneInterval},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := parseInterval(f.raw)
		if err != nil {
			return out, fmt.Errorf("scheduler %s: %w", f.key, err)
		}
		*f.dst = d
	}

	if c.Scheduler.HistoryKeep < 0 {
		return out, fmt.Errorf("%w: scheduler history_keep %d", domain.ErrInvalidInput, c.Scheduler.HistoryKeep)
	}
	if c.Scheduler.HistoryKeep > 0 {
		out.HistoryKeep = c.Scheduler.HistoryKeep
	}

	for _, r := range c.Resources {
		if r.SyncInterval == "" {
			continue
		}
		d, err := parseInterval(r.SyncInterval)
		if err != nil {
			return out, fmt.Errorf("resource %q sync_interval: %w", r.Name, err)
		}
		if out.ResourceIntervals == nil {
			out.ResourceIntervals = make(map[string]time.Duration)
		}
		out.ResourceIntervals[r.Name] = d
	}
	return out, nil
}

func parseInterval(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: interval %q", domain.ErrInvalidInput, raw)
	}
	return d, nil
}

// ToDomain converts a resource declaration and validates it.
func (r *ResourceConfig) ToDomain() (domain.Resource, error) {
	res := domain.Resource{
		Name:              r.Name,
		ConnectorType:     r.Connector,
		ObjectClass:       r.ObjectClass,
		ConnectorConfig:   r.ConnectorConfig,
		PerformCreate:     boolOr(r.PerformCreate, true),
		PerformUpdate:     boolOr(r.PerformUpdate, true),
		PerformDelete:     boolOr(r.PerformDelete, true),
		SyncStatus:        r.SyncStatus,
		DefaultResources:  r.DefaultResources,
		PropagationTarget: r.PropagationTarget,
		PropagationConfig: r.PropagationConfig,
	}
	if res.ObjectClass == "" {
		res.ObjectClass = "__ACCOUNT__"
	}
	if r.AccountID != nil {
		res.AccountID = &domain.AccountIDMapping{
			Kind:      domain.MappingKind(r.AccountID.Kind),
			Attribute: r.AccountID.Attribute,
		}
		if err := res.AccountID.Validate(); err != nil {
			return res, fmt.Errorf("resource %q: %w", r.Name, err)
		}
	}
	if r.SyncPolicy != nil {
		policy, err := domain.ParseConflictPolicy(r.SyncPolicy.ConflictResolution)
		if err != nil {
			return res, fmt.Errorf("resource %q: %w", r.Name, err)
		}
		res.SyncPolicy = &domain.SyncPolicy{
			ConflictResolution:  policy,
			AltSearchAttributes: r.SyncPolicy.AltSearchAttributes,
		}
	}
	for _, m := range r.Mapping {
		res.Mapping = append(res.Mapping, domain.MappingItem{External: m.External, Internal: m.Internal})
	}
	level, err := domain.ParseTraceLevel(r.TraceLevel)
	if err != nil {
		return res, fmt.Errorf("resource %q: %w", r.Name, err)
	}
	res.TraceLevel = level

	if err := res.Validate(); err != nil {
		return res, err
	}
	return res, nil
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
