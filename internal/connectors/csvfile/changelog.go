package csvfile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

const maxEntrySize = 4 << 20

// Entry is one line of the change log.
type Entry struct {
	Seq         int64                      `json:"seq"`
	Type        domain.DeltaType           `json:"type"`
	UID         string                     `json:"uid"`
	PreviousUID string                     `json:"previous_uid,omitempty"`
	Attributes  map[string]json.RawMessage `json:"attributes,omitempty"`
}

// Delta converts the entry. Attributes are ordered by name.
func (e Entry) Delta() (domain.Delta, error) {
	delta := domain.Delta{
		Type:        domain.DeltaType(strings.ToUpper(string(e.Type))),
		UID:         norm.NFC.String(e.UID),
		PreviousUID: norm.NFC.String(e.PreviousUID),
	}
	names := make([]string, 0, len(e.Attributes))
	for name := range e.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		values, err := decodeValues(e.Attributes[name])
		if err != nil {
			return delta, fmt.Errorf("attribute %s: %w", name, err)
		}
		delta.Attributes = append(delta.Attributes, domain.Attribute{Name: name, Values: values})
	}
	return delta, nil
}

// decodeValues accepts a scalar or an array of scalars.
func decodeValues(raw json.RawMessage) ([]domain.Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		values := make([]domain.Value, 0, len(items))
		for _, item := range items {
			v, ok, err := decodeScalar(item)
			if err != nil {
				return nil, err
			}
			if ok {
				values = append(values, v)
			}
		}
		return values, nil
	}
	v, ok, err := decodeScalar(raw)
	if err != nil || !ok {
		return nil, err
	}
	return []domain.Value{v}, nil
}

func decodeScalar(raw json.RawMessage) (domain.Value, bool, error) {
	var x any
	if err := json.Unmarshal(raw, &x); err != nil {
		return domain.Value{}, false, err
	}
	switch v := x.(type) {
	case nil:
		return domain.Value{}, false, nil
	case string:
		return domain.StringValue(norm.NFC.String(v)), true, nil
	case bool:
		return domain.BoolValue(v), true, nil
	case float64:
		return domain.NumberValue(v), true, nil
	default:
		return domain.Value{}, false, fmt.Errorf("unsupported value %s", raw)
	}
}

// scanChangelog calls fn for every entry in file order. A missing log is
// treated as empty. Blank lines are skipped.
func scanChangelog(ctx context.Context, path string, fn func(Entry) bool) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open changelog: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxEntrySize)
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(text, &e); err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrBadEntry, line, err)
		}
		if e.UID == "" {
			return fmt.Errorf("%w: line %d: missing uid", ErrBadEntry, line)
		}
		if !fn(e) {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read changelog: %w", err)
	}
	return nil
}

// AppendEntries appends entries to a change log, creating it if needed.
func AppendEntries(path string, entries ...Entry) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open changelog: %w", err)
	}
	enc := json.NewEncoder(f)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			f.Close()
			return fmt.Errorf("write changelog: %w", err)
		}
	}
	return f.Close()
}
