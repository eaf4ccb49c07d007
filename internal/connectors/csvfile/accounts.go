package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
)

// readAccounts streams every row of the accounts file as a
// CREATE_OR_UPDATE delta. Empty cells are omitted.
func readAccounts(ctx context.Context, cfg *Config, handler driven.DeltaHandler) error {
	enc, err := cfg.decoder()
	if err != nil {
		return err
	}

	f, err := os.Open(cfg.AccountsPath)
	if err != nil {
		return fmt.Errorf("open accounts: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(transform.NewReader(f, enc.NewDecoder()))
	r.Comma = cfg.Comma
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read accounts header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	uidIdx := columnIndex(header, cfg.UIDColumn)
	if uidIdx < 0 {
		return fmt.Errorf("%w: %q", ErrMissingUIDColumn, cfg.UIDColumn)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read accounts: %w", err)
		}
		delta, ok := rowDelta(header, record, uidIdx, cfg.MultiValueSeparator)
		if !ok {
			line, _ := r.FieldPos(0)
			return fmt.Errorf("read accounts: line %d has no uid", line)
		}
		if !handler(delta) {
			return nil
		}
	}
}

func rowDelta(header, record []string, uidIdx int, sep string) (domain.Delta, bool) {
	if uidIdx >= len(record) {
		return domain.Delta{}, false
	}
	uid := norm.NFC.String(strings.TrimSpace(record[uidIdx]))
	if uid == "" {
		return domain.Delta{}, false
	}

	delta := domain.Delta{Type: domain.DeltaCreateOrUpdate, UID: uid}
	for i, name := range header {
		if i == uidIdx || i >= len(record) || name == "" {
			continue
		}
		cell := strings.TrimSpace(record[i])
		if cell == "" {
			continue
		}
		parts := []string{cell}
		if sep != "" {
			parts = strings.Split(cell, sep)
		}
		attr := domain.Attribute{Name: name}
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				attr.Values = append(attr.Values, domain.StringValue(norm.NFC.String(p)))
			}
		}
		if len(attr.Values) > 0 {
			delta.Attributes = append(delta.Attributes, attr)
		}
	}
	return delta, true
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

// checkAccountsHeader verifies the accounts file is readable and carries
// the uid column.
func checkAccountsHeader(cfg *Config) error {
	enc, err := cfg.decoder()
	if err != nil {
		return err
	}
	f, err := os.Open(cfg.AccountsPath)
	if err != nil {
		return fmt.Errorf("open accounts: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(transform.NewReader(f, enc.NewDecoder()))
	r.Comma = cfg.Comma
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read accounts header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if columnIndex(header, cfg.UIDColumn) < 0 {
		return fmt.Errorf("%w: %q", ErrMissingUIDColumn, cfg.UIDColumn)
	}
	return nil
}
