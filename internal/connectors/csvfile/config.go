package csvfile

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

// Config keys read from a resource's connector_config.
const (
	KeyAccounts       = "accounts"
	KeyChangelog      = "changelog"
	KeyUIDColumn      = "uid_column"
	KeyEncoding       = "encoding"
	KeyMultiValueSep  = "multi_value_separator"
	KeyComma          = "comma"
	defaultUIDColumn  = domain.AttrUID
	defaultEncodingID = "utf-8"
)

// Config holds the parsed configuration for a csvfile resource.
type Config struct {
	// AccountsPath is the CSV export used for full reconciliation.
	AccountsPath string

	// ChangelogPath is the JSON Lines change log used for incremental sync.
	ChangelogPath string

	// UIDColumn names the CSV column carrying the external uid.
	// Default: __UID__
	UIDColumn string

	// Encoding is the text encoding of the accounts file.
	// Default: utf-8 (a leading BOM is honoured)
	Encoding string

	// MultiValueSeparator splits a CSV cell into several values.
	// Empty means every cell is single-valued.
	MultiValueSeparator string

	// Comma is the CSV field delimiter. Default: ','
	Comma rune
}

// ParseConfig parses a resource's connector config map into a Config.
func ParseConfig(resource domain.Resource) (*Config, error) {
	cfg := &Config{
		AccountsPath:        strings.TrimSpace(resource.ConnectorConfig[KeyAccounts]),
		ChangelogPath:       strings.TrimSpace(resource.ConnectorConfig[KeyChangelog]),
		UIDColumn:           defaultUIDColumn,
		Encoding:            defaultEncodingID,
		MultiValueSeparator: resource.ConnectorConfig[KeyMultiValueSep],
		Comma:               ',',
	}
	if cfg.AccountsPath == "" && cfg.ChangelogPath == "" {
		return nil, ErrNoSource
	}
	if col := strings.TrimSpace(resource.ConnectorConfig[KeyUIDColumn]); col != "" {
		cfg.UIDColumn = col
	}
	if enc := strings.TrimSpace(resource.ConnectorConfig[KeyEncoding]); enc != "" {
		cfg.Encoding = strings.ToLower(enc)
	}
	if _, err := cfg.decoder(); err != nil {
		return nil, err
	}
	if comma := resource.ConnectorConfig[KeyComma]; comma != "" {
		r := []rune(comma)
		if len(r) != 1 {
			return nil, fmt.Errorf("%w: comma must be a single character", domain.ErrInvalidInput)
		}
		cfg.Comma = r[0]
	}
	return cfg, nil
}

// decoder returns the text encoding of the accounts file.
func (c *Config) decoder() (encoding.Encoding, error) {
	switch c.Encoding {
	case "utf-8", "utf8":
		return unicode.UTF8BOM, nil
	case "utf-16", "utf-16le", "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, c.Encoding)
	}
}
