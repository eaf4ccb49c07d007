package csvfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

func resourceWith(cfg map[string]string) domain.Resource {
	return domain.Resource{Name: "hr", ConnectorType: Name, ConnectorConfig: cfg}
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig(resourceWith(map[string]string{KeyAccounts: " accounts.csv "}))
	require.NoError(t, err)

	assert.Equal(t, "accounts.csv", cfg.AccountsPath)
	assert.Empty(t, cfg.ChangelogPath)
	assert.Equal(t, domain.AttrUID, cfg.UIDColumn)
	assert.Equal(t, "utf-8", cfg.Encoding)
	assert.Equal(t, ',', cfg.Comma)
	assert.Empty(t, cfg.MultiValueSeparator)
}

func TestParseConfig_AllKeys(t *testing.T) {
	cfg, err := ParseConfig(resourceWith(map[string]string{
		KeyAccounts:      "a.csv",
		KeyChangelog:     "c.jsonl",
		KeyUIDColumn:     "employee_id",
		KeyEncoding:      "Latin1",
		KeyMultiValueSep: "|",
		KeyComma:         ";",
	}))
	require.NoError(t, err)

	assert.Equal(t, "c.jsonl", cfg.ChangelogPath)
	assert.Equal(t, "employee_id", cfg.UIDColumn)
	assert.Equal(t, "latin1", cfg.Encoding)
	assert.Equal(t, "|", cfg.MultiValueSeparator)
	assert.Equal(t, ';', cfg.Comma)
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     map[string]string
		wantErr error
	}{
		{name: "no files", cfg: map[string]string{}, wantErr: ErrNoSource},
		{name: "unknown encoding", cfg: map[string]string{KeyAccounts: "a.csv", KeyEncoding: "ebcdic"}, wantErr: ErrUnknownEncoding},
		{name: "multi-char comma", cfg: map[string]string{KeyAccounts: "a.csv", KeyComma: "::"}, wantErr: domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig(resourceWith(tt.cfg))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfig_Decoder(t *testing.T) {
	for _, name := range []string{"utf-8", "utf8", "utf-16", "utf-16le", "utf-16be", "latin1", "iso-8859-1", "windows-1252", "cp1252"} {
		cfg := &Config{Encoding: name}
		enc, err := cfg.decoder()
		require.NoError(t, err, name)
		assert.NotNil(t, enc, name)
	}
}
