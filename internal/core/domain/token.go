package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TokenKind is the type of value a sync token carries.
type TokenKind string

const (
	TokenString    TokenKind = "string"
	TokenNumber    TokenKind = "number"
	TokenBoolean   TokenKind = "boolean"
	TokenTimestamp TokenKind = "timestamp"
	TokenBytes     TokenKind = "bytes"
)

const tokenVersion = 1

// SyncToken is an opaque, connector-defined watermark into a change stream.
// Value holds the canonical text form of the typed value.
type SyncToken struct {
	Kind  TokenKind `json:"k"`
	Value string    `json:"v"`
}

// StringToken wraps s.
func StringToken(s string) *SyncToken {
	return &SyncToken{Kind: TokenString, Value: s}
}

// NumberToken wraps n.
func NumberToken(n int64) *SyncToken {
	return &SyncToken{Kind: TokenNumber, Value: strconv.FormatInt(n, 10)}
}

// BooleanToken wraps b.
func BooleanToken(b bool) *SyncToken {
	return &SyncToken{Kind: TokenBoolean, Value: strconv.FormatBool(b)}
}

// TimestampToken wraps t, normalised to UTC.
func TimestampToken(t time.Time) *SyncToken {
	return &SyncToken{Kind: TokenTimestamp, Value: t.UTC().Format(time.RFC3339Nano)}
}

// BytesToken wraps b.
func BytesToken(b []byte) *SyncToken {
	return &SyncToken{Kind: TokenBytes, Value: base64.StdEncoding.EncodeToString(b)}
}

// Number returns the numeric value.
func (t *SyncToken) Number() (int64, error) {
	if t.Kind != TokenNumber {
		return 0, fmt.Errorf("%w: token kind %s is not a number", ErrInvalidToken, t.Kind)
	}
	n, err := strconv.ParseInt(t.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return n, nil
}

// Timestamp returns the timestamp value.
func (t *SyncToken) Timestamp() (time.Time, error) {
	if t.Kind != TokenTimestamp {
		return time.Time{}, fmt.Errorf("%w: token kind %s is not a timestamp", ErrInvalidToken, t.Kind)
	}
	ts, err := time.Parse(time.RFC3339Nano, t.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return ts, nil
}

// Bytes returns the raw bytes value.
func (t *SyncToken) Bytes() ([]byte, error) {
	if t.Kind != TokenBytes {
		return nil, fmt.Errorf("%w: token kind %s is not bytes", ErrInvalidToken, t.Kind)
	}
	b, err := base64.StdEncoding.DecodeString(t.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return b, nil
}

// Equal reports whether both tokens carry the same typed value.
func (t *SyncToken) Equal(o *SyncToken) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.Kind == o.Kind && t.Value == o.Value
}

// String returns a human-readable form.
func (t *SyncToken) String() string {
	if t == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s:%s", t.Kind, t.Value)
}

type tokenEnvelope struct {
	Version int       `json:"version"`
	Token   SyncToken `json:"token"`
}

// Encode serialises the token to a versioned, base64-encoded string.
// A nil token encodes as the empty string.
func (t *SyncToken) Encode() (string, error) {
	if t == nil {
		return "", nil
	}
	data, err := json.Marshal(tokenEnvelope{Version: tokenVersion, Token: *t})
	if err != nil {
		return "", fmt.Errorf("marshal token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeSyncToken parses an encoded token. An empty string yields nil.
func DecodeSyncToken(encoded string) (*SyncToken, error) {
	if encoded == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidToken, err)
	}
	var env tokenEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %v", ErrInvalidToken, err)
	}
	if env.Version != tokenVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidToken, env.Version)
	}
	token := env.Token
	return &token, nil
}

// SyncState is the persisted token for a resource.
type SyncState struct {
	Resource string
	Token    *SyncToken
	LastSync time.Time
}
