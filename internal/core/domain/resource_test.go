package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountIDMapping_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mapping AccountIDMapping
		wantErr bool
	}{
		{"username", AccountIDMapping{Kind: MappingByUsername}, false},
		{"numeric", AccountIDMapping{Kind: MappingByNumericID}, false},
		{"attribute", AccountIDMapping{Kind: MappingByAttribute, Attribute: "email"}, false},
		{"attribute missing name", AccountIDMapping{Kind: MappingByAttribute}, true},
		{"derived missing name", AccountIDMapping{Kind: MappingByDerivedAttribute}, true},
		{"unknown kind", AccountIDMapping{Kind: "guess"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mapping.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMissingAccountIDMapping))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseConflictPolicy(t *testing.T) {
	p, err := ParseConflictPolicy("first_match")
	require.NoError(t, err)
	assert.Equal(t, ConflictFirstMatch, p)

	p, err = ParseConflictPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ConflictIgnore, p)

	_, err = ParseConflictPolicy("random")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseTraceLevel(t *testing.T) {
	l, err := ParseTraceLevel("failures")
	require.NoError(t, err)
	assert.Equal(t, TraceFailures, l)

	l, err = ParseTraceLevel("")
	require.NoError(t, err)
	assert.Equal(t, TraceAll, l)

	_, err = ParseTraceLevel("loud")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTraceLevel_AtLeast(t *testing.T) {
	assert.True(t, TraceAll.AtLeast(TraceFailures))
	assert.True(t, TraceFailures.AtLeast(TraceSummary))
	assert.False(t, TraceSummary.AtLeast(TraceFailures))
	assert.False(t, TraceNone.AtLeast(TraceSummary))
}

func TestResource_ConflictPolicy_DefaultsToIgnore(t *testing.T) {
	r := Resource{Name: "hr"}
	assert.Equal(t, ConflictIgnore, r.ConflictPolicy())

	r.SyncPolicy = &SyncPolicy{}
	assert.Equal(t, ConflictIgnore, r.ConflictPolicy())

	r.SyncPolicy.ConflictResolution = ConflictAll
	assert.Equal(t, ConflictAll, r.ConflictPolicy())
}

func TestResource_MappingNames(t *testing.T) {
	r := Resource{Mapping: []MappingItem{{External: "mail", Internal: "email"}}}

	assert.Equal(t, "mail", r.ExternalName("email"))
	assert.Equal(t, "phone", r.ExternalName("phone"))

	name, ok := r.InternalName("MAIL")
	assert.True(t, ok)
	assert.Equal(t, "email", name)

	_, ok = r.InternalName("phone")
	assert.False(t, ok)
}

func TestResource_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Resource{}).Validate(), ErrInvalidInput)
	assert.ErrorIs(t, (&Resource{Name: "hr"}).Validate(), ErrInvalidInput)
	assert.NoError(t, (&Resource{Name: "hr", ConnectorType: "csv"}).Validate())

	bad := Resource{Name: "hr", ConnectorType: "csv", TraceLevel: "LOUD"}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)
}
