package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelta_MatchUID(t *testing.T) {
	d := Delta{Type: DeltaCreateOrUpdate, UID: "jdoe"}
	assert.Equal(t, "jdoe", d.MatchUID())
	assert.False(t, d.IsRename())

	d.PreviousUID = "john"
	assert.Equal(t, "john", d.MatchUID())
	assert.True(t, d.IsRename())
}

func TestDelta_Attribute_CaseInsensitive(t *testing.T) {
	d := Delta{Attributes: []Attribute{{Name: "Email", Values: []Value{StringValue("j@x.org")}}}}

	attr, ok := d.Attribute("email")
	require.True(t, ok)
	assert.Equal(t, []string{"j@x.org"}, attr.Strings())

	_, ok = d.Attribute("phone")
	assert.False(t, ok)
}

func TestDelta_Enabled(t *testing.T) {
	d := Delta{}
	assert.Nil(t, d.Enabled())

	d.Attributes = []Attribute{{Name: AttrEnable, Values: []Value{BoolValue(false)}}}
	require.NotNil(t, d.Enabled())
	assert.False(t, *d.Enabled())

	d.Attributes = []Attribute{{Name: AttrEnable, Values: []Value{StringValue("true")}}}
	require.NotNil(t, d.Enabled())
	assert.True(t, *d.Enabled())

	d.Attributes = []Attribute{{Name: AttrEnable}}
	assert.Nil(t, d.Enabled())
}

func TestDeltaType_IsValid(t *testing.T) {
	assert.True(t, DeltaCreateOrUpdate.IsValid())
	assert.True(t, DeltaDelete.IsValid())
	assert.False(t, DeltaType("UPSERT").IsValid())
}
