package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialogKind(t *testing.T) {
	for _, k := range DialogKinds {
		got, err := ParseDialogKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseDialogKind("popup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "popup")
	// The error enumerates every valid kind.
	for _, k := range DialogKinds {
		assert.Contains(t, err.Error(), string(k))
	}
}

func TestParseFieldKind(t *testing.T) {
	for _, s := range []string{"entry", "combo"} {
		got, err := ParseFieldKind(s)
		require.NoError(t, err)
		assert.Equal(t, FieldKind(s), got)
	}

	_, err := ParseFieldKind("checkbox")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry")
	assert.Contains(t, err.Error(), "combo")
}

func TestIsValidID(t *testing.T) {
	assert.True(t, IsValidID("happiness.level"))
	assert.True(t, IsValidID("q1"))
	assert.False(t, IsValidID(""))
	assert.False(t, IsValidID("Happiness"))
	assert.False(t, IsValidID("my question"))
	assert.False(t, IsValidID("q_1"))
}

func TestFixID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Happiness Level", "happiness.level"},
		{"happiness.level", "happiness.level"},
		{"  My Question!  ", "my.question"},
		{"a__b", "a.b"},
		{"..a..b..", "a.b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FixID(tt.in), "FixID(%q)", tt.in)
	}
}
