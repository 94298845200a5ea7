package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefOf(t *testing.T) {
	r, err := RefOf(true)
	require.NoError(t, err)
	assert.True(t, r.IsTrivialTrue())

	r, err = RefOf(false)
	require.NoError(t, err)
	assert.True(t, r.IsTrivialFalse())

	r, err = RefOf("my.schema.json")
	require.NoError(t, err)
	assert.False(t, r.IsTrivialTrue())
	assert.False(t, r.IsTrivialFalse())
	assert.Equal(t, "my.schema.json", r.String())

	_, err = RefOf(int64(7))
	assert.Error(t, err)
}

func TestNamed_SentinelStringsMapBack(t *testing.T) {
	assert.True(t, Named(TrivialTrueName).IsTrivialTrue())
	assert.True(t, Named(TrivialFalseName).IsTrivialFalse())
	assert.Equal(t, TrivialTrueName, Named(TrivialTrueName).String())
}

func TestRef_JSONRoundTrip(t *testing.T) {
	for _, ref := range []Ref{TrivialTrue(), TrivialFalse(), Named("x.schema.json")} {
		data, err := json.Marshal(ref)
		require.NoError(t, err)

		var back Ref
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, ref, back)
	}
}

func TestRef_UnmarshalRejectsNonString(t *testing.T) {
	var r Ref
	assert.Error(t, json.Unmarshal([]byte(`{"not": "a string"}`), &r))
}
