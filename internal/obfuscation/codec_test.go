package obfuscation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labara-io/labara-go/internal/domain"
)

func TestHash(t *testing.T) {
	// Pinned against the digests the server emits for obfuscated configs.
	assert.Equal(t, "b80bb7740288fda1f201890375a60c8f", Hash("id"))
	assert.Equal(t, "e909c2d7067ea37437cf97fe11d91bd0", Hash("country"))
	assert.Equal(t, "b326b5062b2f0e69046810717534cb09", Hash("true"))
	assert.Equal(t, "68934a3e9455fa72420237eb05902327", Hash("false"))
}

func TestDecodeBase64(t *testing.T) {
	decoded, err := DecodeBase64("dHJlYXRtZW50")
	require.NoError(t, err)
	assert.Equal(t, "treatment", decoded)

	_, err = DecodeBase64("not base64!!")
	assert.Error(t, err)
}

func TestDecodeBase64Lossy(t *testing.T) {
	assert.Equal(t, "control", DecodeBase64Lossy("Y29udHJvbA=="))
	assert.Equal(t, "not base64!!", DecodeBase64Lossy("not base64!!"))
}

func TestOperatorFromHash(t *testing.T) {
	for _, op := range domain.Operators() {
		resolved, ok := OperatorFromHash(Hash(string(op)))
		require.True(t, ok, "operator %s", op)
		assert.Equal(t, op, resolved)
	}

	_, ok := OperatorFromHash(Hash("EQUALS"))
	assert.False(t, ok, "unknown operators stay unresolved")

	// Spot-check a pinned digest so the table itself is wire-compatible.
	resolved, ok := OperatorFromHash("27457ce369f2a74203396a35ef537c0b")
	require.True(t, ok)
	assert.Equal(t, domain.OperatorOneOf, resolved)
}

func TestHashedBooleanLiterals(t *testing.T) {
	assert.True(t, IsHashedTrue(Hash("true")))
	assert.False(t, IsHashedTrue(Hash("false")))
	assert.True(t, IsHashedFalse(Hash("false")))
	assert.False(t, IsHashedFalse(Hash("TRUE")), "literals are case-sensitive")
}
