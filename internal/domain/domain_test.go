package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardRangeContains(t *testing.T) {
	r := ShardRange{Start: 2500, End: 5000}

	// Half-open: start inclusive, end exclusive.
	assert.True(t, r.Contains(2500))
	assert.True(t, r.Contains(4999))
	assert.False(t, r.Contains(5000))
	assert.False(t, r.Contains(2499))

	empty := ShardRange{Start: 100, End: 100}
	assert.False(t, empty.Contains(100))
}

func TestConfigurationError(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewConfigurationError("fetch failed", inner)

	assert.True(t, IsConfigurationError(err))
	assert.False(t, IsConfigurationError(inner))
	assert.False(t, IsConfigurationError(nil))
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "fetch failed")
	assert.Contains(t, err.Error(), "connection refused")

	bare := NewConfigurationError("malformed payload", nil)
	assert.Equal(t, "configuration error: malformed payload", bare.Error())
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("flag", "checkout-flow")

	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(fmt.Errorf("other")))
	assert.Equal(t, "flag not found: checkout-flow", err.Error())
}

func TestTypeMismatchError(t *testing.T) {
	err := NewTypeMismatchError("checkout-flow", BooleanVariation, StringVariation)

	assert.True(t, IsTypeMismatch(err))
	assert.False(t, IsTypeMismatch(errors.New("other")))
	assert.Contains(t, err.Error(), "checkout-flow")
	assert.Contains(t, err.Error(), "STRING")
	assert.Contains(t, err.Error(), "BOOLEAN")
}

func TestOperators(t *testing.T) {
	ops := Operators()
	assert.Len(t, ops, 9)
	assert.Contains(t, ops, OperatorOneOf)
	assert.Contains(t, ops, OperatorIsNull)
}
