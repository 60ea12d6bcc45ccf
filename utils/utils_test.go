package utils

import (
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestGenUuidFromStrings(t *testing.T) {
	a := GenUuidFromStrings("asset", "XLM")
	b := GenUuidFromStrings("XLM", "asset")
	assert.Equal(t, a, b, "argument order must not matter")

	c := GenUuidFromStrings("asset", "sXLM")
	assert.NotEqual(t, a, c)

	parsed, err := uuid.FromString(a)
	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, parsed)

	assert.Equal(t, GenUuidFromStrings(), GenUuidFromStrings())
}

func TestIsqrt(t *testing.T) {
	tests := []struct {
		name     string
		input    int64
		expected int64
	}{
		{name: "perfect square", input: 400_000_000, expected: 20_000},
		{name: "rounds down", input: 99, expected: 9},
		{name: "one", input: 1, expected: 1},
		{name: "zero", input: 0, expected: 0},
		{name: "negative", input: -4, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Isqrt(decimal.NewFromInt(tt.input))
			expected := decimal.NewFromInt(tt.expected)
			assert.True(t, result.Equal(expected), "expected %s, got %s", expected, result)
		})
	}
}
