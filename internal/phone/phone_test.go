package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_International(t *testing.T) {
	c := Classify("+233244123456")
	require.True(t, c.Valid)
	assert.Equal(t, "+233244123456", c.Normalized)
	assert.Equal(t, "GH", c.Country)
	assert.Equal(t, "mtn-gh", c.Network)
	assert.Equal(t, "MTN Ghana", c.Operator)
	assert.Empty(t, c.Errors)
}

func TestClassify_StripsFormatting(t *testing.T) {
	c := Classify("+234 (803) 123-4567")
	require.True(t, c.Valid)
	assert.Equal(t, "+2348031234567", c.Normalized)
	assert.Equal(t, "NG", c.Country)
	assert.Equal(t, "mtn-ng", c.Network)
}

func TestClassify_LocalFormat_FirstMatchWins(t *testing.T) {
	// Nigerian local format: trunk 0 + 10 subscriber digits.
	c := Classify("08031234567")
	require.True(t, c.Valid)
	assert.Equal(t, "+2348031234567", c.Normalized)
	assert.Equal(t, "NG", c.Country)

	// Nine local digits is ambiguous across several countries; the table
	// order makes Ghana the deterministic winner.
	c = Classify("0244123456")
	require.True(t, c.Valid)
	assert.Equal(t, "+233244123456", c.Normalized)
	assert.Equal(t, "GH", c.Country)
}

func TestClassify_BareInternational(t *testing.T) {
	c := Classify("233244123456")
	require.True(t, c.Valid)
	assert.Equal(t, "+233244123456", c.Normalized)
	assert.Equal(t, "GH", c.Country)
}

func TestClassify_UndeterminedCountry(t *testing.T) {
	c := Classify("99912345678")
	require.True(t, c.Valid)
	assert.Equal(t, "+99912345678", c.Normalized)
	assert.Empty(t, c.Country)
	assert.NotEmpty(t, c.Warnings)
}

func TestClassify_NonAfricanAcceptedWithWarning(t *testing.T) {
	c := Classify("+12025550123")
	require.True(t, c.Valid)
	assert.Equal(t, "US", c.Country)
	assert.Contains(t, c.Warnings, "destination outside African coverage")
}

func TestClassify_Invalid(t *testing.T) {
	for _, raw := range []string{"", "abc", "+", "+123", "12345678901234567890"} {
		c := Classify(raw)
		assert.False(t, c.Valid, "input %q", raw)
		assert.NotEmpty(t, c.Errors, "input %q", raw)
		assert.Empty(t, c.Normalized, "input %q", raw)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	inputs := []string{"+233244123456", "08031234567", "0722123456", "+254711222333"}
	for _, raw := range inputs {
		first := Classify(raw)
		require.True(t, first.Valid, "input %q", raw)
		second := Classify(first.Normalized)
		require.True(t, second.Valid)
		assert.Equal(t, first.Normalized, second.Normalized, "input %q", raw)
	}
}

func TestClassify_NetworkDetection(t *testing.T) {
	cases := []struct {
		raw      string
		network  string
		operator string
	}{
		{"+254722123456", "safaricom-ke", "Safaricom"},
		{"+27821234567", "vodacom-za", "Vodacom"},
		{"+221771234567", "orange-sn", "Orange Senegal"},
		{"+2348051234567", "glo-ng", "Globacom"},
	}
	for _, tc := range cases {
		c := Classify(tc.raw)
		require.True(t, c.Valid, "input %q", tc.raw)
		assert.Equal(t, tc.network, c.Network, "input %q", tc.raw)
		assert.Equal(t, tc.operator, c.Operator, "input %q", tc.raw)
	}
}
