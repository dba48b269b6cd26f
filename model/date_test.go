package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	iso, err := ParseDate("2025-07-04")
	require.NoError(t, err)
	compact, err := ParseDate("20250704")
	require.NoError(t, err)
	assert.Equal(t, iso, compact)

	assert.Equal(t, "20250704", iso.Compact())
	assert.Equal(t, "2025-07-04", iso.String())
	assert.Equal(t, time.Friday, iso.Weekday())
}

func TestParseDateInvalid(t *testing.T) {
	for _, input := range []string{"", "2025/07/04", "250704", "20251341", "not a date"} {
		_, err := ParseDate(input)
		require.Error(t, err, "input %q", input)

		var invalid *InvalidDateError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, input, invalid.Input)
	}
}

func TestDateOf(t *testing.T) {
	d := DateOf(time.Date(2025, time.December, 31, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, "20251231", d.Compact())
	assert.Equal(t, "20260101", d.AddDays(1).Compact())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
}
