package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	for _, tc := range []struct {
		input   string
		seconds int
		err     bool
	}{
		{"PT5M", 300, false},
		{"PT30S", 30, false},
		{"PT1H30M", 5400, false},
		{"PT0S", 0, false},
		{"P1DT2H", 93600, false},
		{"PT90S", 90, false},
		{"PT1.5M", 90, false},
		{"-PT5M", -300, false},
		{"PT", 0, false},
		{"", 0, true},
		{"5M", 0, true},
		{"PT5X", 0, true},
		{"PTM", 0, true},
	} {
		t.Run(tc.input, func(t *testing.T) {
			secs, err := parseDuration(tc.input)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.seconds, secs)
		})
	}
}
