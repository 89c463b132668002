package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeFlexible(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	cases := map[string]string{
		"rfc3339":         "2024-03-01T12:30:00Z",
		"offset":          "2024-03-01T14:30:00+02:00",
		"millis":          "2024-03-01T12:30:00.000Z",
		"no zone":         "2024-03-01T12:30:00",
		"space separated": "2024-03-01 12:30:00",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ParseTimeFlexible(in)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := ParseTimeFlexible("yesterday")
		assert.Error(t, err)
	})
}
