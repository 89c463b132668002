package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUniqueReferralCode(t *testing.T) {
	t.Run("returns an unused code", func(t *testing.T) {
		calls := 0
		code, err := GenerateUniqueReferralCode(func(string) (bool, error) {
			calls++
			return calls < 3, nil
		})
		require.NoError(t, err)
		assert.Len(t, code, referralCodeLength)
		assert.Regexp(t, "^[A-Z0-9]{8}$", code)
		assert.Equal(t, 3, calls)
	})

	t.Run("propagates lookup errors", func(t *testing.T) {
		boom := errors.New("db down")
		_, err := GenerateUniqueReferralCode(func(string) (bool, error) { return false, boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("gives up when every code is taken", func(t *testing.T) {
		_, err := GenerateUniqueReferralCode(func(string) (bool, error) { return true, nil })
		assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
	})
}
