package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDefault(t *testing.T) {
	t.Setenv("ACCRUAL_SCHEDULE", "")
	assert.Equal(t, "@hourly", ConfigDefault("ACCRUAL_SCHEDULE", "@hourly"))

	t.Setenv("ACCRUAL_SCHEDULE", "*/30 * * * *")
	assert.Equal(t, "*/30 * * * *", ConfigDefault("ACCRUAL_SCHEDULE", "@hourly"))
}

func TestConfigInt(t *testing.T) {
	t.Setenv("REDIS_DB", "3")
	assert.Equal(t, 3, ConfigInt("REDIS_DB", 0))

	t.Setenv("REDIS_DB", "three")
	assert.Equal(t, 0, ConfigInt("REDIS_DB", 0))

	t.Setenv("REDIS_DB", "")
	assert.Equal(t, 7, ConfigInt("REDIS_DB", 7))
}
