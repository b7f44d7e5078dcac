package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formforge/formforge/pkg/config"
)

type testConfig struct {
	Domain string `env:"CONFIG_TEST_DOMAIN" envDefault:"forms.test"`
	Trial  int    `env:"CONFIG_TEST_TRIAL" envDefault:"14"`
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		var cfg testConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "forms.test", cfg.Domain)
		assert.Equal(t, 14, cfg.Trial)
	})

	t.Run("returns cached value on second load", func(t *testing.T) {
		var first testConfig
		require.NoError(t, config.Load(&first))

		// Environment changes after the first load must not be observed.
		t.Setenv("CONFIG_TEST_TRIAL", "30")

		var second testConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, first, second)
	})

	t.Run("rejects nil pointer", func(t *testing.T) {
		err := config.Load[testConfig](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})
}

func TestGet(t *testing.T) {
	type neverLoaded struct {
		Value string `env:"CONFIG_TEST_NEVER"`
	}

	t.Run("fails before any load", func(t *testing.T) {
		_, err := config.Get[neverLoaded]()
		assert.ErrorIs(t, err, config.ErrConfigNotLoaded)
	})

	t.Run("returns the loaded snapshot", func(t *testing.T) {
		var cfg testConfig
		require.NoError(t, config.Load(&cfg))

		got, err := config.Get[testConfig]()
		require.NoError(t, err)
		assert.Equal(t, cfg, got)
	})
}
