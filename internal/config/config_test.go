package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	App  App    `mapstructure:"app"`
	Room string `mapstructure:"room"`
}

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("APP_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load(&testConfig{}, func(v *viper.Viper) {
		Setup(v, "app")
		v.SetDefault("room", "lobby")
	})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.App.ShutdownTimeout)
	assert.Equal(t, "lobby", cfg.Room)
}

func TestLoadWithFlagsPrefersFlag(t *testing.T) {
	t.Setenv("ROOM", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("room", "", "")
	require.NoError(t, flags.Parse([]string{"--room", "from-flag"}))

	cfg, err := LoadWithFlags(&testConfig{}, flags, map[string]string{"room": "room", "missing": "nope"}, func(v *viper.Viper) {
		Setup(v, "app")
	})
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Room)
	assert.Equal(t, 10*time.Second, cfg.App.ShutdownTimeout)
}

func TestLoadWithFlagsFallsBackToEnv(t *testing.T) {
	t.Setenv("ROOM", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("room", "", "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := LoadWithFlags(&testConfig{}, flags, map[string]string{"room": "room"}, func(*viper.Viper) {})
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Room)
}
