// Package config loads binary configuration with viper: defaults registered
// by each package's Setup, then environment variables (key "a.b_c" reads
// A_B_C), then command line flags.
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const defaultShutdownTimeout = 10 * time.Second

// App is the section every binary carries.
type App struct {
	// zap JSON config file, empty logs to stdout
	LogConfigFile   string        `mapstructure:"log_config_file"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func Setup(v *viper.Viper, prefix string) {
	v.SetDefault(prefix+".log_config_file", "")
	v.SetDefault(prefix+".shutdown_timeout", defaultShutdownTimeout.String())
}

func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func Load[T any](c *T, configure func(v *viper.Viper)) (*T, error) {
	return LoadWithFlags(c, nil, nil, configure)
}

// LoadWithFlags is Load with flags taking precedence over the environment.
// keys maps a config key to the flag bound to it, unknown flags are skipped.
func LoadWithFlags[T any](
	c *T,
	flags *pflag.FlagSet,
	keys map[string]string,
	configure func(v *viper.Viper),
) (*T, error) {
	v := NewViper()
	configure(v)

	for key, name := range keys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, err
		}
	}
	if err := v.Unmarshal(c); err != nil {
		return nil, err
	}
	return c, nil
}
