package otel

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServiceName string        `mapstructure:"service_name"`
	Endpoint    string        `mapstructure:"endpoint"`
	Insecure    bool          `mapstructure:"insecure"`
	Timeout     time.Duration `mapstructure:"timeout"`

	Tracing TracingConfig `mapstructure:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// 1 samples every join, 0 none
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

type MetricsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	// Go runtime metrics, only when Enabled
	Runtime bool `mapstructure:"runtime"`
}

func Setup(v *viper.Viper, prefix, serviceName string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("service_name"), serviceName)
	v.SetDefault(p("endpoint"), "localhost:4317")
	v.SetDefault(p("insecure"), true)
	v.SetDefault(p("timeout"), "10s")

	v.SetDefault(p("tracing.enabled"), false)
	v.SetDefault(p("tracing.sampling_rate"), 1.0)

	v.SetDefault(p("metrics.enabled"), false)
	v.SetDefault(p("metrics.interval"), "30s")
	v.SetDefault(p("metrics.runtime"), false)
}
