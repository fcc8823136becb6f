package directory

import "github.com/spf13/viper"

type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Prefix  string `mapstructure:"prefix"`
	// room changes are also appended to a capped stream, 0 disables it
	EventsMaxLen int64 `mapstructure:"events_max_len"`
}

func Setup(v *viper.Viper, prefix string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("enabled"), true)
	v.SetDefault(p("prefix"), "boardbeam")
	v.SetDefault(p("events_max_len"), 1000)
}

func (c *Config) roomsKey() string {
	return c.Prefix + ":rooms"
}

func (c *Config) EventsStream() string {
	return c.Prefix + ":room-events"
}
