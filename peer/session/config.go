package session

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// gateway websocket endpoint
	Server      string        `mapstructure:"server"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	// room ticket presented on dial, empty when the gateway is open
	Token string `mapstructure:"token"`
}

func Setup(v *viper.Viper, prefix string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("server"), "ws://localhost:8081/ws")
	v.SetDefault(p("dial_timeout"), "5s")
	v.SetDefault(p("call_timeout"), "10s")
	v.SetDefault(p("token"), "")
}
