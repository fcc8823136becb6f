package negotiation

import (
	"time"

	"github.com/spf13/viper"
)

const defaultNegotiationTimeout = 30 * time.Second

type Config struct {
	ICEServers []string `mapstructure:"ice_servers"`
	// links that are not connected within this delay are closed, 0 disables
	NegotiationTimeout time.Duration `mapstructure:"negotiation_timeout"`
	// TURN credentials applied to turn: and turns: urls
	TURNUsername   string `mapstructure:"turn_username"`
	TURNCredential string `mapstructure:"turn_credential"`
}

func Setup(v *viper.Viper, prefix string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("ice_servers"), []string{"stun:localhost:3478", "turn:localhost:3478"})
	v.SetDefault(p("negotiation_timeout"), defaultNegotiationTimeout.String())
	v.SetDefault(p("turn_username"), "dev")
	v.SetDefault(p("turn_credential"), "devpassword")
}
