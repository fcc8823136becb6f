package registry

import (
	"github.com/spf13/viper"

	"github.com/boardbeam/backend/internal/constants"
)

const defaultQueueSize = 256

type Config struct {
	RejoinPolicy constants.RejoinPolicy `mapstructure:"rejoin_policy"`
	QueueSize    int                    `mapstructure:"queue_size"`
}

func Setup(v *viper.Viper, prefix string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("rejoin_policy"), string(constants.RejoinSwitch))
	v.SetDefault(p("queue_size"), defaultQueueSize)
}
