package signal

import (
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/boardbeam/backend/internal/jwt"
)

type Config struct {
	// drop signaling between sessions that are not in the same room
	SameRoomOnly bool `mapstructure:"same_room_only"`
	// signaling messages per second per connection, <= 0 disables the limit
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
	// when set, connections must present a room ticket signed with it
	TicketSecret string `mapstructure:"ticket_secret"`
}

func Setup(v *viper.Viper, prefix string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("same_room_only"), true)
	v.SetDefault(p("rate_limit"), 50)
	v.SetDefault(p("rate_burst"), 200)
	v.SetDefault(p("ticket_secret"), "")
}

func (c *Config) newLimiter() *rate.Limiter {
	if c == nil || c.RateLimit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := c.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.RateLimit), burst)
}

func (c *Config) ticketAuth() jwt.TicketAuth {
	if c == nil || c.TicketSecret == "" {
		return nil
	}
	return jwt.NewTicketAuth(c.TicketSecret)
}
