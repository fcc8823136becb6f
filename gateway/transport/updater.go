package transport

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/viper"

	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/log"
	"github.com/boardbeam/backend/internal/retry"
)

const (
	ErrUpdaterRejected errors.Code = "updater_rejected"
	ErrUpdaterFailed   errors.Code = "updater_failed"
)

const (
	updaterTimeout     = 10 * time.Second
	updaterMaxElapsed  = 30 * time.Second
	updateTokenHeader  = "X-Update-Token"
	updateEndpointPath = "/v1/update"
)

type UpdaterConfig struct {
	URL   string        `mapstructure:"url"`
	Token string        `mapstructure:"token"`
	Delay time.Duration `mapstructure:"delay"`
}

func SetupUpdater(v *viper.Viper, prefix string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("url"), "http://updater:8080")
	v.SetDefault(p("token"), "")
	v.SetDefault(p("delay"), "1500ms")
}

// Updater asks the deployment updater to roll out a new version of this
// service. The request is sent after a delay so the caller's response is
// delivered first.
type Updater struct {
	cfg    *UpdaterConfig
	client *resty.Client
	policy retry.Policy
	clock  clockwork.Clock
	logger *log.Logger
}

type UpdaterOption func(*Updater)

func WithUpdaterClock(clock clockwork.Clock) UpdaterOption {
	return func(u *Updater) { u.clock = clock }
}

func NewUpdater(cfg *UpdaterConfig, logger *log.Logger, opts ...UpdaterOption) *Updater {
	u := &Updater{
		cfg: cfg,
		client: resty.New().
			SetBaseURL(strings.TrimRight(cfg.URL, "/")).
			SetTimeout(updaterTimeout),
		policy: retry.Policy{Initial: 200 * time.Millisecond, Max: 2 * time.Second, MaxElapsed: updaterMaxElapsed},
		clock:  clockwork.NewRealClock(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Updater) Configured() bool {
	return u.cfg.Token != ""
}

// Schedule triggers the update in the background once the delay elapsed.
// Failures are logged only.
func (u *Updater) Schedule(ctx context.Context) {
	go func() {
		ctx, cancel := context.WithTimeout(ctx, u.cfg.Delay+updaterMaxElapsed+updaterTimeout)
		defer cancel()

		timer := u.clock.NewTimer(u.cfg.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
		}

		if err := u.Trigger(ctx); err != nil {
			u.logger.Error("Update trigger failed", log.Error(err))
			return
		}
		u.logger.Info("Update triggered", log.String("url", u.cfg.URL))
	}()
}

// Trigger posts the update request. Only requests that never reached the
// updater are retried, the update must not fire twice.
func (u *Updater) Trigger(ctx context.Context) error {
	return retry.Do(ctx, u.policy, u.logger, "update", func() error {
		resp, err := u.client.R().
			SetContext(ctx).
			SetHeader(updateTokenHeader, u.cfg.Token).
			Post(updateEndpointPath)
		if err != nil {
			err = errors.Wrap(ErrUpdaterFailed, err, "post update")
			if undelivered(err) {
				return err
			}
			return retry.Permanent(err)
		}

		switch code := resp.StatusCode(); {
		case code >= http.StatusInternalServerError:
			return retry.Permanent(errors.Newf(ErrUpdaterFailed, "updater status %d", code))
		case code >= http.StatusBadRequest:
			return retry.Permanent(errors.Newf(ErrUpdaterRejected, "updater status %d: %s", code, resp.String()))
		}
		return nil
	})
}

// undelivered reports a failure to connect, the request was never sent.
func undelivered(err error) bool {
	opErr, ok := errors.As[*net.OpError](err)
	return ok && (*opErr).Op == "dial"
}
