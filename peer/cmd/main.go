package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/boardbeam/backend/gateway"
	"github.com/boardbeam/backend/internal/config"
	"github.com/boardbeam/backend/internal/constants"
	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/log"
	"github.com/boardbeam/backend/internal/otel"
	"github.com/boardbeam/backend/internal/workflow"
	"github.com/boardbeam/backend/peer"
	"github.com/boardbeam/backend/peer/media"
	"github.com/boardbeam/backend/peer/negotiation"
	"github.com/boardbeam/backend/peer/session"
)

const (
	ErrConfig      errors.Code = "config"
	ErrInvalidRole errors.Code = "invalid_role"
	ErrGatewayGone errors.Code = "gateway_gone"

	ErrShutdownTimeout errors.Code = "shutdown_timeout"
)

type Config struct {
	App         config.App         `mapstructure:"app"`
	Otel        otel.Config        `mapstructure:"otel"`
	Session     session.Config     `mapstructure:"session"`
	Negotiation negotiation.Config `mapstructure:"negotiation"`

	Room    string `mapstructure:"room"`
	Role    string `mapstructure:"role"`
	Name    string `mapstructure:"name"`
	NoMedia bool   `mapstructure:"no_media"`
}

// config key -> flag name
var flagKeys = map[string]string{
	"session.server":                  "server",
	"session.token":                   "token",
	"room":                            "room",
	"role":                            "role",
	"name":                            "name",
	"negotiation.ice_servers":         "stun",
	"no_media":                        "no-media",
	"negotiation.negotiation_timeout": "negotiation-timeout",
}

func loadConfig(cmd *cobra.Command) (*Config, error) {
	return config.LoadWithFlags(&Config{}, cmd.Flags(), flagKeys, func(v *viper.Viper) {
		v.SetDefault("room", "lobby")
		v.SetDefault("role", string(constants.RoleSpectator))
		v.SetDefault("name", "")
		v.SetDefault("no_media", false)

		config.Setup(v, "app")
		otel.Setup(v, "otel", "peer")
		session.Setup(v, "session")
		negotiation.Setup(v, "negotiation")
	})
}

func main() {
	cmd := &cobra.Command{
		Use:   "peer",
		Short: "Headless room member speaking the gateway signaling protocol",
		Long: `peer joins a room on the gateway as seat A, seat B or a spectator and
negotiates a direct WebRTC link with every other member it is expected to link
with. Remote media changes are logged.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	flags := cmd.Flags()
	flags.String("server", "", "gateway websocket url")
	flags.String("token", "", "room ticket required by the gateway")
	flags.String("room", "", "room key to join")
	flags.String("role", "", "A, B or spectator")
	flags.String("name", "", "display name announced to the room")
	flags.StringSlice("stun", nil, "ICE server urls (stun: or turn:)")
	flags.Bool("no-media", false, "never publish local media")
	flags.Duration("negotiation-timeout", 0, "close links not connected within this delay")

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return errors.Wrap(ErrConfig, err, "load configuration")
	}
	role := constants.Role(cfg.Role)
	if !role.Valid() {
		return errors.Newf(ErrInvalidRole, "unknown role %q", cfg.Role)
	}

	logger, err := log.NewLogger(cfg.App.LogConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	otelShutdown, err := otel.Init(ctx, &cfg.Otel, logger)
	if err != nil {
		return errors.Wrap(ErrConfig, err, "init otel")
	}

	logger.Info("Starting peer",
		log.String("server", cfg.Session.Server),
		log.String("room", cfg.Room),
		log.String("role", cfg.Role),
		log.Strings("ice_servers", cfg.Negotiation.ICEServers))

	var provider peer.MediaProvider
	if !cfg.NoMedia {
		provider = media.NewStaticProvider(logger.Module("Media"))
	}

	sess, err := session.New(&cfg.Session, &cfg.Negotiation, provider, logger.Module("Session"))
	if err != nil {
		return err
	}
	coord := sess.Coordinator()
	coord.OnMediaChanged(func() { logMedia(logger, coord) })
	sess.OnRoomState(func(state gateway.PublicRoomState) {
		logger.Info("Room state",
			log.Bool("seat_a", state.SeatAOccupied),
			log.Bool("seat_b", state.SeatBOccupied),
			log.Int("spectators", state.SpectatorCount))
	})

	if err := sess.Dial(ctx); err != nil {
		return err
	}
	if _, err := sess.Join(ctx, cfg.Room, role, cfg.Name); err != nil {
		_ = sess.Close()
		return err
	}
	if err := coord.LastMediaError(); err != nil {
		logger.Warn("Publishing nothing", log.Error(err))
	}

	// stop on a signal or when the gateway goes away
	runCtx, stop := workflow.Until(ctx, sess.Done())
	defer stop()

	var lost bool
	cleanup := func(ctx context.Context) {
		lost = errors.Is(context.Cause(runCtx), workflow.ErrStopped)
		if lost {
			logger.Warn("Gateway connection closed")
		} else if err := sess.Leave(ctx); err != nil {
			logger.Debug("Leave not delivered", log.Error(err))
		}
		_ = sess.Close()
		if err := otelShutdown(ctx); err != nil {
			logger.Error("Failed to shutdown OTEL", log.Error(err))
		}
	}
	if !workflow.AwaitShutdown(runCtx, logger.Module("CleanUp"), cfg.App.ShutdownTimeout, cleanup) {
		return errors.New(ErrShutdownTimeout, "shutdown did not complete in time")
	}

	if lost {
		return errors.New(ErrGatewayGone, "gateway connection closed")
	}
	return nil
}

func logMedia(logger *log.Logger, coord *negotiation.Coordinator) {
	for _, rm := range coord.RemoteMedia() {
		kinds := make([]string, 0, len(rm.Tracks))
		for _, t := range rm.Tracks {
			kinds = append(kinds, t.Kind)
		}
		logger.Info("Remote media",
			log.String("peer", rm.PeerID),
			log.String("role", string(rm.Role)),
			log.Any("tracks", kinds))
	}
	for _, l := range coord.Links() {
		logger.Debug("Link",
			log.String("peer", l.PeerID),
			log.String("direction", string(l.Direction)),
			log.String("phase", string(l.Phase)))
	}
}
