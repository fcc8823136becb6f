package transport

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/singleflight"

	"github.com/boardbeam/backend/gateway"
	"github.com/boardbeam/backend/internal/log"
	"github.com/boardbeam/backend/internal/validation"
)

type RoomLookup interface {
	RoomState(ctx context.Context, roomKey string) (gateway.PublicRoomState, bool, error)
}

type RoomLister interface {
	List(ctx context.Context) (map[string]gateway.PublicRoomState, error)
}

type UpdateTrigger interface {
	Configured() bool
	Schedule(ctx context.Context)
}

type Router struct {
	rooms     RoomLookup
	directory RoomLister
	updater   UpdateTrigger
	sfList    singleflight.Group
	engine    *gin.Engine
	logger    *log.Logger
}

// NewRouter builds the gateway HTTP API. directory may be nil when the
// redis mirror is disabled.
func NewRouter(
	rooms RoomLookup,
	directory RoomLister,
	updater UpdateTrigger,
	allowedOrigins []string,
	logger *log.Logger,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware("gateway"))
	engine.Use(cors.New(corsConfig(allowedOrigins)))

	r := &Router{
		rooms:     rooms,
		directory: directory,
		updater:   updater,
		engine:    engine,
		logger:    logger,
	}

	r.setupRoutes()
	return r
}

func corsConfig(allowedOrigins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cfg
}

func (r *Router) Handler() http.Handler {
	return r.engine
}

func (r *Router) setupRoutes() {
	r.engine.GET("/healthz", r.healthCheck)
	r.engine.POST("/admin/update", r.adminUpdate)

	r.engine.GET("/api/rooms", r.listRooms)
	r.engine.GET("/api/rooms/:roomKey", r.getRoom)
}

func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

func (r *Router) adminUpdate(c *gin.Context) {
	if r.updater == nil || !r.updater.Configured() {
		c.JSON(http.StatusInternalServerError, gin.H{
			"ok":    false,
			"error": "missing_updater_token",
		})
		return
	}

	c.Header("Connection", "close")
	c.JSON(http.StatusAccepted, gin.H{
		"ok":      true,
		"started": true,
	})
	c.Writer.Flush()

	// the update restarts this process, it must not be tied to the request
	r.updater.Schedule(context.WithoutCancel(c.Request.Context()))
	r.logger.Info("Update scheduled", log.String("remote_addr", c.ClientIP()))
}

func (r *Router) listRooms(c *gin.Context) {
	if r.directory == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "directory_disabled",
		})
		return
	}

	// concurrent listings share one redis round trip
	v, err, _ := r.sfList.Do("rooms", func() (any, error) {
		return r.directory.List(c.Request.Context())
	})
	if err != nil {
		r.logger.Error("Failed to list rooms", log.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "directory_unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, v.(map[string]gateway.PublicRoomState))
}

func (r *Router) getRoom(c *gin.Context) {
	var uri RoomURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Validation failed",
			"details": validation.Fields(err),
		})
		return
	}

	state, ok, err := r.rooms.RoomState(c.Request.Context(), uri.RoomKey)
	if err != nil {
		r.logger.Error("Failed to read room state",
			log.String("room", uri.RoomKey),
			log.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "registry_unavailable",
		})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "room_not_found",
		})
		return
	}
	c.JSON(http.StatusOK, state)
}
