// routes.go - Route registration helpers
package api

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/linkfinder/backend/internal/parser"
	"github.com/linkfinder/backend/internal/session"
	"github.com/linkfinder/backend/internal/storage"
	"go.uber.org/zap"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store    storage.Store
	Sessions *session.Manager
	Loader   *parser.Loader
	Events   *EventHub
	Logger   *zap.Logger
	Version  string
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Session  SessionHandler
	Workbook WorkbookHandler
	Config   ConfigHandler
	Files    FileHandler
	Events   EventHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	events := deps.Events
	if events == nil {
		events = NewEventHub(deps.Logger)
	}
	return &Handlers{
		Health:   NewHealthHandler(deps.Version, deps.Sessions),
		Session:  NewSessionHandler(deps.Sessions, events),
		Workbook: NewWorkbookHandler(deps.Store, deps.Loader, deps.Sessions, events, deps.Logger),
		Config:   NewConfigHandler(deps.Sessions, events),
		Files:    NewFileHandler(deps.Store, deps.Loader),
		Events:   events,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/health", handlers.Health.HandleHealth)

	// Client state
	sessionGroup := e.Group("/api/sessions")
	sessionGroup.POST("", handlers.Session.HandleCreateSession)
	sessionGroup.GET("/:id", handlers.Session.HandleGetSession)
	sessionGroup.DELETE("/:id", handlers.Session.HandleDeleteSession)
	sessionGroup.POST("/:id/actions", handlers.Session.HandleDispatchAction)
	sessionGroup.GET("/:id/results", handlers.Session.HandleGetResults)
	sessionGroup.GET("/:id/results/msgpack", handlers.Session.HandleGetResultsMsgpack)

	// Workbook loading
	sessionGroup.POST("/:id/workbook", handlers.Workbook.HandleUploadWorkbook)
	sessionGroup.POST("/:id/workbook/base64", handlers.Workbook.HandleUploadWorkbookBase64)
	sessionGroup.POST("/:id/workbook/files/:fileId", handlers.Workbook.HandleLoadStoredWorkbook)

	// Local root
	configGroup := e.Group("/api/config")
	configGroup.GET("/local-root", handlers.Config.HandleGetLocalRoot)
	configGroup.PUT("/local-root", handlers.Config.HandleSetLocalRoot)
	configGroup.DELETE("/local-root", handlers.Config.HandleClearLocalRoot)

	// Stored workbooks
	fileGroup := e.Group("/api/files")
	fileGroup.GET("/recent", handlers.Files.HandleGetRecentFiles)
	fileGroup.GET("/:id", handlers.Files.HandleGetFile)
	fileGroup.PUT("/:id", handlers.Files.HandleRenameFile)
	fileGroup.DELETE("/:id", handlers.Files.HandleDeleteFile)

	e.GET("/api/ws", handlers.Events.HandleWebSocket)
}

// MiddlewareConfig selects the optional middleware
type MiddlewareConfig struct {
	EnableCORS     bool
	AllowOrigins   []string
	BodyLimit      string
	RequestLogging bool
	ShowDetails    bool
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	e.HTTPErrorHandler = ErrorHandler(logger, cfg.ShowDetails)

	if cfg.RequestLogging {
		e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			Skipper:      skipStatic,
			LogURI:       true,
			LogMethod:    true,
			LogStatus:    true,
			LogLatency:   true,
			LogError:     true,
			HandleError:  true,
			LogRemoteIP:  true,
			LogRequestID: false,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				fields := []zap.Field{
					zap.String("method", v.Method),
					zap.String("uri", v.URI),
					zap.Int("status", v.Status),
					zap.Duration("latency", v.Latency.Round(time.Microsecond)),
					zap.String("remote", v.RemoteIP),
				}
				if v.Error != nil {
					logger.Warn("request", append(fields, zap.Error(v.Error))...)
					return nil
				}
				logger.Info("request", fields...)
				return nil
			},
		}))
	}

	e.Use(middleware.Recover())

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Hijacked connections and binary payloads skip compression
			p := c.Request().URL.Path
			return p == "/api/ws" || strings.HasSuffix(p, "/msgpack")
		},
	}))

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.EnableCORS {
		origins := cfg.AllowOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}

// skipStatic keeps request logs to the API.
func skipStatic(c echo.Context) bool {
	return !strings.HasPrefix(c.Request().URL.Path, "/api/")
}
