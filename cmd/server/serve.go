package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/linkfinder/backend/internal/api"
	"github.com/linkfinder/backend/internal/config"
	"github.com/linkfinder/backend/internal/lookup"
	"github.com/linkfinder/backend/internal/parser"
	"github.com/linkfinder/backend/internal/session"
	"github.com/linkfinder/backend/internal/storage"
	"github.com/linkfinder/backend/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	settings, err := lookup.ParseSettings(cfg.Lookup.BuildingMode, cfg.Lookup.RenderMode, cfg.Lookup.PathSeparator)
	if err != nil {
		return err
	}

	layout, err := config.LoadLayout(cfg.Lookup.LayoutFile)
	if err != nil {
		return err
	}

	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	prefStore, err := openPrefs()
	if err != nil {
		return fmt.Errorf("failed to open preferences: %w", err)
	}
	defer prefStore.Close()

	sessionMgr := session.NewManager(prefStore, settings, logger.Named("session"))
	loader := parser.NewLoader(nil, layout, logger.Named("parser"))
	hub := api.NewEventHub(logger.Named("events"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sessionMgr.Run(ctx,
		time.Duration(cfg.Sessions.CleanupIntervalMinutes)*time.Minute,
		time.Duration(cfg.Sessions.TimeoutMinutes)*time.Minute,
	)

	embeddedMode := web.HasEmbeddedFiles()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareConfig{
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   splitOrigins(cfg.Server.AllowOrigins),
		BodyLimit:      cfg.Server.BodyLimit,
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		ShowDetails:    cfg.Advanced.LogLevel == "debug" || verbose,
	}, logger.Named("http"))

	handlers := api.NewHandlers(&api.Dependencies{
		Store:    fileStore,
		Sessions: sessionMgr,
		Loader:   loader,
		Events:   hub,
		Logger:   logger.Named("api"),
		Version:  Version,
	})
	api.RegisterRoutes(e, handlers)

	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			logger.Warn("failed to register static routes", zap.Error(err))
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(settings, embeddedMode)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func printBanner(settings lookup.Settings, embeddedMode bool) {
	mode := "API only"
	if embeddedMode {
		mode = "Embedded UI"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           LinkFinder Server                               ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("║  Lookup:     %-45s║\n", fmt.Sprintf("building=%s render=%s", settings.BuildingMode, settings.RenderMode))
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embeddedMode {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}
}
