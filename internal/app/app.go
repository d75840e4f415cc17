package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Tonic56/stock-trading-simulator/internal/config"
	httphandler "github.com/Tonic56/stock-trading-simulator/internal/handler/http"
	"github.com/Tonic56/stock-trading-simulator/internal/websocket"
	"github.com/gin-gonic/gin"
)

type App struct {
	cfg        *config.Config
	log        *slog.Logger
	httpServer *http.Server
	services   *Services
	wsManager  *websocket.Manager

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func New(log *slog.Logger, cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())

	services, err := NewServices(ctx, log, cfg)
	if err != nil {
		cancel()
		panic(fmt.Errorf("failed to init services: %w", err))
	}

	wsManager := websocket.NewManager(log, services.Trading, cfg.WebSocket.PushInterval)

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())

	httpHandler := httphandler.NewHandler(
		services.Trading,
		services.Auth,
		services.Tokens,
		wsManager,
		log,
		cfg.Token.Secret,
		cfg.Token.RefreshToken,
	)
	httpHandler.RegisterRoutes(ginEngine)

	httpServer := &http.Server{
		Addr:              net.JoinHostPort("", strconv.FormatUint(uint64(cfg.HTTP.Port), 10)),
		Handler:           ginEngine,
		ReadHeaderTimeout: cfg.HTTP.Timeout,
	}

	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		services:   services,
		wsManager:  wsManager,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (a *App) Run() error {
	errChan := make(chan error, 1)
	a.log.Info("starting application components...")

	go func() {
		a.log.Info("websocket manager started")
		a.wsManager.Run(a.ctx)
		a.log.Info("websocket manager stopped")
	}()

	go a.runTokenCleanup()

	go func() {
		if err := a.runHTTP(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		a.log.Warn("shutting down application due to an error", "error", err)
		a.Stop()
		return err
	case <-a.ctx.Done():
		return nil
	}
}

func (a *App) runTokenCleanup() {
	ticker := time.NewTicker(a.cfg.Token.TokenCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.log.Info("running expired tokens cleanup...")
			deleted, err := a.services.Tokens.DeleteExpiredTokens(a.ctx)
			if err != nil {
				a.log.Error("failed to cleanup expired tokens", slog.Any("error", err))
				continue
			}
			a.log.Info("expired tokens cleanup finished successfully", slog.Int64("deleted", deleted))
		}
	}
}

func (a *App) Stop() {
	a.stopOnce.Do(func() {
		a.log.Info("stopping application components gracefully...")

		a.cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.HTTP.Timeout)
		defer shutdownCancel()

		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("failed to gracefully shutdown HTTP server", "error", err)
		} else {
			a.log.Info("HTTP server stopped")
		}

		a.services.Close()
	})
}

func (a *App) runHTTP() error {
	const op = "app.runHTTP"

	a.log.Info("HTTP server is running", "addr", a.httpServer.Addr)

	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
