// ABOUTME: Gateway orchestrator wiring the routing core to its surfaces
// ABOUTME: Owns construction order, startup and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/solvencia/chatdesk/internal/agentgw"
	"github.com/solvencia/chatdesk/internal/assign"
	"github.com/solvencia/chatdesk/internal/channel/telegram"
	"github.com/solvencia/chatdesk/internal/config"
	"github.com/solvencia/chatdesk/internal/dialogue"
	"github.com/solvencia/chatdesk/internal/lease"
	"github.com/solvencia/chatdesk/internal/messaging"
	"github.com/solvencia/chatdesk/internal/notify"
	"github.com/solvencia/chatdesk/internal/presence"
	"github.com/solvencia/chatdesk/internal/router"
	"github.com/solvencia/chatdesk/internal/store"
	"github.com/solvencia/chatdesk/internal/timers"
	"github.com/solvencia/chatdesk/internal/waitqueue"
)

// Gateway wires the routing core, the contact channel and the agent surface
type Gateway struct {
	config      *config.Config
	logger      *slog.Logger
	rdb         *redis.Client
	store       *store.SQLiteStore
	timers      *timers.Registry
	broadcaster *notify.Broadcaster
	channel     *telegram.Channel // nil when the channel is disabled
	router      *router.Router
	httpServer  *http.Server
}

// New builds the full object graph from config. Nothing is started yet;
// Run owns the lifecycle.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		rdb.Close()
		return nil, fmt.Errorf("opening store: %w", err)
	}

	g := &Gateway{
		config:      cfg,
		logger:      logger,
		rdb:         rdb,
		store:       s,
		timers:      timers.NewRegistry(logger),
		broadcaster: notify.NewBroadcaster(logger),
	}

	registry := presence.NewRegistry(logger)
	queue := waitqueue.New(rdb)
	leases := lease.NewManager(rdb, cfg.Routing.LeaseTTL)
	states := dialogue.NewStateStore(rdb, cfg.Routing.StateTTL, logger)
	engine := dialogue.NewEngine(s, logger)

	var messenger messaging.Sender = disabledSender{}
	if cfg.Telegram.Enabled {
		ch, err := telegram.New(cfg.Telegram.Token, logger)
		if err != nil {
			s.Close()
			rdb.Close()
			return nil, fmt.Errorf("creating telegram channel: %w", err)
		}
		g.channel = ch
		messenger = ch
	}

	scheduler := assign.New(assign.Options{
		Chats:           s,
		Registry:        registry,
		Queue:           queue,
		Timers:          g.timers,
		States:          states,
		Messenger:       messenger,
		Notifier:        g.broadcaster,
		ResponseTimeout: cfg.Routing.ResponseTimeout,
		Logger:          logger,
	})

	g.router = router.New(router.Options{
		Chats:             s,
		Leases:            leases,
		States:            states,
		Engine:            engine,
		Scheduler:         scheduler,
		Messenger:         messenger,
		Timers:            g.timers,
		Notifier:          g.broadcaster,
		InactivityTimeout: cfg.Routing.InactivityTimeout,
		Logger:            logger,
	})

	if g.channel != nil {
		g.channel.SetHandler(g.router.HandleInbound)
	}

	agentHandler := agentgw.New(agentgw.Options{
		Chats:       s,
		Registry:    registry,
		Scheduler:   scheduler,
		Broadcaster: g.broadcaster,
		Messenger:   messenger,
		Logger:      logger,
	})

	g.httpServer = &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      agentHandler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket streams have no write deadline
	}

	return g, nil
}

// Run starts the gateway and blocks until ctx is canceled or a server fails
func (g *Gateway) Run(ctx context.Context) error {
	if err := g.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	g.logger.Info("redis connected", "addr", g.config.Redis.Addr)

	if g.channel != nil {
		if err := g.channel.Start(ctx); err != nil {
			return fmt.Errorf("starting telegram channel: %w", err)
		}
	} else {
		g.logger.Warn("telegram channel disabled, no contact traffic will arrive")
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("http server listening", "addr", g.config.Server.HTTPAddr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("shutdown signal received")
	case serverErr = <-errCh:
		g.logger.Error("http server failed", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context because the run context is already
// canceled by the time we get here.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if g.channel != nil {
		if err := g.channel.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("channel stop: %w", err))
		}
	}
	g.timers.StopAll()
	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}
	if err := g.rdb.Close(); err != nil {
		errs = append(errs, fmt.Errorf("redis close: %w", err))
	}

	g.logger.Info("gateway stopped")
	return errors.Join(errs...)
}

// disabledSender stands in when no contact channel is configured. Ready
// always reports false, so the router persists traffic without replying.
type disabledSender struct{}

func (disabledSender) Send(context.Context, string, string) error {
	return errors.New("contact channel disabled")
}

func (disabledSender) SendTyping(context.Context, string, time.Duration) error {
	return errors.New("contact channel disabled")
}

func (disabledSender) Ready() bool { return false }
