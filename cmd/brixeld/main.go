package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	app "github.com/brixel-ai/brixel-client"
	"github.com/brixel-ai/brixel-client/internal/config"
	"github.com/brixel-ai/brixel-client/internal/server"
	"github.com/brixel-ai/brixel-client/pkg/api"
	"github.com/brixel-ai/brixel-client/pkg/log"
	"github.com/brixel-ai/brixel-client/pkg/publish"
	"github.com/brixel-ai/brixel-client/pkg/registry"
	"github.com/brixel-ai/brixel-client/pkg/script"
)

type brixeld struct {
	cfg        *config.Config
	reg        *registry.Registry
	scripts    *script.Env
	pub        publish.Publisher
	queue      *publish.Queue
	redis      *redis.Client
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

var ErrLoadTasks = errors.New("failed to load task scripts")

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	d := &brixeld{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	d.setupLogging()

	if err := d.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (d *brixeld) run() error {
	if err := d.initializeRegistry(); err != nil {
		return err
	}
	d.initializePublisher()
	d.startServer()

	signal.Notify(d.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(d.quit)
	<-d.quit

	d.shutdown()
	return nil
}

func (d *brixeld) setupLogging() {
	level := log.ParseLevel(d.cfg.LogLevel)

	env := os.Getenv("ENV")
	logger := log.NewWithLevel(app.Name, env, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Brixel agent server starting",
		slog.String("log_level", d.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("api_host", d.cfg.APIHost),
		slog.Int("api_port", d.cfg.APIPort),
		log.AgentID(d.agentID()),
		slog.String("task_dir", d.cfg.TaskDir),
		slog.String("redis_addr", d.cfg.Redis.Addr))
}

// agentID normalizes the configured agent identity; environment values may
// carry casing or punctuation the planner rejects
func (d *brixeld) agentID() api.AgentID {
	if id := api.SanitizeID(d.cfg.AgentID); id != "" {
		return id
	}
	return api.DefaultAgentID
}

func (d *brixeld) initializeRegistry() error {
	d.reg = registry.New()
	if err := d.reg.RegisterAgent(api.AgentSpec{
		ID:   d.agentID(),
		Name: string(d.agentID()),
	}); err != nil {
		return err
	}

	if d.cfg.TaskDir == "" {
		return nil
	}

	d.scripts = script.NewEnv()
	names, err := d.scripts.RegisterDir(d.reg, d.cfg.TaskDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadTasks, err)
	}

	for _, name := range names {
		slog.Debug("Task script registered", log.TaskName(name))
	}
	slog.Info("Task scripts loaded",
		slog.String("task_dir", d.cfg.TaskDir),
		slog.Int("count", len(names)))
	return nil
}

func (d *brixeld) initializePublisher() {
	if !d.cfg.PublishRedis() {
		d.pub = publish.Discard
		return
	}

	d.redis = redis.NewClient(&redis.Options{
		Addr:     d.cfg.Redis.Addr,
		Password: d.cfg.Redis.Password,
		DB:       d.cfg.Redis.DB,
	})
	sink := publish.NewRedis(d.redis, d.cfg.Redis.Channel)
	d.queue = publish.NewQueue(sink.Send)
	d.pub = d.queue

	slog.Info("Redis event publishing enabled",
		slog.String("addr", d.cfg.Redis.Addr),
		slog.String("channel", d.cfg.Redis.Channel))
}

func (d *brixeld) startServer() {
	d.apiServer = server.NewServer(d.reg, d.agentID(), d.pub)
	mux := d.apiServer.SetupRoutes()

	d.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", d.cfg.APIHost, d.cfg.APIPort),
		Handler: mux,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", d.httpServer.Addr))
		err := d.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (d *brixeld) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), d.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := d.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	d.apiServer.CloseWebSockets()

	if d.queue != nil {
		d.queue.Flush()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}

	slog.Info("Server exited")
}
