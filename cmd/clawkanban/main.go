package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Strob0t/clawkanban/internal/adapter/fsnotify"
	cfhttp "github.com/Strob0t/clawkanban/internal/adapter/http"
	cfnats "github.com/Strob0t/clawkanban/internal/adapter/nats"
	cfotel "github.com/Strob0t/clawkanban/internal/adapter/otel"
	"github.com/Strob0t/clawkanban/internal/adapter/ws"
	"github.com/Strob0t/clawkanban/internal/config"
	"github.com/Strob0t/clawkanban/internal/logger"
	"github.com/Strob0t/clawkanban/internal/middleware"
	"github.com/Strob0t/clawkanban/internal/port/broadcast"
	"github.com/Strob0t/clawkanban/internal/service"
)

const mirrorBuffer = 256

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer closeLog.Close()

	slog.Info("config loaded",
		"file", cfgPath,
		"port", cfg.Server.Port,
		"data_root", cfg.Data.Root,
		"sessions_dir", cfg.Sessions.Dir,
		"log_level", cfg.Logging.Level,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---
	shutdownOtel, err := cfotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(sctx); err != nil {
			slog.Warn("otel shutdown failed", "error", err)
		}
	}()
	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---
	queue := connectNATS(ctx, cfg.NATS)
	if queue != nil {
		defer func() { _ = queue.Close() }()
	}

	c, err := newCore(ctx, cfg, queue, metrics)
	if err != nil {
		return err
	}
	defer c.Close()

	hub := ws.NewHub(cfg.WS.SendBuffer, metrics)
	var bc broadcast.Broadcaster = hub
	if queue != nil {
		mirror := cfnats.NewMirror(queue, cfg.NATS.SubjectPrefix, mirrorBuffer)
		defer mirror.Close()
		bc = broadcast.Multi{hub, mirror}
	}

	// --- Services ---
	board := service.NewBoardService(c.store, c.costs, bc, cfg.Data.DefaultProject, metrics)
	if _, err := board.BackfillIdentifiers(ctx); err != nil {
		slog.Warn("identifier backfill failed", "error", err)
	}

	if cfg.Watcher.Enabled {
		fw, err := fsnotify.New()
		if err != nil {
			return fmt.Errorf("file watcher: %w", err)
		}
		defer func() { _ = fw.Close() }()
		watcher := service.NewChangeWatcher(c.store, c.store.Root(), fw, c.costs, bc, cfg.Watcher.Debounce, metrics)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Error("change watcher stopped", "error", err)
			}
		}()
	}

	// --- HTTP ---
	handlers := &cfhttp.Handlers{
		Board: board,
		Cost:  c.costs,
		Hub:   hub,
		WS: ws.NewHandler(hub, func(ctx context.Context) (any, error) {
			projects, tasks, err := board.Snapshot(ctx)
			return ws.InitEvent{Projects: projects, Tasks: tasks}, err
		}),
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(time.Minute, 10*time.Minute)
	defer stopCleanup()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(cfhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cfotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(cfhttp.SecurityHeaders)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(limiter.Handler)
	cfhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// Live connections end with the process context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
