// Command escrowd serves the escrow ledger API and runs the dispatch
// workers that carry out its side effects.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/debnit/MsmeBazaar-sub000/api"
	"github.com/debnit/MsmeBazaar-sub000/dlq"
	"github.com/debnit/MsmeBazaar-sub000/engine"
	"github.com/debnit/MsmeBazaar-sub000/internal/config"
	"github.com/debnit/MsmeBazaar-sub000/ledger"
	"github.com/debnit/MsmeBazaar-sub000/store/postgres"
	redisstore "github.com/debnit/MsmeBazaar-sub000/store/redis"
	"github.com/debnit/MsmeBazaar-sub000/tasks"
)

func main() {
	configFile := flag.String("config", "", "path to an env-format config file (default ./.env)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("escrowd exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	pg, err := postgres.New(ctx, cfg.PostgresDSN,
		postgres.WithLogger(logger),
		postgres.WithLockTimeout(cfg.PostgresLockTTL),
	)
	if err != nil {
		return err
	}
	defer pg.Close() //nolint:errcheck // pool close
	if err := pg.Migrate(ctx); err != nil {
		return err
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close() //nolint:errcheck // client close
	broker := redisstore.New(rdb, redisstore.WithPrefix(cfg.RedisPrefix), redisstore.WithLogger(logger))
	if err := broker.Migrate(ctx); err != nil {
		// Scripts load lazily on first use; a broker that is down at boot
		// only means the dispatcher starts in fallback mode.
		logger.Warn("redis unavailable at boot", slog.String("error", err.Error()))
	}

	adapters, err := buildAdapters(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer adapters.Close()

	eng, err := engine.New(
		engine.WithStore(broker),
		engine.WithConfig(cfg.Dispatch()),
		engine.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	tasks.Register(eng.Registry(), &tasks.Handlers{
		Notifier:   adapters.Notifier,
		Compliance: adapters.Compliance,
		Valuator:   adapters.Valuator,
		Documents:  adapters.Documents,
		Dispatcher: eng,
		Logger:     logger,
	})

	svc := ledger.NewService(pg, eng,
		ledger.WithLogger(logger),
		ledger.WithConfig(cfg.Ledger()),
	)
	relay := ledger.NewRelay(svc,
		ledger.WithRelayInterval(cfg.OutboxInterval),
		ledger.WithRelayMinAge(cfg.OutboxMinAge),
		ledger.WithRelayLogger(logger),
	)

	janitor, err := dlq.NewJanitor(broker, cfg.DLQSchedule,
		dlq.WithRetention(cfg.DLQRetention),
		dlq.WithJanitorLogger(logger),
	)
	if err != nil {
		return err
	}

	apiOpts := []api.Option{api.WithLogger(logger), api.WithRequestTimeout(cfg.RequestTimeout)}
	if len(cfg.CORSOrigins) > 0 {
		apiOpts = append(apiOpts, api.WithCORS(cfg.CORSOrigins...))
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.New(svc, eng, apiOpts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := eng.Start(ctx); err != nil {
		return err
	}
	if err := janitor.Start(ctx); err != nil {
		return err
	}
	if err := relay.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		return errors.Join(
			srv.Shutdown(shutdownCtx),
			relay.Stop(shutdownCtx),
			janitor.Stop(shutdownCtx),
			eng.Stop(shutdownCtx),
		)
	})
	return g.Wait()
}
