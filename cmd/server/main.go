package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"estatehub/internal/config"
	"estatehub/internal/domain"
	"estatehub/internal/httpserver"
	"estatehub/internal/notify"
	"estatehub/internal/obs"
	"estatehub/internal/security"
	"estatehub/internal/service"
	"estatehub/internal/store/postgres"
	"estatehub/internal/store/sqlite"
	"estatehub/internal/store/sqlstore"
	"estatehub/internal/ws"
)

const version = "1.0.0"

func main() {
	app := &cli.App{
		Name:    "estatehub",
		Usage:   "Inquiry and messaging API for property listings",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{"ESTATEHUB_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the HTTP and websocket server",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "migrate", Usage: "Apply the schema before serving"},
				},
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Apply the database schema and exit",
				Action: migrate,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func load(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, obs.NewLogger(cfg.App.Env, cfg.App.LogLevel), nil
}

func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, sqlstore.Dialect, error) {
	if cfg.Database.Driver == "postgres" {
		db, err := postgres.Open(ctx, cfg.Database.URL)
		return db, sqlstore.Postgres, err
	}
	db, err := sqlite.Open(ctx, cfg.Database.URL)
	return db, sqlstore.SQLite, err
}

func migrateDB(ctx context.Context, db *sql.DB, dialect sqlstore.Dialect) error {
	if dialect == sqlstore.Postgres {
		return postgres.Migrate(ctx, db)
	}
	return sqlite.Migrate(ctx, db)
}

func migrate(c *cli.Context) error {
	cfg, log, err := load(c)
	if err != nil {
		return err
	}
	db, dialect, err := openDB(c.Context, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrateDB(c.Context, db, dialect); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("schema applied", "driver", dialect.String())
	return nil
}

// buildNotifier wires the channels enabled by cfg. Brokered channels run behind
// a background publisher. Closers run on shutdown in order.
func buildNotifier(cfg *config.Config, hub *ws.Hub, log *slog.Logger) (domain.Notifier, []func() error, error) {
	var closers []func() error
	n := notify.NewComposite(notify.NewLog(log), notify.NewPush(hub))
	brokered := notify.NewComposite()
	enabled := false

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := notify.NewProducer(cfg.Kafka.Brokers, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka producer: %w", err)
		}
		closers = append(closers, producer.Close)
		brokered.Add(notify.NewKafka(producer, cfg.Kafka.Topic))
		enabled = true
		log.Info("kafka events enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	if cfg.Notify.RedisAddr != "" {
		client := notify.NewTaskClient(cfg.Notify.RedisAddr)
		closers = append(closers, client.Close)
		brokered.Add(notify.NewEmail(client, cfg.Notify.EmailQueue))
		enabled = true
		log.Info("email notifications enabled", "queue", cfg.Notify.EmailQueue)
	}
	if enabled {
		async := notify.NewAsync(brokered, cfg.Notify.QueueSize, cfg.NotifyTimeout(), log)
		closers = append([]func() error{async.Close}, closers...)
		n.Add(async)
	}
	return n, closers, nil
}

func serve(c *cli.Context) error {
	cfg, log, err := load(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if c.Bool("migrate") {
		if err := migrateDB(ctx, db, dialect); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	hub := ws.NewHub(log)
	notifier, closers, err := buildNotifier(cfg, hub, log)
	if err != nil {
		return err
	}
	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				log.Warn("close notifier", "err", err)
			}
		}
	}()

	store := sqlstore.New(db, dialect)
	msgs := service.NewMessageService(store, notifier, log, service.MessageConfig{
		MaxContentLength: cfg.Messages.MaxLength,
	})
	inqs := service.NewInquiryService(store, service.NewConversationResolver(log), msgs, notifier, log)

	srv := &http.Server{
		Addr: cfg.HTTPAddr(),
		Handler: httpserver.NewRouter(httpserver.Deps{
			DB:                   store.DB(),
			Log:                  log,
			Tokens:               security.NewTokenService(cfg.Auth.JWTSecret, cfg.AccessTokenTTL()),
			Inquiries:            inqs,
			Messages:             msgs,
			Hub:                  hub,
			CORSOrigins:          cfg.HTTP.CORSOrigins,
			InquiryRatePerMinute: cfg.Inquiries.RatePerMinute,
			TrustProxy:           cfg.HTTP.TrustProxy,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting estatehub", "addr", srv.Addr, "driver", dialect.String(), "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
