package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/cvhariharan/alice/activity"
	"github.com/cvhariharan/alice/config"
	"github.com/cvhariharan/alice/delivery"
	"github.com/cvhariharan/alice/keys"
	"github.com/cvhariharan/alice/server"
)

func setupLogger(level zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// app holds everything built from the configuration. It is assembled once
// and shared read-only by the commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	keys     keys.Provider
	composer *activity.Composer
	client   *delivery.Client
	registry *prometheus.Registry
}

func newApp(cmd *cli.Command) (*app, error) {
	cfg := config.NewDefaultConfig()
	if err := config.LoadWithDefaults(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)
	provider := keys.FileProvider{
		PrivatePath: cfg.Keys.PrivateKeyPath,
		PublicPath:  cfg.Keys.PublicKeyPath,
	}
	identity := activity.Identity{
		Domain:   cfg.Actor.Domain,
		Username: cfg.Actor.Username,
		Slug:     cfg.Actor.Slug,
	}

	registry := prometheus.NewRegistry()
	client := delivery.NewClient(provider, identity.KeyID(),
		delivery.WithTimeout(cfg.Delivery.Timeout),
		delivery.WithMaxResponseBytes(cfg.Delivery.MaxResponseBytes),
		delivery.WithLogger(logger.Named("delivery")),
		delivery.WithMetrics(delivery.NewMetrics(registry)),
	)

	logger.Info("configuration loaded",
		zap.String("actor", identity.ActorID()),
		zap.String("http_address", cfg.App.HTTP.Address()),
		zap.Duration("delivery_timeout", cfg.Delivery.Timeout),
		zap.Bool("delivery_trigger", cfg.Admin.TriggerEnabled()))

	return &app{
		cfg:      cfg,
		logger:   logger,
		keys:     provider,
		composer: activity.NewComposer(identity),
		client:   client,
		registry: registry,
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck

	srv := server.New(server.Options{
		Composer:       a.composer,
		Deliverer:      a.client,
		Keys:           a.keys,
		Logger:         a.logger.Named("http"),
		AdminToken:     a.cfg.Admin.Token,
		RequestTimeout: a.cfg.App.HTTP.RequestTimeout,
		Gatherer:       a.registry,
	})

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("server listening", zap.String("address", a.cfg.App.HTTP.Address()))
		if err := srv.Start(a.cfg.App.HTTP.Address()); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			a.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		case <-gCtx.Done():
			a.logger.Info("context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}

func deliver(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck

	target, err := delivery.ParseInboxURL(cmd.String("inbox"))
	if err != nil {
		return err
	}

	published := time.Now()
	if p := cmd.String("published"); p != "" {
		published, err = time.Parse(time.RFC3339, p)
		if err != nil {
			return fmt.Errorf("parse --published: %w", err)
		}
	}

	doc, err := a.composer.Compose(activity.Reply{
		InReplyTo: cmd.String("in-reply-to"),
		Content:   cmd.String("content"),
		To:        cmd.String("to"),
		Published: published,
	})
	if err != nil {
		return err
	}

	res, err := a.client.Deliver(ctx, doc, target)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%d\n%s\n", res.Status, res.Body)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "alice",
		Usage: "Minimal ActivityPub actor that replies to remote notes with signed deliveries",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve host-meta, WebFinger, the actor profile and the delivery trigger",
				Action: serve,
			},
			{
				Name:   "deliver",
				Usage:  "Compose one reply and push it to a remote inbox",
				Action: deliver,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "inbox", Usage: "Remote inbox URL", Required: true},
					&cli.StringFlag{Name: "in-reply-to", Usage: "URI of the note being replied to", Required: true},
					&cli.StringFlag{Name: "content", Usage: "HTML content of the reply", Required: true},
					&cli.StringFlag{Name: "to", Usage: "Audience URI (defaults to public)"},
					&cli.StringFlag{Name: "published", Usage: "RFC 3339 publish time (defaults to now)"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "alice:", err)
		os.Exit(1)
	}
}
