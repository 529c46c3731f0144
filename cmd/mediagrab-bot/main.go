package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/dkamalov/mediagrab"
	"github.com/dkamalov/mediagrab/async"
	"github.com/dkamalov/mediagrab/bot"
	"github.com/dkamalov/mediagrab/database"
	"github.com/dkamalov/mediagrab/internal/filecache"
	"github.com/dkamalov/mediagrab/internal/telegram"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	zap.RedirectStdLog(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = mediagrab.WithLogger(ctx, logger)

	app := &cli.App{
		Name:  "mediagrab-bot",
		Usage: "chat bot that downloads media from YouTube, TikTok and Instagram",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "token",
				Usage:    "bot API `TOKEN`",
				EnvVars:  []string{"MEDIAGRAB_TOKEN"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "database",
				Value:   "mediagrab.db",
				Usage:   "sqlite database `PATH` for users and activity",
				EnvVars: []string{"MEDIAGRAB_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "file-cache",
				Value:   "files.db",
				Usage:   "delivered-file cache `PATH`",
				EnvVars: []string{"MEDIAGRAB_FILE_CACHE"},
			},
			&cli.StringFlag{
				Name:    "temp-dir",
				Usage:   "scratch `DIR` for in-flight downloads",
				EnvVars: []string{"MEDIAGRAB_TEMP_DIR"},
			},
			&cli.IntFlag{
				Name:  "workers",
				Value: 4,
				Usage: "maximum concurrent downloads",
			},
			&cli.IntFlag{
				Name:  "rate-limit",
				Value: 50,
				Usage: "actions per user per minute",
			},
			&cli.DurationFlag{
				Name:  "session-ttl",
				Value: 15 * time.Minute,
				Usage: "how long format menus stay valid",
			},
		},
		Action: func(c *cli.Context) error {
			return run(ctx, logger, c)
		},
		HideHelpCommand: true,
	}

	result := async.Run(func() error { return app.Run(os.Args) })

	select {
	case err = <-result:
		if err != nil {
			logger.Fatal(err.Error())
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		stop()
	}
}

func run(ctx context.Context, logger *zap.Logger, c *cli.Context) error {
	db, err := database.NewDatabase(c.String("database"), logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	files, err := filecache.Open(c.String("file-cache"))
	if err != nil {
		return err
	}
	defer files.Close()

	transport, err := telegram.New(c.String("token"))
	if err != nil {
		return err
	}
	logger.Sugar().Infow("connected", "username", transport.Username())

	config := bot.Config{
		SessionTTL: c.Duration("session-ttl"),
		RateLimit:  c.Int("rate-limit"),
		Workers:    c.Int("workers"),
		TempDir:    c.String("temp-dir"),
	}
	b, err := bot.New(config, transport,
		bot.WithDatabase(db),
		bot.WithFileCache(files),
	)
	if err != nil {
		return err
	}
	defer b.Close()

	return transport.Run(ctx, b)
}
