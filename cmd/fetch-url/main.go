package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/dkamalov/mediagrab"
	"github.com/dkamalov/mediagrab/async"
	"github.com/dkamalov/mediagrab/generic"
	"github.com/dkamalov/mediagrab/pending"
	"github.com/dkamalov/mediagrab/provider/youtube"
	_ "github.com/dkamalov/mediagrab/providers"
	"github.com/dkamalov/mediagrab/util"
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
		Name:  "fetch-url",
		Usage: "resolve and download a single media URL",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "target",
				Value: ".",
				Usage: "save downloaded media to `DIR`",
			},
			&cli.IntFlag{
				Name:  "format",
				Value: 1,
				Usage: "1-based `INDEX` into the resolved format list",
			},
			&cli.Int64Flag{
				Name:  "max-bytes",
				Value: 0,
				Usage: "abort when the download exceeds `N` bytes (0 = unlimited)",
			},
		},
		Action: func(c *cli.Context) error {
			for _, source := range c.Args().Slice() {
				if err := fetch(ctx, source, c.String("target"), c.Int("format"), c.Int64("max-bytes")); err != nil {
					return err
				}
			}
			return nil
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
		logger.Error(ctx.Err().Error())
		stop()
	}
}

func fetch(ctx context.Context, source string, target string, formatIndex int, maxBytes int64) error {
	logger := mediagrab.Logger(ctx).Sugar()
	logger.Infof("Downloading from %s into %s", source, target)

	match, err := mediagrab.DefaultProviderRegistry.Match(util.CleanURL(source))
	if err != nil {
		return fmt.Errorf("match failed: %w", err)
	}

	logger.Info("Resolving formats...")
	resolved, err := match.Request.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolution failed: %w", err)
	}
	for i, format := range resolved.Formats {
		logger.Infof("  %d. %s", i+1, format.Label())
	}
	if formatIndex < 1 || formatIndex > len(resolved.Formats) {
		return fmt.Errorf("format index %d out of range (1-%d)", formatIndex, len(resolved.Formats))
	}
	format := resolved.Formats[formatIndex-1]

	sourceURL := format.SourceURL
	filename := deliveryName(resolved.Title, format, formatIndex)
	if format.Pending {
		logger.Info("Waiting for conversion...")
		resolver := pending.NewResolver(youtube.NewPendingChecker(youtube.NewAudioConfig()))
		final, err := resolver.Await(ctx, format.SourceURL)
		if err != nil {
			return fmt.Errorf("conversion failed: %w", err)
		}
		sourceURL = final.FileURL
		if final.FileName != "" {
			filename = util.SanitizeTitle(final.FileName)
		}
	}

	logger.Info("Starting download...")
	bar := progressbar.DefaultBytes(1, "downloading")
	job := mediagrab.DownloadJob{
		URL:      sourceURL,
		DestPath: filepath.Join(target, filename),
		MaxBytes: maxBytes,
		Progress: func(downloaded, expected int64) {
			if expected > 0 && bar.GetMax64() != expected {
				bar.ChangeMax64(expected)
			}
			generic.Unwrap_(bar.Set64(downloaded))
		},
	}
	if err := mediagrab.NewDownloader(nil).Download(ctx, job); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	logger.Info("Download complete!")

	return nil
}

func deliveryName(title string, format mediagrab.Format, index int) string {
	name := util.SanitizeTitle(title)
	if name == "" {
		name = "media-" + strconv.Itoa(index)
	}
	container := format.Container
	if container == "" {
		container = "bin"
	}
	return name + "." + container
}
