package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Zereker/mjpeg"
	"golang.org/x/sync/errgroup"
)

// snapshot connects to an MJPEG camera and writes every frame to a directory.
//
//	go run ./example -config camera.yaml -out frames -limit 100
func main() {
	configPath := flag.String("config", "camera.yaml", "path to the YAML configuration")
	outDir := flag.String("out", "frames", "directory receiving the frames")
	limit := flag.Int("limit", 0, "stop after this many frames (0 = until interrupted)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := mjpeg.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}

	extractor, err := mjpeg.NewExtractor(cfg.Endpoint, append(cfg.Options(), mjpeg.LoggerOption(logger))...)
	if err != nil {
		slog.Error("failed to create extractor", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return extractor.Run(ctx)
	})

	group.Go(func() error {
		defer extractor.Frames().Drain()
		return consume(ctx, extractor, *outDir, *limit)
	})

	err = group.Wait()
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		slog.Info("done")
	case errors.Is(err, mjpeg.ErrStreamEnded):
		slog.Info("camera closed the stream")
	default:
		slog.Error("capture failed", "error", err)
		os.Exit(1)
	}
}

func consume(ctx context.Context, extractor *mjpeg.Extractor, dir string, limit int) error {
	for n := 1; limit == 0 || n <= limit; n++ {
		frame, err := extractor.Next(ctx)
		if errors.Is(err, mjpeg.ErrQueueClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := save(frame, dir, n); err != nil {
			frame.Release()
			return err
		}
		frame.Release()
	}
	return extractor.Stop()
}

func save(frame *mjpeg.Frame, dir string, n int) error {
	if n == 1 {
		if h, err := frame.JFIF(); err == nil {
			slog.Info("first frame",
				"bytes", frame.Len(),
				"jfif", h.Version(),
				"density", fmt.Sprintf("%dx%d %s", h.XDensity, h.YDensity, h.Units),
				"thumbnail", h.HasThumbnail())
		} else {
			slog.Warn("first frame has no JFIF header", "error", err)
		}
	}

	name := filepath.Join(dir, fmt.Sprintf("frame%06d.jpg", n))
	return os.WriteFile(name, frame.Bytes(), 0o644)
}
