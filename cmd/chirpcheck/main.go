package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/radar-pulse/cmd/chirpcheck/app"
	"github.com/roman-kulish/radar-pulse/internal/dfs"
	"github.com/roman-kulish/radar-pulse/internal/dfs/chirp"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}))

	th := chirp.DefaultThresholds()

	var (
		inputPath string
		verbose   bool
		minWidth  int
		maxWidth  int
	)
	flag.StringVar(&inputPath, "f", "-", "Capture file to check, '-' reads stdin")
	flag.BoolVar(&verbose, "v", false, "Log detector diagnostics")
	flag.IntVar(&minWidth, "min-width", dfs.MinChirpPulseWidth, "Lower pulse width bound in µs, exclusive")
	flag.IntVar(&maxWidth, "max-width", dfs.MaxChirpPulseWidth, "Upper pulse width bound in µs, exclusive")
	flag.IntVar(&th.NumSamples, "samples", th.NumSamples, "FFT samples required for a verdict")
	flag.IntVar(&th.BinDeltaMin, "delta-min", th.BinDeltaMin, "Minimum absolute bin delta")
	flag.IntVar(&th.BinDeltaMax, "delta-max", th.BinDeltaMax, "Maximum absolute bin delta")
	flag.IntVar(&th.MaxDiff, "max-diff", th.MaxDiff, "Maximum difference between consecutive deltas")
	flag.Parse()

	if verbose {
		logLevel.Set(slog.LevelDebug)
	}

	if err := th.Validate(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	var input io.Reader = os.Stdin
	if inputPath != "-" {
		f, err := os.Open(inputPath)
		if err != nil {
			logger.Error(fmt.Sprintf("failed to open capture: %s", err.Error()), slog.String("path", inputPath))
			os.Exit(1)
		}
		defer f.Close()
		input = f
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	processor := dfs.NewProcessor(
		dfs.WithLogger(logger),
		dfs.WithDetector(chirp.NewDetector(chirp.WithLogger(logger), chirp.WithThresholds(th))),
		dfs.WithWidthGate(minWidth, maxWidth),
	)

	sum, err := app.Check(ctx, input, os.Stdout, processor, logger)
	logger.Info(sum.String())
	if err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
