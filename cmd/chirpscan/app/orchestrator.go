package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/radar-pulse/internal/capture"
	"github.com/roman-kulish/radar-pulse/internal/dfs"
	"github.com/roman-kulish/radar-pulse/internal/storage"
)

const maxBatchSize = 100

// WithMaxBatchSize sets the maximum number of pulses to store within a single
// database transaction.
func WithMaxBatchSize(size int) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.maxBatchSize = size
	}
}

// WithEventBuffer sets the capacity and flush count of the per source buffers
// reordering pulses by TSF.
func WithEventBuffer(capacity, flushCount int) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.bufferCapacity = capacity
		o.flushCount = flushCount
	}
}

// Counters summarises a capture run
type Counters struct {
	Reports int64 // Reports received from sources
	Dropped int64 // Reports not describing a usable pulse
	Pulses  int64 // Pulses stored
	Checked int64 // Pulses inside the width gate
	Chirps  int64 // Pulses classified as chirps
	Failed  int64 // Pulses lost to storage errors
}

// Orchestrator runs capture sources concurrently, classifies their reports
// and stores the resulting pulses, one storage session per source.
type Orchestrator struct {
	sources   []*capture.Source
	configs   map[string]*SourceConfig
	sessions  map[string]int64
	buffers   map[string]*capture.EventBuffer
	processor *dfs.Processor

	logger *slog.Logger
	store  storage.Store

	maxBatchSize   int
	bufferCapacity int
	flushCount     int
	counters       Counters

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(store storage.Store, processor *dfs.Processor, logger *slog.Logger, options ...func(*Orchestrator)) *Orchestrator {
	o := Orchestrator{
		configs:        make(map[string]*SourceConfig),
		sessions:       make(map[string]int64),
		buffers:        make(map[string]*capture.EventBuffer),
		processor:      processor,
		logger:         logger,
		store:          store,
		maxBatchSize:   maxBatchSize,
		bufferCapacity: defaultBufferCapacity,
		flushCount:     defaultFlushCount,
	}

	for _, option := range options {
		option(&o)
	}

	return &o
}

// CreateSource creates a new capture source and registers it with the
// Orchestrator. Disabled sources are skipped.
func (o *Orchestrator) CreateSource(config *SourceConfig) error {
	if !config.Enabled {
		return nil
	}

	if _, ok := o.configs[config.Name]; ok {
		return fmt.Errorf("source %s already exists", config.Name)
	}

	handler, err := capture.New(config.Type, &config.Config)
	if err != nil {
		return fmt.Errorf("creating %s source: %w", config.Type, err)
	}

	options := []func(*capture.Source){capture.WithLogger(o.logger)}
	if config.ParseErrorsThreshold > 0 {
		options = append(options, capture.WithParseErrorsThreshold(config.ParseErrorsThreshold))
	}

	o.sources = append(o.sources, capture.NewSource(config.Name, handler, options...))
	o.configs[config.Name] = config

	return nil
}

// Counters returns the summary of the last run. It must not be called while
// Run is in progress.
func (o *Orchestrator) Counters() Counters {
	return o.counters
}

// Run begins capturing across all sources and blocks until every source has
// stopped, either by running out of input or by cancellation of ctx.
func (o *Orchestrator) Run(ctx context.Context) error {
	if len(o.sources) == 0 {
		return fmt.Errorf("no sources to capture")
	}

	o.counters = Counters{}
	for _, src := range o.sources {
		sessionID, err := o.store.CreateSession(ctx, src.Kind(), src.SourceID(), o.configs[src.SourceID()])
		if err != nil {
			return fmt.Errorf("creating session for source %s: %w", src.SourceID(), err)
		}

		buffer, err := capture.NewEventBuffer(o.bufferCapacity, o.flushCount)
		if err != nil {
			return fmt.Errorf("creating buffer for source %s: %w", src.SourceID(), err)
		}

		o.sessions[src.SourceID()] = sessionID
		o.buffers[src.SourceID()] = buffer

		o.logger.Info("session created",
			slog.String("sourceID", src.SourceID()),
			slog.Int64("sessionID", sessionID))
	}

	ctx, o.cancel = context.WithCancel(ctx)
	defer o.cancel()

	startGate := make(chan struct{})
	reports := make(chan capture.Report, len(o.sources)*o.bufferCapacity)
	handlerDone := make(chan struct{})
	errs := make([]error, len(o.sources))

	// Storage must outlive the capture context so pending pulses are kept on shutdown
	storeCtx := context.WithoutCancel(ctx)

	go func() {
		defer close(handlerDone)
		o.handleReports(storeCtx, reports)
	}()

	for i, src := range o.sources {
		o.wg.Add(1)
		go o.beginCapture(ctx, src, reports, startGate, &errs[i])
	}

	close(startGate) // Start the capturing goroutines

	o.wg.Wait()
	o.cancel()

	close(reports) // Signal the handler there are no more reports
	<-handlerDone

	for sourceID, buffer := range o.buffers {
		o.storePulses(storeCtx, sourceID, buffer.DrainAll())
	}

	o.logger.Info("capture finished",
		slog.String("reports", humanize.Comma(o.counters.Reports)),
		slog.String("dropped", humanize.Comma(o.counters.Dropped)),
		slog.String("pulses", humanize.Comma(o.counters.Pulses)),
		slog.String("checked", humanize.Comma(o.counters.Checked)),
		slog.String("chirps", humanize.Comma(o.counters.Chirps)))

	clear(o.sessions)
	clear(o.buffers)
	return errors.Join(errs...)
}

func (o *Orchestrator) beginCapture(ctx context.Context, src *capture.Source, reports chan<- capture.Report, startGate chan struct{}, errp *error) {
	defer o.wg.Done()

	<-startGate

	done, err := src.BeginCapture(ctx, reports)
	if err != nil {
		*errp = fmt.Errorf("source %s: %w", src.SourceID(), err)
		o.logger.Error(err.Error(), slog.String("sourceID", src.SourceID()))
		o.cancel() // signal to other goroutines about fatal
		return
	}

	// Wait for the capture goroutine to finish
	if err = <-done; err != nil {
		*errp = fmt.Errorf("source %s: %w", src.SourceID(), err)
	}
}

func (o *Orchestrator) handleReports(ctx context.Context, reports <-chan capture.Report) {
	for r := range reports {
		o.counters.Reports++

		pe, err := o.processor.Process(r.PhyError)
		if err != nil {
			o.counters.Dropped++
			o.logger.Debug(fmt.Sprintf("report dropped: %s", err.Error()),
				slog.String("sourceID", r.SourceID),
				slog.Uint64("tsf", r.TSF))
			continue
		}

		buffer := o.buffers[r.SourceID]
		if err = buffer.Insert(pe); err != nil {
			o.logger.Error(err.Error())
			continue
		}

		if buffer.IsFull() {
			o.storePulses(ctx, r.SourceID, buffer.Flush())
		}
	}
}

func (o *Orchestrator) storePulses(ctx context.Context, sourceID string, events []*dfs.PulseEvent) {
	sessionID := o.sessions[sourceID]

	for chunk := range slices.Chunk(events, o.maxBatchSize) {
		if err := o.store.StorePulses(ctx, sessionID, chunk); err != nil {
			o.counters.Failed += int64(len(chunk))
			o.logger.Error(fmt.Sprintf("storing pulses: %s", err.Error()), slog.String("sourceID", sourceID))
			continue
		}

		for _, pe := range chunk {
			o.counters.Pulses++
			if pe.Checked {
				o.counters.Checked++
			}
			if pe.Chirp {
				o.counters.Chirps++
				o.logger.Info("chirp detected",
					slog.String("sourceID", sourceID),
					slog.Uint64("tsf", pe.TSF),
					slog.Int("frequency", pe.Frequency),
					slog.Int("width", pe.Width))
			}
		}
	}
}
