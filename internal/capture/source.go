package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/roman-kulish/radar-pulse/internal/dfs"
)

const (
	// ParseErrorsThreshold defines the number of consecutive parse errors allowed
	ParseErrorsThreshold = 5

	// maxLineSize fits a wide capture with plenty of FFT samples, hex encoded
	maxLineSize = 256 * 1024
)

var (
	// ErrTooManyParseErrors is returned when the number of consecutive parse errors exceeds the threshold
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

	// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
	ErrBrokenPipe = errors.New("broken pipe")
)

// Handler interface defines the methods required for running a capture tool
type Handler interface {
	Cmd(ctx context.Context) *exec.Cmd
	Parse(line string) (*dfs.PhyError, error)
	Kind() string
}

// Report is a PHY-error report tagged with the source it came from
type Report struct {
	SourceID string
	*dfs.PhyError
}

// WithLogger sets the logger for the source
func WithLogger(logger *slog.Logger) func(s *Source) {
	return func(s *Source) {
		s.logger = logger.With(
			slog.String("source", s.handler.Kind()),
			slog.String("sourceID", s.sourceID),
		)
	}
}

// WithParseErrorsThreshold sets the threshold for consecutive parse errors
func WithParseErrorsThreshold(threshold uint8) func(s *Source) {
	return func(s *Source) {
		s.parseErrorsThreshold = threshold
	}
}

// Source represents a capture tool producing radar reports that can be
// started and stopped
type Source struct {
	sourceID string
	handler  Handler

	isCapturing atomic.Bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	parseErrorsThreshold uint8
	logger               *slog.Logger
}

// NewSource creates a new Source instance with a discard logger
func NewSource(sourceID string, h Handler, options ...func(s *Source)) *Source {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	s := Source{
		sourceID:             sourceID,
		handler:              h,
		logger:               logger,
		parseErrorsThreshold: ParseErrorsThreshold,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// SourceID returns the configured source name
func (s *Source) SourceID() string {
	return s.sourceID
}

// Kind returns the handler kind
func (s *Source) Kind() string {
	return s.handler.Kind()
}

// BeginCapture starts the capture tool and sends parsed reports to the
// reports channel. The returned channel is closed when capturing stops and
// receives the joined errors, if any.
func (s *Source) BeginCapture(ctx context.Context, reports chan<- Report) (<-chan error, error) {
	if !s.isCapturing.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("source is already running")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	cmd := s.handler.Cmd(ctx)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.isCapturing.Store(false) // Reset running state on error
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.isCapturing.Store(false) // Reset running state on error
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		s.isCapturing.Store(false) // Reset running state on error
		return nil, fmt.Errorf("error starting command: %w", err)
	}

	captureStopped := make(chan error, 1)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(captureStopped)

		s.logger.Info("starting capture...")

		done := make(chan error, 3) // expects three results from three goroutines

		// cmd.Wait closes the pipes, so it must only run once both are drained
		var readers sync.WaitGroup
		readers.Add(2)

		go func() {
			defer readers.Done()
			s.handleStdout(ctx, stdout, reports, done)
		}()
		go func() {
			defer readers.Done()
			s.handleStderr(stderr, done)
		}()
		go s.handleCmdWait(ctx, cmd, &readers, done)

		var errs []error
		for i := 0; i < cap(done); i++ {
			if err := <-done; err != nil {
				s.cancel() // cancel context on error
				s.logger.Error(err.Error())

				errs = append(errs, err)
			}
		}

		s.logger.Info("capture stopped")
		s.isCapturing.Store(false)

		if len(errs) > 0 {
			captureStopped <- errors.Join(errs...)
		}
	}()

	return captureStopped, nil
}

// Stop cancels the capture tool and waits for the goroutines to finish
func (s *Source) Stop() {
	if !s.isCapturing.Load() {
		return // already stopped
	}

	s.cancel()
	s.wg.Wait()
}

// IsCapturing returns true if the source is running
func (s *Source) IsCapturing() bool {
	return s.isCapturing.Load()
}

// handleStdout reads from stdout, parses and sends reports to the reports channel.
func (s *Source) handleStdout(ctx context.Context, stdout io.Reader, reports chan<- Report, done chan<- error) {
	var parseErrors uint8

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		e, err := s.handler.Parse(line)
		if errors.Is(err, ErrNoReport) {
			continue
		}
		if err != nil {
			parseErrors++
			s.logger.Warn(fmt.Sprintf("error parsing report: %s", err.Error()), slog.String("line", line))

			if parseErrors >= s.parseErrorsThreshold {
				done <- ErrTooManyParseErrors
				return
			}

			continue
		}

		parseErrors = 0 // reset counter

		select {
		case reports <- Report{SourceID: s.sourceID, PhyError: e}:
		case <-ctx.Done():
			// keep draining so the tool is not blocked on a full pipe
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// handleStderr reads from stderr and logs it.
func (s *Source) handleStderr(stderr io.Reader, done chan<- error) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		s.logger.Warn(fmt.Sprintf("%s >> %s", s.handler.Kind(), line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// handleCmdWait waits for the readers and the command to exit and sends the
// error to the done channel. Exits caused by cancellation are not errors.
func (s *Source) handleCmdWait(ctx context.Context, cmd *exec.Cmd, readers *sync.WaitGroup, done chan<- error) {
	readers.Wait()

	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		done <- fmt.Errorf("command exited with error: %w", err)
		return
	}

	done <- nil
}
