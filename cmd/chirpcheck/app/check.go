package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/radar-pulse/internal/capture"
	"github.com/roman-kulish/radar-pulse/internal/dfs"
)

const maxLineSize = 256 * 1024

// Summary counts the verdicts of a check run
type Summary struct {
	Lines   int64
	Invalid int64 // Lines that failed to parse
	Dropped int64 // Reports without a usable pulse
	Pulses  int64
	Checked int64
	Chirps  int64
}

func (s Summary) String() string {
	return fmt.Sprintf("%s lines, %s invalid, %s dropped, %s pulses, %s checked, %s chirps",
		humanize.Comma(s.Lines),
		humanize.Comma(s.Invalid),
		humanize.Comma(s.Dropped),
		humanize.Comma(s.Pulses),
		humanize.Comma(s.Checked),
		humanize.Comma(s.Chirps))
}

// Check classifies every capture line read from r and writes one verdict per
// report to w. Malformed lines are logged and counted, they do not stop the run.
func Check(ctx context.Context, r io.Reader, w io.Writer, processor *dfs.Processor, logger *slog.Logger) (Summary, error) {
	var sum Summary

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		e, err := capture.ParseLine(scanner.Text())
		if errors.Is(err, capture.ErrNoReport) {
			continue
		}
		sum.Lines++

		if err != nil {
			sum.Invalid++
			logger.Warn(fmt.Sprintf("error parsing line: %s", err.Error()), slog.Int("line", lineNo))
			continue
		}

		pe, err := processor.Process(e)
		if err != nil {
			sum.Dropped++
			if _, err = fmt.Fprintf(w, "%d\t%d\t-\t-\tdropped: %s\n", lineNo, e.TSF, err.Error()); err != nil {
				return sum, fmt.Errorf("writing verdict: %w", err)
			}
			continue
		}

		sum.Pulses++
		if pe.Checked {
			sum.Checked++
		}
		if pe.Chirp {
			sum.Chirps++
		}

		if _, err = fmt.Fprintln(w, formatVerdict(lineNo, pe)); err != nil {
			return sum, fmt.Errorf("writing verdict: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return sum, fmt.Errorf("reading capture: %w", err)
	}

	return sum, nil
}

// formatVerdict renders a tab separated verdict:
//
//	line  tsf  width  chirp  reason  bins
func formatVerdict(lineNo int, pe *dfs.PulseEvent) string {
	verdict, reason := "-", "width gate"
	if pe.Checked {
		verdict = fmt.Sprintf("%t", pe.Chirp)
		reason = pe.Reason.String()
	}

	bins := make([]string, len(pe.MaxBins))
	for i, b := range pe.MaxBins {
		bins[i] = fmt.Sprintf("%d", b)
	}

	return fmt.Sprintf("%d\t%d\t%dus\t%s\t%s\t[%s]",
		lineNo, pe.TSF, pe.Width, verdict, reason, strings.Join(bins, " "))
}
