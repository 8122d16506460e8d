// Package chirp classifies DFS radar pulses as chirps by looking at how the
// dominant FFT bin moves across consecutive hardware FFT samples. A linear
// frequency sweep moves the bin by a small, nearly constant step per sample;
// anything else (random hopping, a fixed tone) is rejected.
package chirp

import (
	"fmt"
	"io"
	"log/slog"
)

// Sample count requirement.
const (
	// FFTNumSamples is the number of FFT samples evaluated per pulse
	FFTNumSamples = 4
)

// Gradient bounds, in bin-index units.
const (
	// BinDeltaMin is the smallest accepted bin movement between two samples
	BinDeltaMin = 1

	// BinDeltaMax is the largest accepted bin movement between two samples
	BinDeltaMax = 10

	// MaxDiff is the largest accepted change between two consecutive deltas
	MaxDiff = 2
)

const (
	// signBit converts the signed 6-bit HT20 bin index to an unsigned offset
	signBit = 0x20

	// dmaPadding is the number of garbage bytes DMA occasionally prepends
	dmaPadding = 2
)

const (
	ReasonChirp Reason = iota
	ReasonNoSamples
	ReasonTooFewSamples
	ReasonDeltaOutOfRange
	ReasonUnevenGradient
)

// Reason tells why a pulse was, or was not, classified as a chirp
type Reason uint8

var reasonNames = map[Reason]string{
	ReasonChirp:           "chirp",
	ReasonNoSamples:       "no samples",
	ReasonTooFewSamples:   "not enough samples",
	ReasonDeltaOutOfRange: "bin delta out of range",
	ReasonUnevenGradient:  "uneven gradient",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Reason(%d)", uint8(r))
}

// Result is the outcome of a single classification
type Result struct {
	Chirp   bool   // Whether the pulse is a chirp
	Reason  Reason // Why the verdict was reached
	MaxBins []int  // Dominant bin per evaluated sample, nil if extraction failed
	Deltas  []int  // Bin deltas evaluated before a verdict was reached
}

// Thresholds groups the tunable classification bounds.
type Thresholds struct {
	NumSamples  int // FFT samples required, at least 2
	BinDeltaMin int // Minimum absolute bin delta, bin-index units
	BinDeltaMax int // Maximum absolute bin delta, bin-index units
	MaxDiff     int // Maximum absolute change between deltas, bin-index units
}

// DefaultThresholds returns the bounds tuned for FCC type 5 radar.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NumSamples:  FFTNumSamples,
		BinDeltaMin: BinDeltaMin,
		BinDeltaMax: BinDeltaMax,
		MaxDiff:     MaxDiff,
	}
}

func (t Thresholds) Validate() error {
	switch {
	case t.NumSamples < 2:
		return fmt.Errorf("chirp.Thresholds: at least 2 samples required: %d given", t.NumSamples)
	case t.BinDeltaMin < 0:
		return fmt.Errorf("chirp.Thresholds: minimum bin delta cannot be negative: %d given", t.BinDeltaMin)
	case t.BinDeltaMax < t.BinDeltaMin:
		return fmt.Errorf("chirp.Thresholds: maximum bin delta %d is below minimum %d", t.BinDeltaMax, t.BinDeltaMin)
	case t.MaxDiff < 0:
		return fmt.Errorf("chirp.Thresholds: maximum gradient difference cannot be negative: %d given", t.MaxDiff)
	}
	return nil
}

// WithLogger sets the logger used for rejection diagnostics
func WithLogger(logger *slog.Logger) func(*Detector) {
	return func(d *Detector) {
		d.logger = logger.With(slog.String("component", "chirp"))
	}
}

// WithThresholds overrides the default classification bounds. Bounds that
// fail Validate are ignored and the detector keeps its defaults.
func WithThresholds(t Thresholds) func(*Detector) {
	return func(d *Detector) {
		if t.Validate() != nil {
			return
		}
		d.thresholds = t
	}
}

// Detector classifies pulses. It holds no mutable state and is safe for
// concurrent use.
type Detector struct {
	thresholds Thresholds
	logger     *slog.Logger
}

// NewDetector creates a Detector with default thresholds and a discard logger
func NewDetector(options ...func(*Detector)) *Detector {
	d := Detector{
		thresholds: DefaultThresholds(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

var defaultDetector = NewDetector()

// IsChirp reports whether the FFT samples in data describe a chirp, using the
// default thresholds.
func IsChirp(data []byte, primary, extension bool, mode ChannelMode) bool {
	return defaultDetector.IsChirp(data, primary, extension, mode)
}

// Thresholds returns the bounds the detector classifies with
func (d *Detector) Thresholds() Thresholds {
	return d.thresholds
}

// IsChirp reports whether the FFT samples in data describe a chirp.
//
// Parameters:
//   - data: raw FFT sample records, possibly prefixed by 2 bytes of DMA padding
//   - primary: radar was reported on the primary (control) channel
//   - extension: radar was reported on the extension channel
//   - mode: channel width and extension side
//
// The caller is responsible for the pulse width gate. Every failure is a
// negative verdict.
func (d *Detector) IsChirp(data []byte, primary, extension bool, mode ChannelMode) bool {
	return d.Classify(data, primary, extension, mode).Chirp
}

// Classify is IsChirp with the reasoning attached.
func (d *Detector) Classify(data []byte, primary, extension bool, mode ChannelMode) Result {
	maxBins, reason := d.ExtractMaxBins(data, primary, extension, mode)
	if maxBins == nil {
		return Result{Reason: reason}
	}

	deltas, reason := d.EvaluateGradients(maxBins)
	return Result{
		Chirp:   reason == ReasonChirp,
		Reason:  reason,
		MaxBins: maxBins,
		Deltas:  deltas,
	}
}

// ExtractMaxBins decodes the dominant bin of each of the first NumSamples
// records in data. It returns nil and the rejection reason when data does
// not hold enough records.
func (d *Detector) ExtractMaxBins(data []byte, primary, extension bool, mode ChannelMode) ([]int, Reason) {
	recordSize := RecordSize(mode)

	numSamples := len(data) / recordSize
	if numSamples == 0 {
		d.logger.Debug("no FFT samples in capture", slog.Int("length", len(data)), slog.String("mode", mode.String()))
		return nil, ReasonNoSamples
	}

	if len(data)%recordSize == dmaPadding {
		data = data[dmaPadding:]
	}

	if numSamples < d.thresholds.NumSamples {
		d.logger.Debug("not enough FFT samples for chirp",
			slog.Int("samples", numSamples),
			slog.Int("required", d.thresholds.NumSamples))
		return nil, ReasonTooFewSamples
	}

	maxBins := make([]int, d.thresholds.NumSamples)

	if !mode.IsWide() {
		for i := range maxBins {
			r, _ := DecodeNarrow(data[i*NarrowRecordSize:])
			maxBins[i] = r.MaxBin()
		}
		return maxBins, ReasonChirp
	}

	// the extension channel lies below the control channel on HT40-
	if mode == ChannelHT40Minus {
		primary, extension = extension, primary
	}

	for i := range maxBins {
		r, _ := DecodeWide(data[i*WideRecordSize:])
		maxBins[i] = r.MaxBin(SelectSide(r.Lower, r.Upper, primary, extension))
	}
	return maxBins, ReasonChirp
}

// EvaluateGradients checks that the bin sequence moves by a bounded, non-zero
// and nearly constant step. It returns the deltas computed before a verdict
// was reached and ReasonChirp if the sequence passed.
func (d *Detector) EvaluateGradients(maxBins []int) ([]int, Reason) {
	if len(maxBins) < d.thresholds.NumSamples {
		return nil, ReasonTooFewSamples
	}

	deltas := make([]int, 0, d.thresholds.NumSamples-1)
	for i := 0; i < d.thresholds.NumSamples-1; i++ {
		delta := maxBins[i+1] - maxBins[i]
		deltas = append(deltas, delta)

		if ad := abs(delta); ad < d.thresholds.BinDeltaMin || ad > d.thresholds.BinDeltaMax {
			d.logger.Debug("bin delta out of range",
				slog.Int("sample", i),
				slog.Int("delta", delta),
				slog.Any("maxBins", maxBins))
			return deltas, ReasonDeltaOutOfRange
		}

		if i == 0 {
			continue
		}

		if ddelta := delta - deltas[i-1]; abs(ddelta) > d.thresholds.MaxDiff {
			d.logger.Debug("bin deltas not equidistant",
				slog.Int("sample", i),
				slog.Int("ddelta", ddelta),
				slog.Any("maxBins", maxBins))
			return deltas, ReasonUnevenGradient
		}
	}

	return deltas, ReasonChirp
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
