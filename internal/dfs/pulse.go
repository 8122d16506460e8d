// Package dfs turns raw radar PHY-error reports into pulse events ready for
// radar pattern matching.
package dfs

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roman-kulish/radar-pulse/internal/dfs/chirp"
)

// Pulse width gate for chirp detection, in microseconds (exclusive).
const (
	MinChirpPulseWidth = 20
	MaxChirpPulseWidth = 110
)

const (
	// PriChannelRadarFound is set in the bandwidth info when the pulse was
	// seen on the primary (control) channel
	PriChannelRadarFound = 0x01

	// ExtChannelRadarFound is set in the bandwidth info when the pulse was
	// seen on the extension channel
	ExtChannelRadarFound = 0x02

	bwInfoMask = PriChannelRadarFound | ExtChannelRadarFound

	// RadarTrailerSize is the size of the radar summary appended to each report
	RadarTrailerSize = 3

	nsecsPerDur     = 800
	nsecsPerDurFast = 8000 / 11
)

var (
	// ErrShortReport is returned when a report cannot hold the radar trailer
	ErrShortReport = errors.New("report too short")

	// ErrBogusBandwidth is returned when the report names no channel
	ErrBogusBandwidth = errors.New("bogus bandwidth info")

	// ErrNoRSSI is returned when the pulse has no usable signal strength
	ErrNoRSSI = errors.New("no usable rssi")
)

// PhyError is a radar PHY-error report as delivered by the radio
type PhyError struct {
	Timestamp time.Time         // Host time of the report
	TSF       uint64            // Radio TSF timestamp in µs
	Frequency int               // Channel center frequency in MHz
	Mode      chirp.ChannelMode // Channel width and extension side
	FastClock bool              // 5 GHz fast clock mode
	RSSI      uint8             // Control channel RSSI, 8 bit signed
	ExtRSSI   uint8             // Extension channel RSSI, 8 bit signed
	Data      []byte            // FFT samples followed by the radar trailer
}

// radarData is the radar trailer decoded from the end of the report
type radarData struct {
	pulseLengthPri uint8
	pulseLengthExt uint8
	pulseBWInfo    uint8
	rssi           uint8
	extRSSI        uint8
}

// PulseEvent is a post-processed radar pulse
type PulseEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	TSF       uint64            `json:"tsf"`
	Frequency int               `json:"frequency"` // MHz
	Mode      chirp.ChannelMode `json:"mode"`
	Width     int               `json:"width"` // µs
	RSSI      int               `json:"rssi"`
	Primary   bool              `json:"primary"`
	Extension bool              `json:"extension"`
	Chirp     bool              `json:"chirp"`
	Checked   bool              `json:"checked"` // Whether the width gate let the pulse through to the detector
	Reason    chirp.Reason      `json:"reason"`
	MaxBins   []int             `json:"maxBins,omitempty"`
	Data      []byte            `json:"-"` // FFT samples, trailer stripped
}

// WithLogger sets the logger for the processor
func WithLogger(logger *slog.Logger) func(*Processor) {
	return func(p *Processor) {
		p.logger = logger.With(slog.String("component", "dfs"))
	}
}

// WithDetector sets the chirp detector used for pulses passing the width gate
func WithDetector(d *chirp.Detector) func(*Processor) {
	return func(p *Processor) {
		p.detector = d
	}
}

// WithWidthGate overrides the pulse width gate, bounds in µs, exclusive
func WithWidthGate(minWidth, maxWidth int) func(*Processor) {
	return func(p *Processor) {
		p.minWidth = minWidth
		p.maxWidth = maxWidth
	}
}

// Processor post-processes radar reports. It is safe for concurrent use.
type Processor struct {
	detector *chirp.Detector
	minWidth int
	maxWidth int
	logger   *slog.Logger
}

// NewProcessor creates a Processor with the default detector and width gate
func NewProcessor(options ...func(*Processor)) *Processor {
	p := Processor{
		detector: chirp.NewDetector(),
		minWidth: MinChirpPulseWidth,
		maxWidth: MaxChirpPulseWidth,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&p)
	}

	return &p
}

// Process decodes the radar trailer, derives pulse width and RSSI, and runs
// chirp detection on pulses inside the width gate. Reports that do not
// describe a usable pulse return one of ErrShortReport, ErrBogusBandwidth or
// ErrNoRSSI.
func (p *Processor) Process(e *PhyError) (*PulseEvent, error) {
	if len(e.Data) < RadarTrailerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortReport, len(e.Data))
	}

	end := len(e.Data)
	ard := radarData{
		pulseLengthPri: e.Data[end-3],
		pulseLengthExt: e.Data[end-2],
		pulseBWInfo:    e.Data[end-1],
		rssi:           capRSSI(e.RSSI),
		extRSSI:        capRSSI(e.ExtRSSI),
	}

	dur, rssi, err := postprocess(&ard)
	if err != nil {
		return nil, err
	}

	pe := PulseEvent{
		Timestamp: e.Timestamp,
		TSF:       e.TSF,
		Frequency: e.Frequency,
		Mode:      e.Mode,
		Width:     durToUsecs(dur, e.FastClock),
		RSSI:      int(rssi),
		Primary:   ard.pulseBWInfo&PriChannelRadarFound != 0,
		Extension: ard.pulseBWInfo&ExtChannelRadarFound != 0,
		Data:      e.Data[:end-RadarTrailerSize],
	}

	if pe.Width > p.minWidth && pe.Width < p.maxWidth {
		res := p.detector.Classify(pe.Data, pe.Primary, pe.Extension, pe.Mode)
		pe.Checked = true
		pe.Chirp = res.Chirp
		pe.Reason = res.Reason
		pe.MaxBins = res.MaxBins

		p.logger.Debug("chirp check",
			slog.Uint64("tsf", pe.TSF),
			slog.Int("width", pe.Width),
			slog.Bool("chirp", pe.Chirp),
			slog.String("reason", pe.Reason.String()))
	}

	return &pe, nil
}

// postprocess picks the pulse duration and RSSI of the channel the pulse was
// reported on.
func postprocess(ard *radarData) (dur uint8, rssi uint8, err error) {
	// only the two lowest bits carry the channel
	ard.pulseBWInfo &= bwInfoMask

	switch ard.pulseBWInfo {
	case PriChannelRadarFound:
		dur = ard.pulseLengthPri
		// control RSSI is unusable if the extension is stronger
		if int(ard.extRSSI) >= int(ard.rssi)+3 {
			rssi = 0
		} else {
			rssi = ard.rssi
		}

	case ExtChannelRadarFound:
		dur = ard.pulseLengthExt
		if int(ard.rssi) >= int(ard.extRSSI)+12 {
			rssi = 0
		} else {
			rssi = ard.extRSSI
		}

	case PriChannelRadarFound | ExtChannelRadarFound:
		// pulses on DC report both durations, take the larger
		dur = max(ard.pulseLengthPri, ard.pulseLengthExt)
		rssi = max(ard.rssi, ard.extRSSI)

	default:
		return 0, 0, ErrBogusBandwidth
	}

	if rssi == 0 {
		return 0, 0, ErrNoRSSI
	}
	return dur, rssi, nil
}

// capRSSI caps the 8 bit signed hardware value at 0
func capRSSI(v uint8) uint8 {
	if v&0x80 != 0 {
		return 0
	}
	return v
}

// durToUsecs converts a hardware pulse duration to microseconds, rounded
func durToUsecs(dur uint8, fastClock bool) int {
	nsecs := int(dur) * nsecsPerDur
	if fastClock {
		nsecs = int(dur) * nsecsPerDurFast
	}
	return (nsecs + 500) / 1000
}
