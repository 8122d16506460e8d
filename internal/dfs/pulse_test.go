package dfs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/radar-pulse/internal/dfs/chirp"
)

func narrowSweep(bins ...int) []byte {
	var p []byte
	for _, bin := range bins {
		r := chirp.NarrowRecord{Lower: chirp.NewBinSummary(bin^0x20, 100, 3)}
		p = r.AppendBinary(p)
	}
	return p
}

func report(fft []byte, pri, ext, bw uint8) []byte {
	p := append([]byte{}, fft...)
	return append(p, pri, ext, bw)
}

func TestDurToUsecs(t *testing.T) {
	assert.Equal(t, 0, durToUsecs(0, false))
	assert.Equal(t, 1, durToUsecs(1, false))     // 800ns
	assert.Equal(t, 40, durToUsecs(50, false))   // 40000ns
	assert.Equal(t, 204, durToUsecs(255, false)) // 204000ns
	assert.Equal(t, 1, durToUsecs(1, true))      // 727ns
	assert.Equal(t, 36, durToUsecs(50, true))    // 36350ns
}

func TestPostprocess(t *testing.T) {
	testCases := []struct {
		name string
		ard  radarData
		dur  uint8
		rssi uint8
		err  error
	}{
		{"primary", radarData{pulseLengthPri: 30, pulseLengthExt: 10, pulseBWInfo: 0x01, rssi: 20, extRSSI: 5}, 30, 20, nil},
		{"primary, extension stronger", radarData{pulseLengthPri: 30, pulseBWInfo: 0x01, rssi: 20, extRSSI: 23}, 0, 0, ErrNoRSSI},
		{"extension", radarData{pulseLengthPri: 30, pulseLengthExt: 10, pulseBWInfo: 0x02, rssi: 5, extRSSI: 15}, 10, 15, nil},
		{"extension, control much stronger", radarData{pulseLengthExt: 10, pulseBWInfo: 0x02, rssi: 27, extRSSI: 15}, 0, 0, ErrNoRSSI},
		{"both, longer duration", radarData{pulseLengthPri: 30, pulseLengthExt: 40, pulseBWInfo: 0x03, rssi: 5, extRSSI: 15}, 40, 15, nil},
		{"upper bits ignored", radarData{pulseLengthPri: 30, pulseBWInfo: 0xf1, rssi: 20}, 30, 20, nil},
		{"bogus bandwidth", radarData{pulseLengthPri: 30, pulseBWInfo: 0x04, rssi: 20}, 0, 0, ErrBogusBandwidth},
		{"zero rssi", radarData{pulseLengthPri: 30, pulseBWInfo: 0x01}, 0, 0, ErrNoRSSI},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ard := tc.ard
			dur, rssi, err := postprocess(&ard)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.dur, dur)
			assert.Equal(t, tc.rssi, rssi)
		})
	}
}

func TestProcessor_Process(t *testing.T) {
	ts := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	sweep := narrowSweep(10, 13, 16, 19)
	p := NewProcessor()

	t.Run("chirp inside width gate", func(t *testing.T) {
		pe, err := p.Process(&PhyError{
			Timestamp: ts,
			TSF:       1000,
			Frequency: 5500,
			Mode:      chirp.ChannelHT20,
			RSSI:      25,
			Data:      report(sweep, 63, 0, PriChannelRadarFound), // 50µs
		})
		require.NoError(t, err)

		assert.Equal(t, 50, pe.Width)
		assert.Equal(t, 25, pe.RSSI)
		assert.True(t, pe.Primary)
		assert.False(t, pe.Extension)
		assert.True(t, pe.Checked)
		assert.True(t, pe.Chirp)
		assert.Equal(t, chirp.ReasonChirp, pe.Reason)
		assert.Equal(t, []int{10, 13, 16, 19}, pe.MaxBins)
		assert.Equal(t, sweep, pe.Data)
		assert.Equal(t, uint64(1000), pe.TSF)
		assert.Equal(t, ts, pe.Timestamp)
	})

	t.Run("width gate is exclusive", func(t *testing.T) {
		// 25 * 800ns = 20µs, exactly the lower bound
		pe, err := p.Process(&PhyError{Mode: chirp.ChannelHT20, RSSI: 25, Data: report(sweep, 25, 0, PriChannelRadarFound)})
		require.NoError(t, err)
		assert.Equal(t, MinChirpPulseWidth, pe.Width)
		assert.False(t, pe.Checked)
		assert.False(t, pe.Chirp)

		// 138 * 800ns = 110.4µs, rounds to the upper bound
		pe, err = p.Process(&PhyError{Mode: chirp.ChannelHT20, RSSI: 25, Data: report(sweep, 138, 0, PriChannelRadarFound)})
		require.NoError(t, err)
		assert.Equal(t, MaxChirpPulseWidth, pe.Width)
		assert.False(t, pe.Checked)
		assert.False(t, pe.Chirp)
	})

	t.Run("non chirp", func(t *testing.T) {
		pe, err := p.Process(&PhyError{Mode: chirp.ChannelHT20, RSSI: 25, Data: report(narrowSweep(10, 11, 25, 26), 63, 0, PriChannelRadarFound)})
		require.NoError(t, err)
		assert.True(t, pe.Checked)
		assert.False(t, pe.Chirp)
		assert.Equal(t, chirp.ReasonDeltaOutOfRange, pe.Reason)
	})

	t.Run("negative rssi capped", func(t *testing.T) {
		_, err := p.Process(&PhyError{Mode: chirp.ChannelHT20, RSSI: 0xf0, Data: report(sweep, 63, 0, PriChannelRadarFound)})
		assert.True(t, errors.Is(err, ErrNoRSSI))
	})

	t.Run("short report", func(t *testing.T) {
		_, err := p.Process(&PhyError{Mode: chirp.ChannelHT20, RSSI: 25, Data: []byte{1, 2}})
		assert.ErrorIs(t, err, ErrShortReport)
	})

	t.Run("custom width gate", func(t *testing.T) {
		gated := NewProcessor(WithWidthGate(0, 30))
		pe, err := gated.Process(&PhyError{Mode: chirp.ChannelHT20, RSSI: 25, Data: report(sweep, 63, 0, PriChannelRadarFound)})
		require.NoError(t, err)
		assert.False(t, pe.Checked)
	})

	t.Run("wide extension", func(t *testing.T) {
		var fft []byte
		for _, idx := range []int{40, 42, 44, 46} {
			r := chirp.WideRecord{Upper: chirp.NewBinSummary(idx, 300, 2)}
			fft = r.AppendBinary(fft)
		}

		pe, err := p.Process(&PhyError{Mode: chirp.ChannelHT40Plus, ExtRSSI: 30, Data: report(fft, 0, 63, ExtChannelRadarFound)})
		require.NoError(t, err)
		assert.True(t, pe.Extension)
		assert.True(t, pe.Chirp)
		assert.Equal(t, []int{104, 106, 108, 110}, pe.MaxBins)
	})
}
