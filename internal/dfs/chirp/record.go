package chirp

import (
	"fmt"
)

const (
	// NarrowBinCount is the number of magnitude bins in an HT20 FFT sample
	NarrowBinCount = 28

	// WideBinCount is the number of magnitude bins in an HT40 FFT sample
	WideBinCount = 64

	// SummarySize is the size of a packed max-bin summary in bytes
	SummarySize = 3

	// NarrowRecordSize is the size of an HT20 FFT sample record in bytes
	NarrowRecordSize = NarrowBinCount + SummarySize

	// WideRecordSize is the size of an HT40 FFT sample record in bytes
	WideRecordSize = WideBinCount + 2*SummarySize
)

// Summary bit layout, b0 b1 b2:
//
//	b0: [7:6] magnitude[1:0]   [5:0] bitmap weight
//	b1: [7:0] magnitude[9:2]
//	b2: [7:2] max-bin index    [1:0] magnitude[11:10]
const (
	weightMask    = 0x3f
	magLowShift   = 6
	magMidShift   = 2
	magHighMask   = 0x03
	magHighShift  = 10
	indexMask     = 0xfc
	indexShift    = 2
	maxIndex      = 0x3f
	maxMagnitude  = 0x0fff
	maxBitmapBits = 0x3f
)

// BinSummary is the packed 3-byte summary the hardware appends to each half
// of an FFT sample. It carries the dominant bin index, its magnitude and the
// bitmap weight (number of strong bins).
type BinSummary [SummarySize]byte

// NewBinSummary packs the given fields into a BinSummary. Values wider than
// their field are truncated.
func NewBinSummary(index, magnitude, weight int) BinSummary {
	index &= maxIndex
	magnitude &= maxMagnitude
	weight &= maxBitmapBits

	return BinSummary{
		byte(weight) | byte(magnitude&0x03)<<magLowShift,
		byte(magnitude >> magMidShift),
		byte(index)<<indexShift | byte(magnitude>>magHighShift)&magHighMask,
	}
}

// MaxIndex returns the raw 6-bit index of the strongest bin.
func (s BinSummary) MaxIndex() int {
	return int(s[2]&indexMask) >> indexShift
}

// MaxMagnitude returns the 12-bit magnitude of the strongest bin.
func (s BinSummary) MaxMagnitude() int {
	return int(s[0])>>magLowShift |
		int(s[1])<<magMidShift |
		int(s[2]&magHighMask)<<magHighShift
}

// BitmapWeight returns the number of bins above the hardware threshold.
func (s BinSummary) BitmapWeight() int {
	return int(s[0] & weightMask)
}

func (s BinSummary) String() string {
	return fmt.Sprintf("{index: %d, magnitude: %d, weight: %d}", s.MaxIndex(), s.MaxMagnitude(), s.BitmapWeight())
}

// NarrowRecord is a single FFT sample captured on a 20 MHz channel
type NarrowRecord struct {
	Bins  [NarrowBinCount]byte
	Lower BinSummary
}

// DecodeNarrow decodes an HT20 record from the first NarrowRecordSize bytes of p.
func DecodeNarrow(p []byte) (NarrowRecord, error) {
	var r NarrowRecord
	if len(p) < NarrowRecordSize {
		return r, fmt.Errorf("narrow record: need %d bytes, got %d", NarrowRecordSize, len(p))
	}

	copy(r.Bins[:], p[:NarrowBinCount])
	copy(r.Lower[:], p[NarrowBinCount:NarrowRecordSize])
	return r, nil
}

// AppendBinary appends the wire representation of the record to dst.
func (r NarrowRecord) AppendBinary(dst []byte) []byte {
	dst = append(dst, r.Bins[:]...)
	return append(dst, r.Lower[:]...)
}

// MaxBin returns the dominant bin converted from the signed 6-bit hardware
// representation to an unsigned offset.
func (r NarrowRecord) MaxBin() int {
	return r.Lower.MaxIndex() ^ signBit
}

// WideRecord is a single FFT sample captured on a 40 MHz channel. Lower covers
// the control half of the channel, Upper the extension half.
type WideRecord struct {
	Bins  [WideBinCount]byte
	Lower BinSummary
	Upper BinSummary
}

// DecodeWide decodes an HT40 record from the first WideRecordSize bytes of p.
func DecodeWide(p []byte) (WideRecord, error) {
	var r WideRecord
	if len(p) < WideRecordSize {
		return r, fmt.Errorf("wide record: need %d bytes, got %d", WideRecordSize, len(p))
	}

	copy(r.Bins[:], p[:WideBinCount])
	copy(r.Lower[:], p[WideBinCount:WideBinCount+SummarySize])
	copy(r.Upper[:], p[WideBinCount+SummarySize:WideRecordSize])
	return r, nil
}

// AppendBinary appends the wire representation of the record to dst.
func (r WideRecord) AppendBinary(dst []byte) []byte {
	dst = append(dst, r.Bins[:]...)
	dst = append(dst, r.Lower[:]...)
	return append(dst, r.Upper[:]...)
}

// MaxBin returns the dominant bin of the selected half in the unified
// 0..127 index space; upper half bins start at UpperBinOffset.
func (r WideRecord) MaxBin(side Side) int {
	if side == SideLower {
		return r.Lower.MaxIndex()
	}
	return r.Upper.MaxIndex() + UpperBinOffset
}

// RecordSize returns the size of a single FFT sample record for the mode.
func RecordSize(mode ChannelMode) int {
	if mode.IsWide() {
		return WideRecordSize
	}
	return NarrowRecordSize
}
