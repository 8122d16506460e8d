package chirp

const (
	SideLower Side = iota
	SideUpper
)

// UpperBinOffset is where the extension half starts in the unified bin index
// space of a 40 MHz capture.
const UpperBinOffset = 64

// Side selects one half of a 40 MHz FFT sample
type Side uint8

func (s Side) String() string {
	if s == SideLower {
		return "lower"
	}
	return "upper"
}

// SelectSide decides which half of a 40 MHz sample carries the pulse.
//
// A pulse seen on the primary channel only maps to the lower half, and on the
// extension channel only to the upper half. When both channels report the
// pulse, the half with a non-zero bitmap weight wins; if both (or neither)
// have one, the half with the larger magnitude wins, ties going to the upper
// half. With no flag set the upper half is used.
//
// The flags are expected in physical order; HT40- captures must have them
// swapped by the caller (see ExtractMaxBins).
func SelectSide(lower, upper BinSummary, primary, extension bool) Side {
	if primary && extension {
		lw, uw := lower.BitmapWeight(), upper.BitmapWeight()
		switch {
		case lw != 0 && uw == 0:
			return SideLower
		case lw == 0 && uw != 0:
			return SideUpper
		case lower.MaxMagnitude() > upper.MaxMagnitude():
			return SideLower
		default:
			return SideUpper
		}
	}

	if primary {
		return SideLower
	}
	return SideUpper
}
