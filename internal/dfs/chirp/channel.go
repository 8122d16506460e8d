package chirp

import (
	"fmt"
	"strings"
)

const (
	ChannelHT20 ChannelMode = iota
	ChannelHT40Plus
	ChannelHT40Minus
)

// ChannelMode describes the width of the operating channel and, for 40 MHz
// channels, on which side of the control channel the extension lies.
type ChannelMode uint8

var channelModeNames = map[ChannelMode]string{
	ChannelHT20:      "ht20",
	ChannelHT40Plus:  "ht40+",
	ChannelHT40Minus: "ht40-",
}

// ParseChannelMode parses "ht20", "ht40+" or "ht40-" (case-insensitive).
func ParseChannelMode(s string) (ChannelMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for mode, name := range channelModeNames {
		if name == s {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown channel mode '%s'", s)
}

// IsWide reports whether the channel is 40 MHz wide
func (m ChannelMode) IsWide() bool {
	return m == ChannelHT40Plus || m == ChannelHT40Minus
}

func (m ChannelMode) String() string {
	if name, ok := channelModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("ChannelMode(%d)", uint8(m))
}

func (m ChannelMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ChannelMode) UnmarshalText(text []byte) error {
	mode, err := ParseChannelMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}
