package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"
)

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"

	defaultMaxRows = 5000
)

type ImageFormat string

type Config struct {
	DBPath        string
	SessionID     int64
	OutputFile    string
	Format        ImageFormat
	Theme         ColorTheme
	TimeZone      *time.Location
	MinFrequency  *int
	MaxFrequency  *int
	ChirpOnly     bool
	MaxRows       int
	NoAnnotations bool
	Verbose       bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:   ImagePNG,
		Theme:    ClassicTheme,
		TimeZone: time.Local,
		MaxRows:  defaultMaxRows,
	}
}

// NewConfigFromArgs parses command line arguments, without the program name
func NewConfigFromArgs(name string, args []string) (*Config, error) {
	c := NewConfig()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	var imageFormat, theme, timeZone string
	var minFreq, maxFreq int
	fs.StringVar(&c.DBPath, "db", "", "Path to the session database file")
	fs.Int64Var(&c.SessionID, "s", 1, "Session ID")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.StringVar(&theme, "theme", string(ClassicTheme), "Color theme. [classic, grayscale, thermal, marine]")
	fs.StringVar(&timeZone, "tz", "Local", "Time zone for timestamps in annotations")
	fs.IntVar(&minFreq, "min-freq", 0, "Minimum channel frequency in MHz")
	fs.IntVar(&maxFreq, "max-freq", 0, "Maximum channel frequency in MHz")
	fs.BoolVar(&c.ChirpOnly, "chirp-only", false, "Render chirps only")
	fs.IntVar(&c.MaxRows, "max-rows", defaultMaxRows, "Maximum number of pulses to render")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as bin and TSF scales")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "min-freq" {
			c.MinFrequency = &minFreq
		}
		if f.Name == "max-freq" {
			c.MaxFrequency = &maxFreq
		}
	})

	imageFormat = strings.ToLower(imageFormat)

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.SessionID <= 0 {
		err = errors.New("session id is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if c.MaxRows <= 0 {
		err = fmt.Errorf("invalid max rows: %d", c.MaxRows)
	} else if c.MinFrequency != nil && c.MaxFrequency != nil && *c.MinFrequency > *c.MaxFrequency {
		err = fmt.Errorf("invalid frequency range: %d - %d", *c.MinFrequency, *c.MaxFrequency)
	}

	if err == nil {
		c.Theme, err = ParseColorTheme(strings.ToLower(theme))
	}
	if err == nil {
		if c.TimeZone, err = time.LoadLocation(timeZone); err != nil {
			err = fmt.Errorf("invalid time zone: %w", err)
		}
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}
