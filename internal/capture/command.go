package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/roman-kulish/radar-pulse/internal/dfs"
)

const (
	KindCommand = "command"
	KindReplay  = "replay"

	// replayRuntime dumps a recorded capture file to stdout
	replayRuntime = "cat"
)

/*
	A capture tool is any program printing capture lines to stdout, e.g. a
	helper tailing the ath9k radar PHY-error relay:

	sources:
	  - name: phy0
	    type: command
	    enabled: true
	    command: /usr/local/bin/dfs-relay
	    args: ["-phy", "phy0"]

	Recorded captures are replayed with:

	  - name: lab-fcc5
	    type: replay
	    enabled: true
	    file: captures/fcc5.csv
*/

// Config configures a capture source
type Config struct {
	Command string   `yaml:"command" json:"command"` // Capture tool, looked up in PATH
	Args    []string `yaml:"args" json:"args"`       // Capture tool arguments
	File    string   `yaml:"file" json:"file"`       // Recorded capture for replay sources
}

func (c *Config) Validate(kind string) error {
	switch kind {
	case KindCommand:
		if c.Command == "" {
			return NewConfigError("capture.Config: command is required for '%s' sources", kind)
		}
	case KindReplay:
		if c.File == "" {
			return NewConfigError("capture.Config: file is required for '%s' sources", kind)
		}
		if _, err := os.Stat(c.File); err != nil {
			return NewConfigError("capture.Config: replay file '%s': %s", c.File, err.Error())
		}
	default:
		return NewConfigError("capture.Config: unknown source type '%s'", kind)
	}
	return nil
}

// handler runs a capture tool and parses its output as capture lines
type handler struct {
	kind    string
	binPath string
	args    []string
}

// New creates a handler for the given source type
func New(kind string, config *Config) (Handler, error) {
	if err := config.Validate(kind); err != nil {
		return nil, err
	}

	runtime, args := config.Command, config.Args
	if kind == KindReplay {
		runtime, args = replayRuntime, []string{config.File}
	}

	binPath, err := FindRuntime(runtime)
	if err != nil {
		return nil, fmt.Errorf("error finding runtime: %w", err)
	}

	return &handler{kind: kind, binPath: binPath, args: args}, nil
}

// Cmd returns an exec.Cmd running the capture tool
func (h handler) Cmd(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, h.binPath, h.args...)
}

// Parse parses a capture line
func (h handler) Parse(line string) (*dfs.PhyError, error) {
	return ParseLine(line)
}

// Kind returns the source type
func (h handler) Kind() string {
	return h.kind
}
