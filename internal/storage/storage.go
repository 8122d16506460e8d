package storage

import (
	"context"

	"github.com/roman-kulish/radar-pulse/internal/dfs"
)

// Store provides an interface for managing radar pulse storage operations.
// All operations that write to the database should be considered atomic.
type Store interface {
	// CreateSession initializes a new capture session and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - sourceType: Type of capture source (e.g., "command", "replay")
	//   - sourceID: Configured name of the source
	//   - config: Optional source configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, sourceType, sourceID string, config any) (sessionID int64, err error)

	// Session retrieves a specific capture session by its ID.
	Session(ctx context.Context, id int64) (session *Session, err error)

	// Sessions returns all capture sessions ordered by start time.
	Sessions(ctx context.Context) (sessions []*Session, err error)

	// StorePulses saves pulse events of a session in a single atomic transaction.
	StorePulses(ctx context.Context, sessionID int64, events []*dfs.PulseEvent) error

	// ReadPulses returns a reader over the stored pulses of a session ordered by TSF.
	// The reader must be closed after use.
	ReadPulses(ctx context.Context, sessionID int64, opts ...ReaderOption) (*PulseReader, error)

	// Stats summarises the pulses stored for a session.
	Stats(ctx context.Context, sessionID int64) (*SessionStats, error)

	// Close releases all database connections and resources.
	// It is safe to call Close multiple times.
	Close() error
}

var _ Store = (*SqliteStore)(nil)
