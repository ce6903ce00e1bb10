package audit

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	coreevents "amanahchain/core/events"
	"amanahchain/core/types"
)

// Journal persists every engine event into an append-only sqlite table backing
// the dashboard read surface (allocation charts, recent activity). Failures to
// record are logged and never propagate into the triggering operation: the
// journal is an observer, not a participant.
type Journal struct {
	db  *sql.DB
	log *slog.Logger
}

type payloadCarrier interface {
	Event() *types.Event
}

// Open creates or opens the journal database at the given path. Use ":memory:"
// for tests.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	j := &Journal{db: db, log: logger}
	if err := j.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS events (
            id TEXT PRIMARY KEY,
            occurred_at TIMESTAMP NOT NULL,
            event_type TEXT NOT NULL,
            pool TEXT,
            category TEXT,
            amount TEXT,
            attributes TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);`,
		`CREATE INDEX IF NOT EXISTS idx_events_pool ON events(pool);`,
	}
	for _, stmt := range schema {
		if _, err := j.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Emit implements the events.Emitter interface.
func (j *Journal) Emit(evt coreevents.Event) {
	if j == nil || evt == nil {
		return
	}
	carrier, ok := evt.(payloadCarrier)
	if !ok {
		return
	}
	payload := carrier.Event()
	if payload == nil {
		return
	}
	if err := j.record(payload); err != nil && j.log != nil {
		j.log.Error("audit: record event", "type", payload.Type, "error", err)
	}
}

func (j *Journal) record(payload *types.Event) error {
	attrs, err := json.Marshal(payload.Attributes)
	if err != nil {
		return err
	}
	_, err = j.db.Exec(
		`INSERT INTO events (id, occurred_at, event_type, pool, category, amount, attributes)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		time.Now().UTC(),
		payload.Type,
		payload.Attributes["pool"],
		payload.Attributes["category"],
		payload.Attributes["amount"],
		string(attrs),
	)
	return err
}
