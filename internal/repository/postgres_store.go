package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"crisis-assistant/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore keeps session state in the dialogue_state table.
type PostgresStore struct {
	db  *sql.DB
	ttl time.Duration
}

// OpenPostgres connects with lib/pq and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: ping postgres: %w", err)
	}
	return db, nil
}

// Migrate creates the dialogue_state table if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("repository: migrate: %w", err)
	}
	return nil
}

func NewPostgresStore(db *sql.DB, ttl time.Duration) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("repository: db must not be nil")
	}
	return &PostgresStore{db: db, ttl: resolveTTL(ttl)}, nil
}

func (p *PostgresStore) GetState(ctx context.Context, sessionID string) (domain.DialogueState, error) {
	if !validSessionID(sessionID) {
		return domain.DialogueState{}, errors.New("repository: session id is required")
	}
	var (
		lastTopic string
		turns     int
		activity  time.Time
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT last_topic, turns, last_activity
         FROM dialogue_state
         WHERE session_id = $1 AND expires_at > $2`,
		sessionID, now(),
	).Scan(&lastTopic, &turns, &activity)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewDialogueState(sessionID), nil
	}
	if err != nil {
		return domain.DialogueState{}, fmt.Errorf("repository: GetState query: %w", err)
	}
	return rowToState(sessionID, lastTopic, turns, activity)
}

func (p *PostgresStore) SaveState(ctx context.Context, state domain.DialogueState) error {
	if !validSessionID(state.SessionID) {
		return errors.New("repository: session id is required")
	}
	t := now()
	updated := state.UpdatedAt
	if updated.IsZero() {
		updated = t
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO dialogue_state (session_id, last_topic, turns, last_activity, expires_at)
         VALUES ($1, $2, $3, $4, $5)
         ON CONFLICT (session_id) DO UPDATE
         SET last_topic = EXCLUDED.last_topic,
             turns = EXCLUDED.turns,
             last_activity = EXCLUDED.last_activity,
             expires_at = EXCLUDED.expires_at`,
		state.SessionID, string(state.LastTopic), state.Turns, updated, t.Add(p.ttl),
	)
	if err != nil {
		return fmt.Errorf("repository: SaveState: %w", err)
	}
	return nil
}

// PurgeExpired deletes rows past their expiry and returns how many went.
func (p *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM dialogue_state WHERE expires_at <= $1`, now())
	if err != nil {
		return 0, fmt.Errorf("repository: PurgeExpired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("repository: PurgeExpired rows: %w", err)
	}
	return n, nil
}

func rowToState(sessionID, lastTopic string, turns int, activity time.Time) (domain.DialogueState, error) {
	state := domain.NewDialogueState(sessionID)
	if lastTopic != "" {
		topic, err := domain.ParseTopic(lastTopic)
		if err != nil {
			return domain.DialogueState{}, fmt.Errorf("repository: GetState decode: %w", err)
		}
		state.Remember(topic)
	}
	state.Turns = turns
	state.UpdatedAt = activity.UTC()
	return state, nil
}
