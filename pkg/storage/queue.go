// Package storage provides the optional sqlite-backed persistence for the
// store-and-forward buffer, so parked deliveries survive a node restart.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// QueuedMessage is one persisted delivery waiting for its recipient.
type QueuedMessage struct {
	ID          int64
	RecipientID string
	MessageID   string
	Packet      []byte // full encoded wire packet
	Favorite    bool
	Timestamp   int64 // when the message was queued (unix seconds)
	ExpiresAt   int64
}

// Queue is a per-recipient persistent message queue with two retention
// classes: regular and favorites.
type Queue struct {
	db                 *sql.DB
	regularRetention   time.Duration
	favoritesRetention time.Duration
}

// NewQueue opens (or creates) a queue database. Zero retentions fall back
// to the protocol defaults of 12 h and 168 h.
func NewQueue(dbPath string, regularRetention, favoritesRetention time.Duration) (*Queue, error) {
	if regularRetention == 0 {
		regularRetention = 12 * time.Hour
	}
	if favoritesRetention == 0 {
		favoritesRetention = 168 * time.Hour
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}

	// WAL keeps readers off the writer's back during drains.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	q := &Queue{
		db:                 db,
		regularRetention:   regularRetention,
		favoritesRetention: favoritesRetention,
	}
	if err := q.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return q, nil
}

func (q *Queue) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS queued_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recipient_id TEXT NOT NULL,
		message_id TEXT UNIQUE NOT NULL,
		packet BLOB NOT NULL,
		favorite INTEGER NOT NULL DEFAULT 0,
		timestamp INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_recipient ON queued_messages(recipient_id);
	CREATE INDEX IF NOT EXISTS idx_expires ON queued_messages(expires_at);
	`

	if _, err := q.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Enqueue parks an encoded packet for an absent recipient. Re-queueing
// the same message id is a no-op.
func (q *Queue) Enqueue(recipientID, messageID string, packet []byte, favorite bool) error {
	now := time.Now().Unix()
	retention := q.regularRetention
	if favorite {
		retention = q.favoritesRetention
	}

	query := `
		INSERT OR IGNORE INTO queued_messages (recipient_id, message_id, packet, favorite, timestamp, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := q.db.Exec(query, recipientID, messageID, packet, boolToInt(favorite),
		now, now+int64(retention.Seconds()))
	if err != nil {
		return fmt.Errorf("failed to queue message: %w", err)
	}
	return nil
}

// Drain removes and returns every unexpired packet for a recipient in
// insertion order.
func (q *Queue) Drain(recipientID string) ([][]byte, error) {
	now := time.Now().Unix()

	rows, err := q.db.Query(`
		SELECT id, packet FROM queued_messages
		WHERE recipient_id = ? AND expires_at > ?
		ORDER BY timestamp ASC, id ASC
	`, recipientID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to read queued messages: %w", err)
	}
	defer rows.Close()

	var ids []int64
	var packets [][]byte
	for rows.Next() {
		var id int64
		var packet []byte
		if err := rows.Scan(&id, &packet); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		ids = append(ids, id)
		packets = append(packets, packet)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, err := q.db.Exec(`DELETE FROM queued_messages WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("failed to delete drained message: %w", err)
		}
	}
	return packets, nil
}

// Count returns the number of unexpired packets waiting for a recipient.
func (q *Queue) Count(recipientID string) (int, error) {
	var count int
	err := q.db.QueryRow(`
		SELECT COUNT(*) FROM queued_messages WHERE recipient_id = ? AND expires_at > ?
	`, recipientID, time.Now().Unix()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count queued messages: %w", err)
	}
	return count, nil
}

// DeleteExpired enforces the retention windows and returns how many rows
// were collected. The mesh coordinator calls this from its GC timer.
func (q *Queue) DeleteExpired() (int64, error) {
	result, err := q.db.Exec(`DELETE FROM queued_messages WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired messages: %w", err)
	}
	return result.RowsAffected()
}

// Close releases the database handle.
func (q *Queue) Close() error {
	return q.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
