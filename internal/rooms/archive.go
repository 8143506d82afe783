package rooms

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/library-min/TF-Planner-sub000/internal/models"
)

// PostgresArchive is the append-only message log collaborator. The in-memory
// directory stays authoritative; the archive only receives copies and serves
// offline history queries.
type PostgresArchive struct {
	db *sqlx.DB
}

// OpenArchive connects to Postgres and ensures the log table exists.
func OpenArchive(dsn string) (*PostgresArchive, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect archive: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS room_messages (
        id TEXT PRIMARY KEY,
        room_id TEXT NOT NULL,
        sender_id TEXT NOT NULL,
        sender_name TEXT NOT NULL,
        content TEXT NOT NULL,
        type TEXT NOT NULL,
        file_url TEXT,
        file_name TEXT,
        sent_at TIMESTAMPTZ NOT NULL
    )`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS room_messages_room_idx ON room_messages (room_id, sent_at)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return &PostgresArchive{db: db}, nil
}

// Append inserts one message. Duplicate ids from relay redelivery races are
// absorbed by the conflict clause.
func (a *PostgresArchive) Append(ctx context.Context, msg models.Message) error {
	_, err := a.db.ExecContext(ctx, `INSERT INTO room_messages
        (id, room_id, sender_id, sender_name, content, type, file_url, file_name, sent_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (id) DO NOTHING`,
		msg.ID, msg.RoomID, msg.SenderID, msg.SenderName, msg.Content, string(msg.Type), msg.FileURL, msg.FileName, msg.Timestamp)
	return err
}

// History loads archived messages for a room in send order.
func (a *PostgresArchive) History(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := a.db.QueryxContext(ctx, `SELECT id, room_id, sender_id, sender_name, content, type,
        COALESCE(file_url, '') AS file_url, COALESCE(file_name, '') AS file_name, sent_at
        FROM room_messages WHERE room_id=$1 ORDER BY sent_at ASC LIMIT $2`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var msg models.Message
		var typ string
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.SenderName, &msg.Content, &typ, &msg.FileURL, &msg.FileName, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.Type = models.MessageType(typ)
		out = append(out, msg)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (a *PostgresArchive) Close() error {
	return a.db.Close()
}
