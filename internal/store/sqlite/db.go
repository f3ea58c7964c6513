package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Open opens a SQLite database at path with foreign keys enforced.
// SQLite allows a single writer, so the pool is capped at one connection and
// transactions queue in database/sql instead of failing with SQLITE_BUSY.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// Migrate creates the estatehub schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			display_name VARCHAR(100) NOT NULL,
			email VARCHAR(254) NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'user'
		);`,
		`CREATE TABLE IF NOT EXISTS properties (
			id INTEGER PRIMARY KEY,
			owner_id INTEGER NOT NULL,
			title VARCHAR(200) NOT NULL,
			FOREIGN KEY (owner_id) REFERENCES users(id)
		);`,
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY,
			owner_id INTEGER NOT NULL,
			title VARCHAR(200) NOT NULL,
			FOREIGN KEY (owner_id) REFERENCES users(id)
		);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY,
			property_id INTEGER NOT NULL,
			subject VARCHAR(255) NOT NULL,
			participant_low INTEGER NOT NULL,
			participant_high INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CHECK (participant_low < participant_high),
			UNIQUE (property_id, participant_low, participant_high),
			FOREIGN KEY (property_id) REFERENCES properties(id)
		);`,
		`CREATE TABLE IF NOT EXISTS conversation_participants (
			conversation_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (conversation_id, user_id),
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE,
			FOREIGN KEY (user_id) REFERENCES users(id)
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY,
			conversation_id INTEGER NOT NULL,
			sender_id INTEGER NOT NULL,
			recipient_id INTEGER NOT NULL,
			content TEXT NOT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'sent' CHECK (status IN ('sent', 'read')),
			read_at DATETIME DEFAULT NULL,
			property_id INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CHECK (sender_id <> recipient_id),
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE,
			FOREIGN KEY (sender_id) REFERENCES users(id),
			FOREIGN KEY (recipient_id) REFERENCES users(id)
		);`,
		`CREATE TABLE IF NOT EXISTS inquiries (
			id INTEGER PRIMARY KEY,
			property_id INTEGER DEFAULT NULL,
			project_id INTEGER DEFAULT NULL,
			inquirer_id INTEGER DEFAULT NULL,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(254) NOT NULL,
			phone VARCHAR(20) DEFAULT NULL,
			message TEXT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'new' CHECK (status IN ('new', 'contacted', 'closed')),
			conversation_id INTEGER DEFAULT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CHECK ((property_id IS NULL) <> (project_id IS NULL)),
			FOREIGN KEY (property_id) REFERENCES properties(id),
			FOREIGN KEY (project_id) REFERENCES projects(id),
			FOREIGN KEY (inquirer_id) REFERENCES users(id),
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE SET NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_inquiries_property_inquirer
			ON inquiries(property_id, inquirer_id)
			WHERE property_id IS NOT NULL AND inquirer_id IS NOT NULL;`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_inquiries_project_inquirer
			ON inquiries(project_id, inquirer_id)
			WHERE project_id IS NOT NULL AND inquirer_id IS NOT NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_inquiries_inquirer ON inquiries(inquirer_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_conv_participants_user ON conversation_participants(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_created ON messages(conversation_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_recipient_status ON messages(recipient_id, status);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
