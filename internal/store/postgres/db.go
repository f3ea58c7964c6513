package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	db := stdlib.OpenDB(*cfg)
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the estatehub schema on PostgreSQL.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		// Directory tables owned by the listing and identity services.
		`CREATE TABLE IF NOT EXISTS users (
			id           BIGSERIAL    PRIMARY KEY,
			display_name VARCHAR(100) NOT NULL,
			email        VARCHAR(254) NOT NULL,
			role         VARCHAR(20)  NOT NULL DEFAULT 'user'
		)`,
		`CREATE TABLE IF NOT EXISTS properties (
			id       BIGSERIAL    PRIMARY KEY,
			owner_id BIGINT       NOT NULL REFERENCES users(id),
			title    VARCHAR(200) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id       BIGSERIAL    PRIMARY KEY,
			owner_id BIGINT       NOT NULL REFERENCES users(id),
			title    VARCHAR(200) NOT NULL
		)`,

		// Conversations
		`CREATE TABLE IF NOT EXISTS conversations (
			id               BIGSERIAL    PRIMARY KEY,
			property_id      BIGINT       NOT NULL REFERENCES properties(id),
			subject          VARCHAR(255) NOT NULL,
			participant_low  BIGINT       NOT NULL,
			participant_high BIGINT       NOT NULL,
			created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			CHECK (participant_low < participant_high),
			UNIQUE (property_id, participant_low, participant_high)
		)`,

		// Conversation participants
		`CREATE TABLE IF NOT EXISTS conversation_participants (
			conversation_id BIGINT      NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			user_id         BIGINT      NOT NULL REFERENCES users(id),
			joined_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (conversation_id, user_id)
		)`,

		// Messages
		`CREATE TABLE IF NOT EXISTS messages (
			id              BIGSERIAL   PRIMARY KEY,
			conversation_id BIGINT      NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_id       BIGINT      NOT NULL REFERENCES users(id),
			recipient_id    BIGINT      NOT NULL REFERENCES users(id),
			content         TEXT        NOT NULL,
			status          VARCHAR(10) NOT NULL DEFAULT 'sent' CHECK (status IN ('sent', 'read')),
			read_at         TIMESTAMPTZ,
			property_id     BIGINT      NOT NULL REFERENCES properties(id),
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (sender_id <> recipient_id)
		)`,

		// Inquiries
		`CREATE TABLE IF NOT EXISTS inquiries (
			id              BIGSERIAL    PRIMARY KEY,
			property_id     BIGINT       REFERENCES properties(id),
			project_id      BIGINT       REFERENCES projects(id),
			inquirer_id     BIGINT       REFERENCES users(id),
			name            VARCHAR(100) NOT NULL,
			email           VARCHAR(254) NOT NULL,
			phone           VARCHAR(20),
			message         TEXT         NOT NULL,
			status          VARCHAR(20)  NOT NULL DEFAULT 'new' CHECK (status IN ('new', 'contacted', 'closed')),
			conversation_id BIGINT       REFERENCES conversations(id) ON DELETE SET NULL,
			created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			CHECK ((property_id IS NULL) <> (project_id IS NULL))
		)`,

		// Indexes
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_inquiries_property_inquirer
			ON inquiries(property_id, inquirer_id)
			WHERE property_id IS NOT NULL AND inquirer_id IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_inquiries_project_inquirer
			ON inquiries(project_id, inquirer_id)
			WHERE project_id IS NOT NULL AND inquirer_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_inquiries_inquirer ON inquiries(inquirer_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_conv_participants_user ON conversation_participants(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_created ON messages(conversation_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_recipient_status ON messages(recipient_id, status)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}
