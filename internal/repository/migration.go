package repository

import (
	"fmt"

	"livepoll/internal/domain/event"
	"livepoll/internal/domain/poll"
	"livepoll/internal/domain/user"

	"gorm.io/gorm"
)

// InitSchema handles the database schema migration.
// It creates necessary extensions, runs Gorm auto-migration, and installs
// the cascade constraints the application relies on.
func InitSchema(db *gorm.DB) error {
	// 1. Extensions
	// Note: Creating extensions usually requires superuser privileges.
	// If this fails, ensure the extensions are pre-installed or the user has permissions.
	extensions := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
		`CREATE EXTENSION IF NOT EXISTS "citext";`,
	}

	for _, ext := range extensions {
		if err := db.Exec(ext).Error; err != nil {
			return fmt.Errorf("failed to create extension: %w", err)
		}
	}

	// 2. AutoMigrate Tables
	// This uses the Domain models to create tables, columns, and indexes.
	if err := db.AutoMigrate(
		&user.User{},
		&user.UserSession{},
		&user.RecoveryToken{},
		&poll.Poll{},
		&poll.Option{},
		&poll.Vote{},
		&event.OutboxEvent{},
	); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	// 3. Cascade constraints
	// AutoMigrate does not wire the vote/option foreign keys the way the
	// schema declares them, so they are installed explicitly and
	// idempotently here. Votes cascade from both their poll and their
	// option; options cascade from their poll.
	constraints := []struct {
		name string
		sql  string
	}{
		{
			name: "fk_poll_options_poll",
			sql: `ALTER TABLE poll_options
				ADD CONSTRAINT fk_poll_options_poll
				FOREIGN KEY (poll_id) REFERENCES polls(id) ON DELETE CASCADE;`,
		},
		{
			name: "fk_votes_poll",
			sql: `ALTER TABLE votes
				ADD CONSTRAINT fk_votes_poll
				FOREIGN KEY (poll_id) REFERENCES polls(id) ON DELETE CASCADE;`,
		},
		{
			name: "fk_votes_option",
			sql: `ALTER TABLE votes
				ADD CONSTRAINT fk_votes_option
				FOREIGN KEY (option_id) REFERENCES poll_options(id) ON DELETE CASCADE;`,
		},
		{
			name: "fk_votes_user",
			sql: `ALTER TABLE votes
				ADD CONSTRAINT fk_votes_user
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE;`,
		},
	}

	for _, c := range constraints {
		stmt := fmt.Sprintf(`DO $$ BEGIN
			%s
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`, c.sql)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create constraint %s: %w", c.name, err)
		}
	}

	// 4. Relay index
	// The outbox processor polls for unprocessed rows; a partial index
	// keeps that scan cheap as the table grows.
	pendingIdx := `CREATE INDEX IF NOT EXISTS idx_outbox_events_pending
		ON outbox_events (created_at)
		WHERE processed_at IS NULL;`
	if err := db.Exec(pendingIdx).Error; err != nil {
		return fmt.Errorf("failed to create outbox index: %w", err)
	}

	return nil
}
