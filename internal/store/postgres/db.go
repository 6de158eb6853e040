package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the chat schema on PostgreSQL.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id               BIGSERIAL PRIMARY KEY,
			username         VARCHAR(50)  UNIQUE NOT NULL,
			email            VARCHAR(100) UNIQUE,
			hashed_password  VARCHAR(255) NOT NULL,
			is_active        BOOLEAN      NOT NULL DEFAULT TRUE,
			is_online        BOOLEAN      NOT NULL DEFAULT FALSE,
			created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			last_seen        TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS conversations (
			id                 BIGSERIAL    PRIMARY KEY,
			name               VARCHAR(100),
			is_group           BOOLEAN      NOT NULL DEFAULT FALSE,
			created_by         BIGINT       NOT NULL DEFAULT 0,
			max_members        INT          NOT NULL DEFAULT 0,
			is_public          BOOLEAN      NOT NULL DEFAULT FALSE,
			only_admins_invite BOOLEAN      NOT NULL DEFAULT FALSE,
			is_archived        BOOLEAN      NOT NULL DEFAULT FALSE,
			created_at         TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at         TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS conversation_participants (
			user_id         BIGINT       NOT NULL REFERENCES users(id),
			conversation_id BIGINT       NOT NULL REFERENCES conversations(id),
			last_read_at    TIMESTAMPTZ,
			joined_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, conversation_id)
		)`,

		`CREATE TABLE IF NOT EXISTS conversation_admins (
			user_id         BIGINT NOT NULL REFERENCES users(id),
			conversation_id BIGINT NOT NULL REFERENCES conversations(id),
			PRIMARY KEY (user_id, conversation_id)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id              BIGSERIAL    PRIMARY KEY,
			content         TEXT         NOT NULL,
			message_type    VARCHAR(20)  NOT NULL DEFAULT 'text',
			conversation_id BIGINT       NOT NULL REFERENCES conversations(id),
			sender_id       BIGINT       NOT NULL REFERENCES users(id),
			created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			file_path       TEXT,
			fully_read_at   TIMESTAMPTZ,
			is_deleted      BOOLEAN      NOT NULL DEFAULT FALSE
		)`,

		`CREATE TABLE IF NOT EXISTS invitations (
			id              VARCHAR(36)  PRIMARY KEY,
			conversation_id BIGINT       NOT NULL REFERENCES conversations(id),
			inviter_id      BIGINT       NOT NULL REFERENCES users(id),
			invitee_id      BIGINT       NOT NULL REFERENCES users(id),
			status          VARCHAR(20)  NOT NULL DEFAULT 'pending',
			created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			expires_at      TIMESTAMPTZ  NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS chat_requests (
			id           VARCHAR(36)  PRIMARY KEY,
			from_user_id BIGINT       NOT NULL REFERENCES users(id),
			to_user_id   BIGINT       NOT NULL REFERENCES users(id),
			message      TEXT,
			status       VARCHAR(20)  NOT NULL DEFAULT 'pending',
			created_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			expires_at   TIMESTAMPTZ  NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_users_is_online ON users(is_online)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_conv_participants_user ON conversation_participants(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conv_participants_conv ON conversation_participants(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_invitations_invitee ON invitations(invitee_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_requests_to_user ON chat_requests(to_user_id, status)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
