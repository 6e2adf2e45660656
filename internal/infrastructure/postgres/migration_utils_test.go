//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/courtside/registration-service/internal/infrastructure/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS tournaments (
	id UUID PRIMARY KEY,
	category_id UUID NOT NULL,
	status TEXT NOT NULL DEFAULT 'scheduled',
	capacity INT,
	registration_opens_at TIMESTAMPTZ,
	registration_closes_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS registrations (
	id UUID PRIMARY KEY,
	tournament_id UUID NOT NULL,
	player_id UUID NOT NULL,
	status TEXT NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	withdrawn_at TIMESTAMPTZ,
	withdrawn_by UUID,
	promoted_by TEXT,
	promoted_at TIMESTAMPTZ,
	demoted_at TIMESTAMPTZ,
	demoted_by UUID,
	UNIQUE (tournament_id, player_id)
);
CREATE INDEX IF NOT EXISTS idx_registrations_waitlist
	ON registrations (tournament_id, registered_at, id) WHERE status = 'waitlisted';

CREATE TABLE IF NOT EXISTS pair_registrations (
	id UUID PRIMARY KEY,
	tournament_id UUID NOT NULL,
	pair_id UUID NOT NULL,
	status TEXT NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	withdrawn_at TIMESTAMPTZ,
	withdrawn_by UUID,
	promoted_by TEXT,
	promoted_at TIMESTAMPTZ,
	demoted_at TIMESTAMPTZ,
	demoted_by UUID,
	UNIQUE (tournament_id, pair_id)
);

CREATE TABLE IF NOT EXISTS pairs (
	id UUID PRIMARY KEY,
	player1_id UUID NOT NULL,
	player2_id UUID NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
	id UUID PRIMARY KEY,
	organizer_id UUID NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	min_age INT,
	max_age INT,
	gender TEXT
);

CREATE TABLE IF NOT EXISTS players (
	id UUID PRIMARY KEY,
	birthdate DATE,
	gender TEXT,
	profile_complete BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS category_registrations (
	id UUID PRIMARY KEY,
	category_id UUID NOT NULL,
	player_id UUID NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	withdrawn_at TIMESTAMPTZ,
	suspended_at TIMESTAMPTZ,
	suspended_by UUID,
	suspended_reason TEXT,
	has_participated BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (category_id, player_id)
);

CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	message_id UUID NOT NULL,
	trace_id TEXT NOT NULL DEFAULT '',
	routing_key TEXT NOT NULL,
	payload JSONB NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	status TEXT NOT NULL DEFAULT 'pending',
	attempt INT NOT NULL DEFAULT 0,
	next_retry_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_error TEXT
);

CREATE TABLE IF NOT EXISTS processed_messages (
	message_id TEXT NOT NULL,
	handler_name TEXT NOT NULL,
	processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (message_id, handler_name)
);

CREATE TABLE IF NOT EXISTS idempotency_keys (
	key TEXT PRIMARY KEY,
	owner_id UUID NOT NULL,
	tournament_id UUID NOT NULL,
	action TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	expires_at TIMESTAMPTZ NOT NULL
);
`

// setupRepo connects via TEST_DB_DSN, bootstraps the schema and truncates all
// service tables so every test starts clean.
func setupRepo(t *testing.T) (*postgres.Repository, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("Skipping integration test: TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = pool.Exec(ctx, schemaDDL)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE tournaments, registrations, pair_registrations, pairs,
			categories, players, category_registrations,
			outbox, processed_messages, idempotency_keys
		RESTART IDENTITY CASCADE
	`)
	require.NoError(t, err)

	shared := postgres.NewShared(pool)
	return postgres.New(pool, shared, shared), pool
}

// --- seed helpers ---

func seedCategory(t *testing.T, pool *pgxpool.Pool, organizerID uuid.UUID) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO categories (id, organizer_id, name) VALUES ($1, $2, 'open singles')
	`, id, organizerID)
	require.NoError(t, err)
	return id
}

func seedRestrictedCategory(t *testing.T, pool *pgxpool.Pool, organizerID uuid.UUID, minAge, maxAge *int, gender string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	var g *string
	if gender != "" {
		g = &gender
	}
	_, err := pool.Exec(context.Background(), `
		INSERT INTO categories (id, organizer_id, name, min_age, max_age, gender)
		VALUES ($1, $2, 'restricted', $3, $4, $5)
	`, id, organizerID, minAge, maxAge, g)
	require.NoError(t, err)
	return id
}

func seedPlayer(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	return seedPlayerProfile(t, pool, time.Now().AddDate(-25, 0, 0), "f", true)
}

func seedPlayerProfile(t *testing.T, pool *pgxpool.Pool, birthdate time.Time, gender string, complete bool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO players (id, birthdate, gender, profile_complete) VALUES ($1, $2, $3, $4)
	`, id, birthdate, gender, complete)
	require.NoError(t, err)
	return id
}

func seedTournament(t *testing.T, pool *pgxpool.Pool, categoryID uuid.UUID, capacity *int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO tournaments (id, category_id, status, capacity) VALUES ($1, $2, 'scheduled', $3)
	`, id, categoryID, capacity)
	require.NoError(t, err)
	return id
}

func seedPair(t *testing.T, pool *pgxpool.Pool, p1, p2 uuid.UUID) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO pairs (id, player1_id, player2_id) VALUES ($1, $2, $3)
	`, id, p1, p2)
	require.NoError(t, err)
	return id
}

func seedMembership(t *testing.T, pool *pgxpool.Pool, categoryID, playerID uuid.UUID, status string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO category_registrations (id, category_id, player_id, status, registered_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, id, categoryID, playerID, status)
	require.NoError(t, err)
	return id
}

func intPtr(v int) *int { return &v }

func registrationStatus(t *testing.T, pool *pgxpool.Pool, tournamentID, playerID uuid.UUID) string {
	t.Helper()
	var s string
	err := pool.QueryRow(context.Background(),
		`SELECT status FROM registrations WHERE tournament_id = $1 AND player_id = $2`,
		tournamentID, playerID).Scan(&s)
	require.NoError(t, err)
	return s
}

func outboxCount(t *testing.T, pool *pgxpool.Pool, routingKey string) int {
	t.Helper()
	var n int
	err := pool.QueryRow(context.Background(),
		`SELECT count(*) FROM outbox WHERE routing_key = $1`, routingKey).Scan(&n)
	require.NoError(t, err)
	return n
}
