package account_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/goliatone/go-account"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	sqliteCreateUsers = `CREATE TABLE users (
    id TEXT NOT NULL PRIMARY KEY,
    user_role TEXT NOT NULL DEFAULT 'guest',
    first_name TEXT,
    last_name TEXT,
    username TEXT NOT NULL UNIQUE,
    profile_picture TEXT,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT,
    activation_token TEXT,
    password_reset_token TEXT,
    is_inactive BOOLEAN NOT NULL DEFAULT TRUE,
    login_attempts INTEGER DEFAULT 0,
    login_attempt_at TIMESTAMP,
    loggedin_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    deleted_at TIMESTAMP
);`

	sqliteCreateUserTokens = `CREATE TABLE user_tokens (
    id TEXT NOT NULL PRIMARY KEY,
    token TEXT NOT NULL UNIQUE,
    user_id TEXT NOT NULL,
    last_used_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
);`
)

func setupTestDB(t *testing.T) (*bun.DB, func()) {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	_, err = bunDB.Exec(sqliteCreateUsers)
	require.NoError(t, err)
	_, err = bunDB.Exec(sqliteCreateUserTokens)
	require.NoError(t, err)

	cleanup := func() {
		_ = bunDB.Close()
	}

	return bunDB, cleanup
}

func setupRepoManager(t *testing.T) (account.RepositoryManager, *bun.DB, func()) {
	t.Helper()

	db, cleanup := setupTestDB(t)
	return account.NewRepositoryManager(db), db, cleanup
}

func seedUser(t *testing.T, repo account.RepositoryManager, mutate ...func(*account.User)) *account.User {
	t.Helper()

	user := &account.User{
		Email:    "pepe.rone@example.com",
		Username: "pepe",
		Inactive: false,
	}

	for _, m := range mutate {
		if m != nil {
			m(user)
		}
	}

	created, err := repo.Users().Create(context.Background(), user)
	require.NoError(t, err)

	return created
}

func countUsers(t *testing.T, db *bun.DB) int {
	t.Helper()

	count, err := db.NewSelect().Model((*account.User)(nil)).Count(context.Background())
	require.NoError(t, err)
	return count
}

func countTokens(t *testing.T, db *bun.DB) int {
	t.Helper()

	count, err := db.NewSelect().Model((*account.Token)(nil)).Count(context.Background())
	require.NoError(t, err)
	return count
}

func getUserByID(t *testing.T, db *bun.DB, id string) *account.User {
	t.Helper()

	user := &account.User{}
	err := db.NewSelect().Model(user).Where("?TableAlias.id = ?", id).Scan(context.Background())
	require.NoError(t, err)
	return user
}

func daysAgo(d int) time.Time {
	return time.Now().Add(-time.Duration(d) * 24 * time.Hour)
}
