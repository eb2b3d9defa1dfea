package main

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "FFB_CONFIG_FILE", "FFB_ENV", "FFB_BCRYPT_COST"} {
		t.Setenv(key, "")
	}
}

func mockOpener(t *testing.T) (opener, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
	})
	return func(context.Context, string) (*sql.DB, error) { return db, nil }, mock
}

func execute(t *testing.T, open opener, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(open, strings.NewReader(stdin))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMissingDSN(t *testing.T) {
	isolateEnv(t)
	_, err := execute(t, func(context.Context, string) (*sql.DB, error) {
		t.Fatal("opener must not be called")
		return nil, nil
	}, "", "purge-attempts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing DSN")
}

func TestPurgeAttempts(t *testing.T) {
	isolateEnv(t)
	open, mock := mockOpener(t)
	mock.ExpectExec("delete from login_attempts").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectClose()

	out, err := execute(t, open, "", "--dsn", "postgres://test", "purge-attempts", "--older-than", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "purged 3 record(s)")
}

func TestUserCreate(t *testing.T) {
	isolateEnv(t)
	open, mock := mockOpener(t)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("insert into users").
		WithArgs("ops", "ops@example.ae", sqlmock.AnyArg(), "Ops Desk", "admin", true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(7, now, now))
	mock.ExpectClose()

	out, err := execute(t, open, "a-long-enough-password\n",
		"--dsn", "postgres://test", "user", "create", "Ops", "--email", "OPS@example.ae", "--name", "Ops Desk")
	require.NoError(t, err)
	assert.Contains(t, out, "created user ops (id 7)")
}

func TestUserCreateRejectsShortPassword(t *testing.T) {
	isolateEnv(t)
	_, err := execute(t, func(context.Context, string) (*sql.DB, error) {
		t.Fatal("opener must not be called")
		return nil, nil
	}, "short\n", "--dsn", "postgres://test", "user", "create", "ops", "--email", "ops@example.ae")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least")
}

func TestUserCreateRejectsUnknownRole(t *testing.T) {
	isolateEnv(t)
	_, err := execute(t, nil, "a-long-enough-password\n",
		"--dsn", "postgres://test", "user", "create", "ops", "--email", "ops@example.ae", "--role", "root")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}
