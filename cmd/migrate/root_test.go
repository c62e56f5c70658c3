// AngelaMos | 2026
// root_test.go

package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func errCode(t *testing.T, err error) any {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected an oops error, got %v", err)
	return oopsErr.Code()
}

func TestSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"up", "down", "status", "version"}, names)
}

func TestRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := execute(t, "up")
	require.Error(t, err)
	assert.Equal(t, "CONFIG_INVALID", errCode(t, err))
}

func TestConnectFailure(t *testing.T) {
	orig := openDB
	t.Cleanup(func() { openDB = orig })

	var gotURL string
	openDB = func(_ context.Context, url string) (*sql.DB, error) {
		gotURL = url
		return nil, errors.New("connection refused")
	}

	t.Setenv("DATABASE_URL", "postgres://from-env")

	_, err := execute(t, "status", "--database-url", "postgres://from-flag")
	require.Error(t, err)
	assert.Equal(t, "DB_CONNECT_FAILED", errCode(t, err))
	assert.Equal(t, "postgres://from-flag", gotURL)

	_, err = execute(t, "down")
	require.Error(t, err)
	assert.Equal(t, "postgres://from-env", gotURL)
}

func TestRejectsExtraArgs(t *testing.T) {
	_, err := execute(t, "up", "extra")
	require.Error(t, err)
}
