package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/tasks-api/internal/config"
	"github.com/phrazzld/tasks-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TASKS_DATABASE_DRIVER", "sqlite")
	t.Setenv("TASKS_DATABASE_URL", filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("TASKS_AUTH_JWT_SECRET", testSecret)
	t.Setenv("TASKS_SERVER_LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommandTree(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"serve", "migrate", "digest", "token"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestTokenCommand(t *testing.T) {
	sqliteEnv(t)
	userID := uuid.New()

	out, err := execute(t, "token", userID.String())
	require.NoError(t, err)

	jwtService, err := auth.NewJWTService(config.AuthConfig{JWTSecret: testSecret, TokenLifetimeMinutes: 60})
	require.NoError(t, err)
	claims, err := jwtService.ValidateToken(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
}

func TestTokenCommandRejectsBadUUID(t *testing.T) {
	_, err := execute(t, "token", "not-a-uuid")
	assert.Error(t, err)
}

func TestMigrateCommand(t *testing.T) {
	sqliteEnv(t)

	_, err := execute(t, "migrate", "up")
	require.NoError(t, err)

	_, err = execute(t, "migrate", "version")
	require.NoError(t, err)

	_, err = execute(t, "migrate", "sideways")
	assert.Error(t, err)
}

func TestDigestRunCommand(t *testing.T) {
	sqliteEnv(t)

	_, err := execute(t, "migrate", "up")
	require.NoError(t, err)

	out, err := execute(t, "digest", "run")
	require.NoError(t, err)
	assert.Contains(t, out, "0 digest(s) processed")
}

func TestLoadAppConfigMissingSecret(t *testing.T) {
	t.Setenv("TASKS_DATABASE_URL", "postgres://localhost/tasks")
	t.Setenv("TASKS_AUTH_JWT_SECRET", "")

	_, _, err := loadAppConfig("")
	assert.Error(t, err)
}
