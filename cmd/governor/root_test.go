package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"migrate"},
		{"retention", "sweep"},
		{"access", "check"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, "%v", path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestAccessCheck_RejectsBadUserID(t *testing.T) {
	rootCmd.SetArgs([]string{"access", "check", "not-a-uuid"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid user id")
}

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_ACCESS_SECRET", "access-secret-that-is-at-least-32-chars!")
	t.Setenv("DB_PASSWORD", "secret")
}

func TestLoadConfig_Valid(t *testing.T) {
	setValidEnv(t)

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.Retention.Interval)
}

func TestLoadConfig_RejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		env  string
		val  string
		want string
	}{
		{"RETENTION_INTERVAL", "0s", "RETENTION_INTERVAL"},
		{"GOVERNANCE_FREE_MESSAGE_LIMIT", "-5", "GOVERNANCE_FREE_MESSAGE_LIMIT"},
		{"RETENTION_MANUAL_MAX_REQUESTS", "0", "RETENTION_MANUAL_MAX_REQUESTS"},
		{"JWT_ACCESS_SECRET", "", "JWT_ACCESS_SECRET"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			setValidEnv(t)
			t.Setenv(tt.env, tt.val)

			_, err := loadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRetentionSweep_InvalidConfigFailsBeforeConnecting(t *testing.T) {
	setValidEnv(t)
	t.Setenv("RETENTION_INTERVAL", "0s")

	rootCmd.SetArgs([]string{"retention", "sweep"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RETENTION_INTERVAL")
}
