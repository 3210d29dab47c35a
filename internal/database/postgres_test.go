package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiox-platform/governor/internal/config"
)

func TestPoolConfig(t *testing.T) {
	pc, err := poolConfig(config.DBConfig{
		Host: "db.internal", Port: 5433, User: "governor", Password: "pw",
		Name: "governor", SSLMode: "disable", MaxConns: 10, MinConns: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(10), pc.MaxConns)
	assert.Equal(t, int32(2), pc.MinConns)
	assert.Equal(t, "db.internal", pc.ConnConfig.Host)
	assert.Equal(t, uint16(5433), pc.ConnConfig.Port)
	assert.Equal(t, "governor", pc.ConnConfig.RuntimeParams["application_name"])
}
