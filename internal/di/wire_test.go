package di

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundops/compliance-engine/internal/config"
)

func TestWire_BuildsFullDependencyGraph(t *testing.T) {
	c := newTestConfig(t)

	container, err := Wire(context.Background(), c, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	assert.NotNil(t, container.DB)
	assert.NotNil(t, container.Funds)
	assert.NotNil(t, container.Oracle)
	assert.NotNil(t, container.TradeDesk)
	assert.NotNil(t, container.Server)
	assert.NotNil(t, container.Scheduler)

	funds, err := container.Funds.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, funds)
}

func TestWire_SkipsAuditArchivalJobWithoutBucket(t *testing.T) {
	c := newTestConfig(t)
	c.AuditArchivalBucket = ""
	c.AuditArchivalEnabled = true

	container, err := Wire(context.Background(), c, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	assert.NotNil(t, container.Scheduler)
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	c, err := config.Load(t.TempDir())
	require.NoError(t, err)
	c.Port = 0
	c.AuditArchivalEnabled = false
	return c
}
