package order

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-orders/internal/order/app/core"
)

func TestParseParams(t *testing.T) {
	p, err := parseParams([]string{"--port=4100", "--config-path=/tmp/x.yaml"})
	require.NoError(t, err)
	assert.Equal(t, 4100, p.orderParams.Port)
	assert.True(t, p.portSet)
	assert.Equal(t, "/tmp/x.yaml", p.orderParams.ConfigPath)

	_, err = parseParams([]string{"--help"})
	assert.ErrorIs(t, err, core.ErrHelp)

	_, err = parseParams([]string{"--bogus"})
	assert.ErrorIs(t, err, core.ErrParseCmd)
}

func TestValidateParams(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("PORT", "")
	missing := filepath.Join(t.TempDir(), "none.yaml")

	p, err := parseParams([]string{"--config-path=" + missing})
	require.NoError(t, err)
	require.NoError(t, validateParams(p))
	assert.Equal(t, 3000, p.orderParams.Port, "config port is used when the flag is absent")

	p, err = parseParams([]string{"--config-path=" + missing, "--port=70000"})
	require.NoError(t, err)
	assert.Error(t, validateParams(p))
}
