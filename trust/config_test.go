package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coeus-network/tee-oracle-backend/interfaces"
)

func TestNewConfigDefaults(t *testing.T) {
	admin := interfaces.Principal{1}
	cfg := NewConfig(admin)

	assert.Equal(t, DefaultMaxStalenessMs, cfg.MaxStaleness())
	assert.True(t, cfg.Admin().Equal(admin))
}

func TestSetMaxStalenessAdminOnly(t *testing.T) {
	admin := interfaces.Principal{1}
	other := interfaces.Principal{2}
	cfg := NewConfig(admin)

	err := cfg.SetMaxStaleness(other, 5_000)
	assert.ErrorIs(t, err, interfaces.ErrNotAdmin)
	assert.Equal(t, DefaultMaxStalenessMs, cfg.MaxStaleness(), "rejected update must not change the window")

	require.NoError(t, cfg.SetMaxStaleness(admin, 5_000))
	assert.Equal(t, uint64(5_000), cfg.MaxStaleness())
}

func TestSetMaxStalenessZeroWindow(t *testing.T) {
	admin := interfaces.Principal{1}
	cfg := NewConfig(admin)

	// A zero window is allowed; it admits only results stamped at or after
	// the admission clock.
	require.NoError(t, cfg.SetMaxStaleness(admin, 0))
	assert.Equal(t, uint64(0), cfg.MaxStaleness())
}
