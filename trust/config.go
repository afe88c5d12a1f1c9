// Package trust holds the admin-owned trust parameters for result admission.
package trust

import (
	"fmt"

	"github.com/coeus-network/tee-oracle-backend/interfaces"
)

// DefaultMaxStalenessMs is the staleness window installed at system
// initialization until the admin overrides it.
const DefaultMaxStalenessMs uint64 = 60_000

// Config is the single parameter store gating result freshness. The admin
// principal is fixed for the object's lifetime; there is no rotation
// operation.
type Config struct {
	maxStalenessMs uint64
	admin          interfaces.Principal
}

// NewConfig creates the config with the default staleness window.
func NewConfig(admin interfaces.Principal) *Config {
	return &Config{maxStalenessMs: DefaultMaxStalenessMs, admin: admin}
}

// SetMaxStaleness updates the staleness window. Only the admin may call it;
// any other caller fails with ErrNotAdmin and the stored value is unchanged.
func (c *Config) SetMaxStaleness(caller interfaces.Principal, value uint64) error {
	if !caller.Equal(c.admin) {
		return fmt.Errorf("%w: %s", interfaces.ErrNotAdmin, caller)
	}
	c.maxStalenessMs = value
	return nil
}

// MaxStaleness returns the maximum allowed age, in milliseconds, between a
// result's claimed computation time and its admission.
func (c *Config) MaxStaleness() uint64 {
	return c.maxStalenessMs
}

// Admin returns the owning principal.
func (c *Config) Admin() interfaces.Principal {
	return c.admin
}
