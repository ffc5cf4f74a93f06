// Package scheduler drives block production on the devchain.
package scheduler

import "time"

// Config defines the block production schedule.
type Config struct {
	// BlockTime is the interval between blocks.
	BlockTime time.Duration `yaml:"block_time"`
	// MaxTxPerBlock caps how many pool transactions one block includes.
	// Zero means no cap.
	MaxTxPerBlock int `yaml:"max_tx_per_block"`
}

// DefaultConfig returns the default schedule.
func DefaultConfig() *Config {
	return &Config{
		BlockTime:     2 * time.Second,
		MaxTxPerBlock: 64,
	}
}

// interval returns BlockTime, falling back to the default for a zero or
// negative value.
func (c *Config) interval() time.Duration {
	if c.BlockTime <= 0 {
		return DefaultConfig().BlockTime
	}
	return c.BlockTime
}
