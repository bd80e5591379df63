package execstate

// Config bounds iteration counts, loop detection, and where the execution
// log is persisted.
type Config struct {
	MaxWorkflowIterations int
	LoopLookback          int
	LogDir                string
}

// DefaultConfig matches spec §4.3/§6: a 20-iteration cap, a six-record
// loop-detection window, and logs under .claude/logs relative to the
// project directory (resolved by the caller).
func DefaultConfig() *Config {
	return &Config{
		MaxWorkflowIterations: 20,
		LoopLookback:          6,
		LogDir:                ".claude/logs",
	}
}

// Merge overlays source's non-zero fields onto c.
func (c *Config) Merge(source *Config) *Config {
	if source == nil {
		return c
	}
	if source.MaxWorkflowIterations > 0 {
		c.MaxWorkflowIterations = source.MaxWorkflowIterations
	}
	if source.LoopLookback > 0 {
		c.LoopLookback = source.LoopLookback
	}
	if source.LogDir != "" {
		c.LogDir = source.LogDir
	}
	return c
}
