package consensus

import "time"

// Config bounds a Node's timers, per spec §4.4's defaults.
type Config struct {
	// ElectionTimeoutMin/Max bound the randomised election timer; a new
	// random value in this range is drawn every time the timer resets.
	ElectionTimeoutMin time.Duration
	ElectionTimeoutMax time.Duration

	// HeartbeatInterval is how often a leader sends empty AppendEntries to
	// keep followers from starting an election.
	HeartbeatInterval time.Duration

	// RPCTimeout bounds a single RequestVote/AppendEntries round trip.
	RPCTimeout time.Duration
}

// DefaultConfig returns the timer bounds named in spec §4.4.
func DefaultConfig() Config {
	return Config{
		ElectionTimeoutMin: 150 * time.Millisecond,
		ElectionTimeoutMax: 300 * time.Millisecond,
		HeartbeatInterval:  50 * time.Millisecond,
		RPCTimeout:         1000 * time.Millisecond,
	}
}
