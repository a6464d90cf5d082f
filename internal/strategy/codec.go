package strategy

import (
	"encoding/json"
	"fmt"

	"github.com/AikidoSec/ratelimit-go/internal/types"
)

type envelope struct {
	Strategy types.Strategy  `json:"strategy"`
	State    json.RawMessage `json:"state"`
}

// Encode serializes a state tagged with its strategy.
func Encode(state types.State) ([]byte, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Strategy: state.Strategy(), State: raw})
}

// Decode parses a stored state for the given strategy. It fails on malformed
// data and on state written by a different strategy.
func Decode(strategy types.Strategy, b []byte) (types.State, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if env.Strategy != strategy {
		return nil, fmt.Errorf("decode state: stored %q, want %q", env.Strategy, strategy)
	}
	if len(env.State) == 0 {
		return nil, fmt.Errorf("decode state: empty %s state", strategy)
	}

	switch strategy {
	case types.StrategyFixedWindow:
		var s types.FixedWindowState
		if err := unmarshal(env.State, &s); err != nil {
			return nil, err
		}
		return s, nil
	case types.StrategySlidingWindow:
		var s types.SlidingWindowState
		if err := unmarshal(env.State, &s); err != nil {
			return nil, err
		}
		if err := sorted(s.Timestamps); err != nil {
			return nil, err
		}
		return s, nil
	case types.StrategyTokenBucket:
		var s types.TokenBucketState
		if err := unmarshal(env.State, &s); err != nil {
			return nil, err
		}
		return s, nil
	case types.StrategyLeakyBucket:
		var s types.LeakyBucketState
		if err := unmarshal(env.State, &s); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", types.ErrUnknownStrategy, strategy)
}

func unmarshal(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	return nil
}

func sorted(ts []int64) error {
	for i := 1; i < len(ts); i++ {
		if ts[i] < ts[i-1] {
			return fmt.Errorf("decode state: timestamps out of order")
		}
	}
	return nil
}
