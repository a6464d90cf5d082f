package types

// State is the persisted per-key state of one strategy. The set of implementations is closed.
type State interface {
	Strategy() Strategy
}

type FixedWindowState struct {
	Count int64 `json:"count"`
}

// SlidingWindowState holds the unix millisecond timestamps of counted requests, oldest first.
type SlidingWindowState struct {
	Timestamps []int64 `json:"timestamps"`
}

// TokenBucketState keeps 0 <= Tokens <= MaxRequests. LastRefill is unix milliseconds.
type TokenBucketState struct {
	Tokens     int64 `json:"tokens"`
	LastRefill int64 `json:"lastRefill"`
}

// LeakyBucketState keeps 0 <= Level <= MaxRequests. LastLeak is unix milliseconds.
type LeakyBucketState struct {
	Level    int64 `json:"level"`
	LastLeak int64 `json:"lastLeak"`
}

func (FixedWindowState) Strategy() Strategy   { return StrategyFixedWindow }
func (SlidingWindowState) Strategy() Strategy { return StrategySlidingWindow }
func (TokenBucketState) Strategy() Strategy   { return StrategyTokenBucket }
func (LeakyBucketState) Strategy() Strategy   { return StrategyLeakyBucket }
