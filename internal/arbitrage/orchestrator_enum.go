package arbitrage

type State int

const (
	Refresh State = iota
	Detect
	ThresholdCheck
	BalanceCheck
	Execute
	Notify
	Idle
)

func (e State) String() string {
	return []string{"refresh", "detect", "threshold_check", "balance_check", "execute", "notify", "idle"}[e]
}

// Outcome is how a tick ended.
type Outcome int

const (
	Abandoned Outcome = iota
	NoOpportunity
	BelowThreshold
	InsufficientBalance
	Executed
)

func (e Outcome) String() string {
	return []string{"abandoned", "no_opportunity", "below_threshold", "insufficient_balance", "executed"}[e]
}
