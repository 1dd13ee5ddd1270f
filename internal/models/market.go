package models

// MarketPhase двигается только push-событиями брокера и только вперёд в пределах дня.
type MarketPhase int

const (
	PhaseNotOperational MarketPhase = iota
	PhaseBeforeOpen
	PhaseOpen
	PhaseAfterSimultaneousQuote
	PhaseAfterClose
	PhaseAfterCloseComplete
)

func (p MarketPhase) String() string {
	switch p {
	case PhaseNotOperational:
		return "NOT_OPERATIONAL"
	case PhaseBeforeOpen:
		return "BEFORE_OPEN"
	case PhaseOpen:
		return "OPEN"
	case PhaseAfterSimultaneousQuote:
		return "AFTER_SIMULTANEOUS_QUOTE"
	case PhaseAfterClose:
		return "AFTER_CLOSE"
	case PhaseAfterCloseComplete:
		return "AFTER_CLOSE_COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// RecoveryState строго упорядочен, шаг всегда +1.
type RecoveryState int

const (
	RecoveryStandby RecoveryState = iota
	RecoveryWarmupLiveStart
	RecoveryWarmupLiveEnd
	RecoveryWarmupBatchStart
	RecoveryWarmupBatchEnd
	RecoveryRecovered
)

func (s RecoveryState) String() string {
	switch s {
	case RecoveryStandby:
		return "STANDBY"
	case RecoveryWarmupLiveStart:
		return "WARMUP_LIVE_START"
	case RecoveryWarmupLiveEnd:
		return "WARMUP_LIVE_END"
	case RecoveryWarmupBatchStart:
		return "WARMUP_BATCH_START"
	case RecoveryWarmupBatchEnd:
		return "WARMUP_BATCH_END"
	case RecoveryRecovered:
		return "RECOVERED"
	default:
		return "UNKNOWN"
	}
}
