// Package validator implements the stake-weighted validator-set manager:
// registration and status transitions, effective-voting-power ranking, epoch
// rotation, and a deterministic weighted round-robin proposer selection used
// by the runtime to decide block-production identity. This runs alongside,
// and independently of, the BFT core's own positional proposer rule
// (pkg/bft.Core) — the two coexist rather than one delegating to the other.
package validator

import "fmt"

// LockTier is how long a staker has committed funds for, in exchange for a
// voting-power multiplier. Restored from the original chain's staking model
// (economics/staking/src/tiers.rs), which the distilled spec names but does
// not tabulate.
type LockTier int

const (
	LockNone LockTier = iota
	LockThirtyDay
	LockNinetyDay
	LockOneEightyDay
	LockThreeSixtyDay
	LockDelegator
	LockPermanent
)

// VoteWeightBps returns the tier's voting-power multiplier in basis points
// (10000 == 1.0x). A validator's (or delegation's) effective voting power is
// stake * VoteWeightBps / 10000.
func (t LockTier) VoteWeightBps() uint32 {
	switch t {
	case LockNone:
		return 0
	case LockThirtyDay:
		return 100
	case LockNinetyDay:
		return 200
	case LockOneEightyDay:
		return 300
	case LockThreeSixtyDay:
		return 500
	case LockDelegator:
		return 1000
	case LockPermanent:
		return 1500
	default:
		return 0
	}
}

// LockDurationEpochs returns how many epochs funds under this tier remain
// locked, or (0, false) for Permanent, which never unlocks on its own.
func (t LockTier) LockDurationEpochs() (uint64, bool) {
	switch t {
	case LockNone:
		return 0, true
	case LockThirtyDay:
		return 30, true
	case LockNinetyDay:
		return 90, true
	case LockOneEightyDay:
		return 180, true
	case LockThreeSixtyDay:
		return 360, true
	case LockDelegator:
		return 0, true
	case LockPermanent:
		return 0, false
	default:
		return 0, true
	}
}

func (t LockTier) String() string {
	switch t {
	case LockNone:
		return "none"
	case LockThirtyDay:
		return "30d"
	case LockNinetyDay:
		return "90d"
	case LockOneEightyDay:
		return "180d"
	case LockThreeSixtyDay:
		return "360d"
	case LockDelegator:
		return "delegator"
	case LockPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// votePower scales an amount by a tier's basis-points multiplier: stake *
// vote_weight_bps / 10000.
func votePower(amount uint64, tier LockTier) uint64 {
	return (amount * uint64(tier.VoteWeightBps())) / 10000
}

// Delegation is a single delegator's stake placed behind a validator, locked
// under its own tier independent of the validator's own lock tier.
type Delegation struct {
	Delegator string // opaque identifier; the account pubkey hex in practice
	Amount    uint64
	Tier      LockTier
}

func validateDelegation(d Delegation) error {
	if d.Delegator == "" {
		return fmt.Errorf("validator: delegation missing delegator")
	}
	if d.Amount == 0 {
		return fmt.Errorf("validator: delegation amount must be nonzero")
	}
	return nil
}
