package bft

import (
	"github.com/ordinalchain/ordinal/pkg/crypto"
	"github.com/ordinalchain/ordinal/pkg/encoding"
	"github.com/ordinalchain/ordinal/pkg/types"
)

// RoundStep is a stage within a single round of consensus.
type RoundStep int

const (
	StepNewRound RoundStep = iota
	StepPropose
	StepPrevote
	StepPrecommit
	StepCommit
)

func (s RoundStep) String() string {
	switch s {
	case StepNewRound:
		return "new_round"
	case StepPropose:
		return "propose"
	case StepPrevote:
		return "prevote"
	case StepPrecommit:
		return "precommit"
	case StepCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// TimeoutConfig defines linearly growing per-round timeouts: base duration for
// the step plus increment*round milliseconds.
type TimeoutConfig struct {
	ProposeMs   int64
	PrevoteMs   int64
	PrecommitMs int64
	IncrementMs int64
}

// DefaultTimeoutConfig mirrors the reference chain's production defaults.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{ProposeMs: 3000, PrevoteMs: 1000, PrecommitMs: 1000, IncrementMs: 500}
}

// For computes the timeout duration, in milliseconds, for a step at round r.
func (tc TimeoutConfig) For(step RoundStep, round types.Round) int64 {
	var base int64
	switch step {
	case StepPropose:
		base = tc.ProposeMs
	case StepPrevote:
		base = tc.PrevoteMs
	case StepPrecommit:
		base = tc.PrecommitMs
	default:
		return 0
	}
	return base + tc.IncrementMs*int64(round)
}

// Core is the pure BFT state machine for a single height. It holds no clock,
// performs no I/O, and never signs anything; every externally visible effect
// is returned from the On*/Start* methods as a slice of Output.
//
// Proposer selection inside the core is purely positional:
// validators[(height+round) % len(validators)]. This is deliberately not the
// stake-weighted rule the validator-set manager uses to pick who actually
// builds and broadcasts blocks (pkg/validator.Manager.ProposerForRound) — the
// two rules coexist. The core only needs a deterministic, locally computable
// answer to "whose proposal is valid this round" given the ordered validator
// list it was built with; the caller (pkg/runtime) is responsible for feeding
// it a freshly ordered list at every epoch/height boundary and for consulting
// the stake-weighted rule separately when deciding whether this node itself
// should produce a block.
type Core struct {
	Height types.Height
	Round  types.Round
	Step   RoundStep

	validators []types.PublicKey
	total      int
	selfKey    types.PublicKey
	isSelf     bool

	timeouts TimeoutConfig

	currentProposal *types.Proposal
	prevotes        *VoteSet
	precommits      *VoteSet

	LockedValue *types.Hash
	LockedRound *types.Round
	ValidValue  *types.Hash
	ValidRound  *types.Round

	proposedBlocks map[types.Hash]types.Block
}

// NewCore builds a fresh Core for height, with the given ordered validator
// set. selfKey/hasSelf identify this node as a validator (if hasSelf is false
// the core never emits ProposeBlock; it still tallies votes, commits blocks
// and emits CastVote outputs, which pkg/runtime drops when it has no signing
// key).
func NewCore(height types.Height, validators []types.PublicKey, selfKey types.PublicKey, hasSelf bool, timeouts TimeoutConfig) *Core {
	return &Core{
		Height:         height,
		Step:           StepNewRound,
		validators:     append([]types.PublicKey(nil), validators...),
		total:          len(validators),
		selfKey:        selfKey,
		isSelf:         hasSelf,
		timeouts:       timeouts,
		proposedBlocks: make(map[types.Hash]types.Block),
	}
}

// proposerForRound returns validators[(height+round) % len(validators)], the
// core's own positional proposer rule (ground truth: proposer_index in the
// reference consensus implementation). It never consults any external
// stake-weighted selection.
func (c *Core) proposerForRound(round types.Round) (types.PublicKey, bool) {
	if c.total == 0 {
		return types.PublicKey{}, false
	}
	idx := (uint64(c.Height) + uint64(round)) % uint64(c.total)
	return c.validators[idx], true
}

// ProposedBlock returns the full block body previously seen for hash, if any.
// The runtime uses this to resolve an OutputCommitBlock into a real Block to
// apply against account state.
func (c *Core) ProposedBlock(hash types.Hash) (types.Block, bool) {
	b, ok := c.proposedBlocks[hash]
	return b, ok
}

// StartRound begins round `round` at the current height: it resets the vote
// tallies, and either asks the caller to propose (if this node is the
// round's proposer) or schedules a propose timeout.
func (c *Core) StartRound(round types.Round) []Output {
	c.Round = round
	c.Step = StepPropose
	c.currentProposal = nil
	c.prevotes = NewVoteSet(c.Height, round, types.VoteTypePrevote, c.total)
	c.precommits = NewVoteSet(c.Height, round, types.VoteTypePrecommit, c.total)

	expected, ok := c.proposerForRound(round)
	if c.isSelf && ok && expected == c.selfKey {
		return []Output{proposeBlockOutput(c.Height, round)}
	}
	return []Output{scheduleTimeoutOutput(StepPropose, c.Height, round)}
}

// OnProposal admits a proposal. It is dropped (no outputs, no state change) if
// it is for the wrong height/round, arrives outside the Propose step, comes
// from anyone but the expected proposer, or fails signature verification —
// all per the stale/invalid-event rule that such events are recovered locally.
func (c *Core) OnProposal(p types.Proposal) []Output {
	if p.Height != c.Height || p.Round != c.Round || c.Step != StepPropose {
		return nil
	}
	expected, ok := c.proposerForRound(p.Round)
	if !ok || expected != p.Proposer {
		return nil
	}
	signBytes, err := encoding.ProposalSigningBytes(&p)
	if err != nil {
		return nil
	}
	if !crypto.VerifyEd25519(p.Proposer.Bytes(), signBytes, p.Signature.Bytes()) {
		return nil
	}
	if p.Block != nil {
		gotHash, err := encoding.HashBlock(p.Block)
		if err != nil || gotHash != p.BlockHash {
			return nil
		}
	}

	c.currentProposal = &p
	if p.Block != nil {
		c.proposedBlocks[p.BlockHash] = *p.Block
	}
	c.Step = StepPrevote

	voteForBlock := false
	if p.HasValidRound {
		// Re-proposal of a value with an earlier polka: vote for it unless we
		// are locked on a *different* value from a *later* round than the
		// proposal's claimed valid round.
		if c.LockedRound == nil || *c.LockedRound <= p.ValidRound || (c.LockedValue != nil && *c.LockedValue == p.BlockHash) {
			voteForBlock = true
		}
	} else {
		// Fresh proposal: vote for it unless we are locked on a different value.
		if c.LockedRound == nil || (c.LockedValue != nil && *c.LockedValue == p.BlockHash) {
			voteForBlock = true
		}
	}

	if voteForBlock {
		return []Output{castVoteOutput(types.VoteTypePrevote, c.Height, c.Round, p.BlockHash, true)}
	}
	return []Output{castVoteOutput(types.VoteTypePrevote, c.Height, c.Round, types.Hash{}, false)}
}

// OnPrevote admits a prevote into the tally. If it arrives while the core is
// in the Precommit step it only updates valid_value/valid_round on a fresh
// polka (Tendermint's "any time" update rule) without otherwise affecting the
// running round; in any other step but Prevote it is only tallied.
func (c *Core) OnPrevote(v types.Vote) []Output {
	if v.Height != c.Height || v.Round != c.Round {
		return nil
	}
	if err := c.prevotes.AddVote(v); err != nil {
		return nil
	}

	if c.Step != StepPrevote {
		if c.Step == StepPrecommit {
			if hash, ok := c.prevotes.QuorumBlock(); ok {
				h := hash
				r := c.Round
				c.ValidValue = &h
				c.ValidRound = &r
			}
		}
		return nil
	}

	if hash, ok := c.prevotes.QuorumBlock(); ok {
		h := hash
		r := c.Round
		c.LockedValue = &h
		c.LockedRound = &r
		c.ValidValue = &h
		c.ValidRound = &r
		c.Step = StepPrecommit
		return []Output{castVoteOutput(types.VoteTypePrecommit, c.Height, c.Round, h, true)}
	}
	if c.prevotes.HasQuorumNil() {
		c.Step = StepPrecommit
		return []Output{castVoteOutput(types.VoteTypePrecommit, c.Height, c.Round, types.Hash{}, false)}
	}
	if c.prevotes.HasQuorumAny() {
		return []Output{scheduleTimeoutOutput(StepPrevote, c.Height, c.Round)}
	}
	return nil
}

// OnPrecommit admits a precommit into the tally. A block quorum commits the
// block (only once — a Core already in StepCommit is a no-op); a quorum of
// any kind while still in Precommit arms the precommit timeout.
func (c *Core) OnPrecommit(v types.Vote) []Output {
	if v.Height != c.Height || v.Round != c.Round {
		return nil
	}
	if err := c.precommits.AddVote(v); err != nil {
		return nil
	}

	if hash, ok := c.precommits.QuorumBlock(); ok && c.Step != StepCommit {
		c.Step = StepCommit
		return []Output{commitBlockOutput(c.Height, hash)}
	}
	if c.Step == StepPrecommit && c.precommits.HasQuorumAny() {
		return []Output{scheduleTimeoutOutput(StepPrecommit, c.Height, c.Round)}
	}
	return nil
}

// OnTimeout delivers a previously scheduled timeout for (step, round). Events
// for a round the core has already moved past are dropped (the stale-event
// rule): a timer armed for round r is meaningless once the core is in r+1.
func (c *Core) OnTimeout(step RoundStep, round types.Round) []Output {
	if round != c.Round {
		return nil
	}
	switch step {
	case StepPropose:
		if c.Step != StepPropose {
			return nil
		}
		c.Step = StepPrevote
		return []Output{
			castVoteOutput(types.VoteTypePrevote, c.Height, c.Round, types.Hash{}, false),
			scheduleTimeoutOutput(StepPrevote, c.Height, c.Round),
		}
	case StepPrevote:
		if c.Step != StepPrevote {
			return nil
		}
		c.Step = StepPrecommit
		return []Output{castVoteOutput(types.VoteTypePrecommit, c.Height, c.Round, types.Hash{}, false)}
	case StepPrecommit:
		if c.Step != StepPrecommit {
			return nil
		}
		return c.StartRound(c.Round + 1)
	default:
		return nil
	}
}

// AdvanceHeight resets the core for a new height once the previous height's
// block has been committed and applied to account state. It clears all
// round-local state (locks, polka tracking, proposed blocks) and immediately
// starts round 0.
func (c *Core) AdvanceHeight(height types.Height, validators []types.PublicKey, selfKey types.PublicKey, hasSelf bool) []Output {
	c.Height = height
	c.Round = 0
	c.Step = StepNewRound
	c.validators = append([]types.PublicKey(nil), validators...)
	c.total = len(validators)
	c.selfKey = selfKey
	c.isSelf = hasSelf
	c.currentProposal = nil
	c.LockedValue = nil
	c.LockedRound = nil
	c.ValidValue = nil
	c.ValidRound = nil
	c.proposedBlocks = make(map[types.Hash]types.Block)
	return c.StartRound(0)
}

// Validators returns the ordered validator set this core was constructed or
// last advanced with.
func (c *Core) Validators() []types.PublicKey {
	return append([]types.PublicKey(nil), c.validators...)
}
