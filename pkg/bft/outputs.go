package bft

import "github.com/ordinalchain/ordinal/pkg/types"

// OutputKind tags the variant of an Output the state machine has emitted.
type OutputKind int

const (
	// OutputCastVote asks the caller to sign and broadcast a vote for
	// (Height, Round, VoteType, BlockHash/HasBlock) as this validator.
	OutputCastVote OutputKind = iota
	// OutputScheduleTimeout asks the caller to arm a timer for Step at Round,
	// to fire OnTimeout after the duration TimeoutConfig.For(Step, Round)
	// computes. The state machine never reads a clock itself.
	OutputScheduleTimeout
	// OutputCommitBlock reports that Hash at Height has been finalized.
	OutputCommitBlock
	// OutputProposeBlock asks the caller (when it is the proposer for this
	// round) to build and sign a Proposal; the state machine does not build
	// blocks itself.
	OutputProposeBlock
)

func (k OutputKind) String() string {
	switch k {
	case OutputCastVote:
		return "cast_vote"
	case OutputScheduleTimeout:
		return "schedule_timeout"
	case OutputCommitBlock:
		return "commit_block"
	case OutputProposeBlock:
		return "propose_block"
	default:
		return "unknown"
	}
}

// Output is a single effect the state machine wants carried out. Only the
// fields relevant to Kind are populated.
type Output struct {
	Kind OutputKind

	// OutputCastVote
	VoteType  types.VoteType
	Height    types.Height
	Round     types.Round
	HasBlock  bool
	BlockHash types.Hash

	// OutputScheduleTimeout
	TimeoutStep RoundStep

	// OutputCommitBlock also uses Height/BlockHash above.

	// OutputProposeBlock also uses Height/Round above.
}

func castVoteOutput(voteType types.VoteType, height types.Height, round types.Round, hash types.Hash, hasBlock bool) Output {
	return Output{
		Kind:      OutputCastVote,
		VoteType:  voteType,
		Height:    height,
		Round:     round,
		HasBlock:  hasBlock,
		BlockHash: hash,
	}
}

func scheduleTimeoutOutput(step RoundStep, height types.Height, round types.Round) Output {
	return Output{Kind: OutputScheduleTimeout, TimeoutStep: step, Height: height, Round: round}
}

func commitBlockOutput(height types.Height, hash types.Hash) Output {
	return Output{Kind: OutputCommitBlock, Height: height, BlockHash: hash}
}

func proposeBlockOutput(height types.Height, round types.Round) Output {
	return Output{Kind: OutputProposeBlock, Height: height, Round: round}
}
