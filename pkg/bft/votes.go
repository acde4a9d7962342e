// Package bft implements the pure Tendermint-style BFT core: vote tallying and
// the propose/prevote/precommit/commit state machine. Nothing in this package
// performs I/O, blocks, or reads a clock — every external effect (broadcasting
// a vote, scheduling a timeout, finalizing a block) is returned as an Output
// for the caller to carry out.
package bft

import (
	"fmt"

	"github.com/ordinalchain/ordinal/pkg/crypto"
	"github.com/ordinalchain/ordinal/pkg/encoding"
	"github.com/ordinalchain/ordinal/pkg/types"
)

// VoteSet tallies signed votes for a single (height, round, type). A quorum is
// reached at strictly more than two-thirds of the validator count: 3*c > 2*N.
type VoteSet struct {
	height    types.Height
	round     types.Round
	voteType  types.VoteType
	total     int
	votesByID map[types.PublicKey]types.Vote
	byHash    map[types.Hash]int
	nilCount  int
}

// NewVoteSet creates an empty tally for the given height/round/type over a
// validator set of size total.
func NewVoteSet(height types.Height, round types.Round, voteType types.VoteType, total int) *VoteSet {
	return &VoteSet{
		height:    height,
		round:     round,
		voteType:  voteType,
		total:     total,
		votesByID: make(map[types.PublicKey]types.Vote),
		byHash:    make(map[types.Hash]int),
	}
}

// AddVote verifies and records a vote. It rejects votes for a different
// (height, round, type), votes with an invalid signature, and a conflicting
// second vote from a validator that has already voted (equivocation is
// detected, not silently replaced). An identical resend of an accepted vote
// returns nil and is not counted twice.
func (vs *VoteSet) AddVote(v types.Vote) error {
	if v.Height != vs.height || v.Round != vs.round || v.Type != vs.voteType {
		return fmt.Errorf("bft: vote (h=%d,r=%d,t=%s) does not match set (h=%d,r=%d,t=%s)",
			v.Height, v.Round, v.Type, vs.height, vs.round, vs.voteType)
	}
	if !crypto.VerifyEd25519(v.Validator.Bytes(), encoding.VoteSigningBytes(&v), v.Signature.Bytes()) {
		return fmt.Errorf("bft: invalid vote signature from %s", v.Validator)
	}
	if existing, ok := vs.votesByID[v.Validator]; ok {
		if existing.HasBlock == v.HasBlock && existing.BlockHash == v.BlockHash {
			return nil // duplicate of an already-accepted vote, not an error
		}
		return fmt.Errorf("bft: equivocation detected from validator %s at height %d round %d", v.Validator, v.Height, v.Round)
	}
	vs.votesByID[v.Validator] = v
	if v.HasBlock {
		vs.byHash[v.BlockHash]++
	} else {
		vs.nilCount++
	}
	return nil
}

// Count returns the total number of distinct validators who have voted.
func (vs *VoteSet) Count() int { return len(vs.votesByID) }

func isQuorum(count, total int) bool {
	return total > 0 && 3*count > 2*total
}

// HasQuorumFor reports whether hash has a quorum of votes.
func (vs *VoteSet) HasQuorumFor(hash types.Hash) bool {
	return isQuorum(vs.byHash[hash], vs.total)
}

// HasQuorumNil reports whether nil has a quorum of votes.
func (vs *VoteSet) HasQuorumNil() bool {
	return isQuorum(vs.nilCount, vs.total)
}

// QuorumBlock returns the block hash with a quorum, if any. Under the
// Byzantine assumption (< 1/3 faulty) at most one non-nil hash can reach
// quorum in a given (height, round, type); ties are not possible unless that
// assumption is violated, in which case the first one found by map iteration
// is returned — callers should treat that as a safety-breaking condition, not
// normal operation.
func (vs *VoteSet) QuorumBlock() (types.Hash, bool) {
	for h, c := range vs.byHash {
		if isQuorum(c, vs.total) {
			return h, true
		}
	}
	return types.Hash{}, false
}

// HasQuorumAny reports whether a quorum of validators have voted at all,
// regardless of whether they agree on a value — Tendermint's "two-thirds any"
// predicate, used to schedule a prevote/precommit timeout even without a polka.
func (vs *VoteSet) HasQuorumAny() bool {
	return isQuorum(vs.Count(), vs.total)
}
