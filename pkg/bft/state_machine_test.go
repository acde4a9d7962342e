package bft

import (
	"crypto/ed25519"
	"testing"

	"github.com/ordinalchain/ordinal/pkg/encoding"
	"github.com/ordinalchain/ordinal/pkg/types"
)

type testNode struct {
	priv ed25519.PrivateKey
	pub  types.PublicKey
}

func makeTestNodes(t *testing.T, n int) []testNode {
	t.Helper()
	nodes := make([]testNode, n)
	for i := 0; i < n; i++ {
		seed := make([]byte, ed25519.SeedSize)
		seed[0] = byte(i + 1)
		priv := ed25519.NewKeyFromSeed(seed)
		pub, err := types.PublicKeyFromBytes(priv.Public().(ed25519.PublicKey))
		if err != nil {
			t.Fatalf("pubkey: %v", err)
		}
		nodes[i] = testNode{priv: priv, pub: pub}
	}
	return nodes
}

func pubKeys(nodes []testNode) []types.PublicKey {
	out := make([]types.PublicKey, len(nodes))
	for i, n := range nodes {
		out[i] = n.pub
	}
	return out
}

func TestProposerRotation(t *testing.T) {
	nodes := makeTestNodes(t, 4)
	core := NewCore(0, pubKeys(nodes), nodes[0].pub, true, DefaultTimeoutConfig())
	for h := types.Height(0); h < 8; h++ {
		core.Height = h
		got, ok := core.proposerForRound(0)
		if !ok {
			t.Fatalf("expected a proposer at height %d", h)
		}
		want := nodes[uint64(h)%4].pub
		if got != want {
			t.Fatalf("height %d: got proposer %s, want %s", h, got, want)
		}
	}
}

// TestProposerRotationScenario mirrors the reference chain's worked example:
// with 4 validators, proposer_index(0,0)=0, (0,1)=1, (1,0)=1, (3,3)=2.
func TestProposerRotationScenario(t *testing.T) {
	nodes := makeTestNodes(t, 4)
	core := NewCore(0, pubKeys(nodes), nodes[0].pub, true, DefaultTimeoutConfig())

	cases := []struct {
		height types.Height
		round  types.Round
		want   int
	}{
		{0, 0, 0},
		{0, 1, 1},
		{1, 0, 1},
		{3, 3, 2},
	}
	for _, c := range cases {
		core.Height = c.height
		got, ok := core.proposerForRound(c.round)
		if !ok {
			t.Fatalf("height %d round %d: expected a proposer", c.height, c.round)
		}
		if got != nodes[c.want].pub {
			t.Fatalf("height %d round %d: got proposer %s, want nodes[%d]", c.height, c.round, got, c.want)
		}
	}
}

func TestStartRoundSchedulesTimeoutForNonProposer(t *testing.T) {
	nodes := makeTestNodes(t, 4)
	// height 0, round 0 -> proposer is nodes[0]; run the core as nodes[1].
	core := NewCore(0, pubKeys(nodes), nodes[1].pub, true, DefaultTimeoutConfig())
	outs := core.StartRound(0)
	if len(outs) != 1 || outs[0].Kind != OutputScheduleTimeout {
		t.Fatalf("expected a single ScheduleTimeout output, got %+v", outs)
	}
	if outs[0].TimeoutStep != StepPropose {
		t.Fatalf("expected propose timeout, got %v", outs[0].TimeoutStep)
	}
}

func TestStartRoundProposesForProposer(t *testing.T) {
	nodes := makeTestNodes(t, 4)
	core := NewCore(0, pubKeys(nodes), nodes[0].pub, true, DefaultTimeoutConfig())
	outs := core.StartRound(0)
	if len(outs) != 1 || outs[0].Kind != OutputProposeBlock {
		t.Fatalf("expected a single ProposeBlock output, got %+v", outs)
	}
}

func TestTimeoutConfigLinearGrowth(t *testing.T) {
	tc := DefaultTimeoutConfig()
	if got := tc.For(StepPropose, 0); got != 3000 {
		t.Fatalf("round 0 propose timeout = %d, want 3000", got)
	}
	if got := tc.For(StepPropose, 2); got != 4000 {
		t.Fatalf("round 2 propose timeout = %d, want 4000", got)
	}
	if got := tc.For(StepPrevote, 2); got != 2000 {
		t.Fatalf("round 2 prevote timeout = %d, want 2000", got)
	}
}

// driveToCommit runs the full happy path (propose -> 4 prevotes -> 4
// precommits -> commit) for a single round, feeding every node's own votes
// back into the core the way the runtime would after broadcasting them.
func driveToCommit(t *testing.T, core *Core, nodes []testNode, block types.Block, blockHash types.Hash) {
	t.Helper()
	proposer := nodes[0]
	proposal, err := SignProposal(proposer.priv, proposer.pub, 0, 0, &block, blockHash, 0, false)
	if err != nil {
		t.Fatalf("sign proposal: %v", err)
	}
	outs := core.OnProposal(proposal)
	if len(outs) != 1 || outs[0].Kind != OutputCastVote || !outs[0].HasBlock {
		t.Fatalf("expected a prevote-for-block output, got %+v", outs)
	}

	for _, n := range nodes {
		v, err := SignVote(n.priv, n.pub, types.VoteTypePrevote, 0, 0, blockHash, true)
		if err != nil {
			t.Fatalf("sign prevote: %v", err)
		}
		core.OnPrevote(v)
	}
	if core.Step != StepPrecommit {
		t.Fatalf("expected Precommit step after prevote quorum, got %v", core.Step)
	}

	var committed bool
	for _, n := range nodes {
		v, err := SignVote(n.priv, n.pub, types.VoteTypePrecommit, 0, 0, blockHash, true)
		if err != nil {
			t.Fatalf("sign precommit: %v", err)
		}
		outs := core.OnPrecommit(v)
		for _, o := range outs {
			if o.Kind == OutputCommitBlock {
				committed = true
				if o.BlockHash != blockHash {
					t.Fatalf("committed hash = %v, want %v", o.BlockHash, blockHash)
				}
			}
		}
	}
	if !committed {
		t.Fatalf("expected a commit after precommit quorum")
	}
	if core.Step != StepCommit {
		t.Fatalf("expected Commit step, got %v", core.Step)
	}
}

func TestHappyPathCommits(t *testing.T) {
	nodes := makeTestNodes(t, 4)
	core := NewCore(0, pubKeys(nodes), nodes[1].pub, true, DefaultTimeoutConfig())
	core.StartRound(0)

	block := types.Block{Header: types.BlockHeader{Height: 0, Proposer: nodes[0].pub}}
	blockHash, err := encoding.HashBlock(&block)
	if err != nil {
		t.Fatalf("hash block: %v", err)
	}
	driveToCommit(t, core, nodes, block, blockHash)

	got, ok := core.ProposedBlock(blockHash)
	if !ok {
		t.Fatalf("expected proposed block to be retrievable by hash")
	}
	if got.Header.Proposer != nodes[0].pub {
		t.Fatalf("retrieved block has wrong proposer")
	}
}

func TestOnProposalRejectsBlockNotMatchingBlockHash(t *testing.T) {
	nodes := makeTestNodes(t, 4)
	core := NewCore(0, pubKeys(nodes), nodes[1].pub, true, DefaultTimeoutConfig())
	core.StartRound(0)

	block := types.Block{Header: types.BlockHeader{Height: 0, Proposer: nodes[0].pub}}
	wrongHash := types.Hash{0xff}
	proposal, err := SignProposal(nodes[0].priv, nodes[0].pub, 0, 0, &block, wrongHash, 0, false)
	if err != nil {
		t.Fatalf("sign proposal: %v", err)
	}

	outs := core.OnProposal(proposal)
	if outs != nil {
		t.Fatalf("expected a block/block_hash mismatch to be rejected, got %+v", outs)
	}
	if _, ok := core.ProposedBlock(wrongHash); ok {
		t.Fatalf("mismatched block must not be cached under the claimed hash")
	}
	if core.Step != StepPropose {
		t.Fatalf("rejected proposal must not advance the step, got %v", core.Step)
	}
}

func TestLockedValueSurvivesRoundChange(t *testing.T) {
	nodes := makeTestNodes(t, 4)
	core := NewCore(0, pubKeys(nodes), nodes[1].pub, true, DefaultTimeoutConfig())
	core.StartRound(0)

	blockHash := types.Hash{0x07}
	proposal, _ := SignProposal(nodes[0].priv, nodes[0].pub, 0, 0, nil, blockHash, 0, false)
	core.OnProposal(proposal)
	for _, n := range nodes {
		v, _ := SignVote(n.priv, n.pub, types.VoteTypePrevote, 0, 0, blockHash, true)
		core.OnPrevote(v)
	}
	if core.LockedValue == nil || *core.LockedValue != blockHash {
		t.Fatalf("expected locked value %v after polka", blockHash)
	}
	if core.LockedRound == nil || *core.LockedRound != 0 {
		t.Fatalf("expected locked round 0")
	}

	core.OnTimeout(StepPrecommit, 0)
	if core.Round != 1 {
		t.Fatalf("expected round to advance to 1, got %d", core.Round)
	}
	if core.LockedValue == nil || *core.LockedValue != blockHash {
		t.Fatalf("expected locked value %v to survive the move to round 1", blockHash)
	}
}

func TestStaleVoteForPastRoundIsDropped(t *testing.T) {
	nodes := makeTestNodes(t, 4)
	core := NewCore(0, pubKeys(nodes), nodes[1].pub, true, DefaultTimeoutConfig())
	core.StartRound(1) // jump straight to round 1

	v, _ := SignVote(nodes[0].priv, nodes[0].pub, types.VoteTypePrevote, 0, 0, types.Hash{0x9}, true)
	outs := core.OnPrevote(v)
	if outs != nil {
		t.Fatalf("expected stale-round vote to be dropped, got %+v", outs)
	}
}

func TestOnTimeoutPrecommitStartsNextRound(t *testing.T) {
	nodes := makeTestNodes(t, 4)
	core := NewCore(0, pubKeys(nodes), nodes[1].pub, true, DefaultTimeoutConfig())
	core.StartRound(0)
	core.Step = StepPrecommit

	outs := core.OnTimeout(StepPrecommit, 0)
	if core.Round != 1 {
		t.Fatalf("expected round to advance to 1, got %d", core.Round)
	}
	if len(outs) == 0 {
		t.Fatalf("expected StartRound's outputs to be returned")
	}
}
