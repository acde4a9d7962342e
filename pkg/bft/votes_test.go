package bft

import (
	"crypto/ed25519"
	"testing"

	"github.com/ordinalchain/ordinal/pkg/types"
)

func testValidator(t *testing.T, seed byte) (ed25519.PrivateKey, types.PublicKey) {
	t.Helper()
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed
	priv := ed25519.NewKeyFromSeed(s)
	pub, err := types.PublicKeyFromBytes(priv.Public().(ed25519.PublicKey))
	if err != nil {
		t.Fatalf("pubkey: %v", err)
	}
	return priv, pub
}

func TestVoteSetQuorumArithmetic(t *testing.T) {
	// 4 validators: quorum requires 3 votes (3*3 > 2*4 == 9>8; 2 votes: 6>8 false).
	var privs []ed25519.PrivateKey
	var pubs []types.PublicKey
	for i := 0; i < 4; i++ {
		p, k := testValidator(t, byte(i+1))
		privs = append(privs, p)
		pubs = append(pubs, k)
	}
	hash := types.Hash{0xAA}
	vs := NewVoteSet(10, 0, types.VoteTypePrevote, 4)

	for i := 0; i < 2; i++ {
		v, err := SignVote(privs[i], pubs[i], types.VoteTypePrevote, 10, 0, hash, true)
		if err != nil {
			t.Fatalf("sign vote: %v", err)
		}
		if err := vs.AddVote(v); err != nil {
			t.Fatalf("add vote %d: %v", i, err)
		}
	}
	if vs.HasQuorumFor(hash) {
		t.Fatalf("2 of 4 should not be a quorum")
	}
	v, err := SignVote(privs[2], pubs[2], types.VoteTypePrevote, 10, 0, hash, true)
	if err != nil {
		t.Fatalf("sign vote: %v", err)
	}
	if err := vs.AddVote(v); err != nil {
		t.Fatalf("add vote 2: %v", err)
	}
	if !vs.HasQuorumFor(hash) {
		t.Fatalf("3 of 4 should be a quorum")
	}
	got, ok := vs.QuorumBlock()
	if !ok || got != hash {
		t.Fatalf("QuorumBlock() = %v, %v; want %v, true", got, ok, hash)
	}
}

func TestVoteSetRejectsWrongRound(t *testing.T) {
	priv, pub := testValidator(t, 1)
	vs := NewVoteSet(10, 0, types.VoteTypePrevote, 4)
	v, err := SignVote(priv, pub, types.VoteTypePrevote, 10, 1, types.Hash{}, false)
	if err != nil {
		t.Fatalf("sign vote: %v", err)
	}
	if err := vs.AddVote(v); err == nil {
		t.Fatalf("expected rejection of vote for a different round")
	}
}

func TestVoteSetRejectsBadSignature(t *testing.T) {
	_, pub := testValidator(t, 1)
	otherPriv, _ := testValidator(t, 2)
	vs := NewVoteSet(10, 0, types.VoteTypePrevote, 4)
	v, err := SignVote(otherPriv, pub, types.VoteTypePrevote, 10, 0, types.Hash{}, false)
	if err != nil {
		t.Fatalf("sign vote: %v", err)
	}
	if err := vs.AddVote(v); err == nil {
		t.Fatalf("expected rejection of a vote signed by the wrong key")
	}
}

func TestVoteSetDetectsEquivocation(t *testing.T) {
	priv, pub := testValidator(t, 1)
	vs := NewVoteSet(10, 0, types.VoteTypePrevote, 4)
	hashA := types.Hash{0x01}
	hashB := types.Hash{0x02}
	v1, _ := SignVote(priv, pub, types.VoteTypePrevote, 10, 0, hashA, true)
	if err := vs.AddVote(v1); err != nil {
		t.Fatalf("add vote 1: %v", err)
	}
	v2, _ := SignVote(priv, pub, types.VoteTypePrevote, 10, 0, hashB, true)
	if err := vs.AddVote(v2); err == nil {
		t.Fatalf("expected equivocation to be rejected")
	}
}

func TestVoteSetNilQuorum(t *testing.T) {
	var privs []ed25519.PrivateKey
	var pubs []types.PublicKey
	for i := 0; i < 4; i++ {
		p, k := testValidator(t, byte(i+10))
		privs = append(privs, p)
		pubs = append(pubs, k)
	}
	vs := NewVoteSet(5, 2, types.VoteTypePrecommit, 4)
	for i := 0; i < 3; i++ {
		v, _ := SignVote(privs[i], pubs[i], types.VoteTypePrecommit, 5, 2, types.Hash{}, false)
		if err := vs.AddVote(v); err != nil {
			t.Fatalf("add nil vote %d: %v", i, err)
		}
	}
	if !vs.HasQuorumNil() {
		t.Fatalf("expected nil quorum with 3 of 4 nil votes")
	}
	if !vs.HasQuorumAny() {
		t.Fatalf("expected quorum-any with 3 of 4 votes cast")
	}
}
