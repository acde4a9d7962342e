// Package types defines the wire-level data model shared by every subsystem:
// keys, hashes, transactions, blocks, votes, proposals, validator records, and
// account state. Nothing in this package performs I/O or holds a mutex — it is
// pure data plus the small amount of arithmetic (equality, ordering, nil checks)
// that every consumer needs.
package types

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// PublicKeySize and SignatureSize pin the Ed25519 key/signature contract every
// wire format and canonical encoding in this repository assumes.
const (
	PublicKeySize = ed25519.PublicKeySize // 32
	SignatureSize = ed25519.SignatureSize // 64
	HashSize      = 32
)

// PublicKey is a 32-byte Ed25519 verifying key.
type PublicKey [PublicKeySize]byte

func (p PublicKey) Bytes() []byte          { return p[:] }
func (p PublicKey) String() string         { return hex.EncodeToString(p[:]) }
func (p PublicKey) IsZero() bool           { return p == PublicKey{} }
func (p PublicKey) Equal(o PublicKey) bool { return p == o }

// Less gives PublicKey a total order, used to sort validator and account
// collections deterministically.
func (p PublicKey) Less(o PublicKey) bool { return bytes.Compare(p[:], o[:]) < 0 }

// PublicKeyFromBytes copies b into a PublicKey, erroring if the length is wrong.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("types: public key must be %d bytes, got %d", PublicKeySize, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// Signature is a 64-byte Ed25519 signature.
type Signature [SignatureSize]byte

func (s Signature) Bytes() []byte  { return s[:] }
func (s Signature) String() string { return hex.EncodeToString(s[:]) }
func (s Signature) IsZero() bool   { return s == Signature{} }

// SignatureFromBytes copies b into a Signature, erroring if the length is wrong.
func SignatureFromBytes(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != SignatureSize {
		return sig, fmt.Errorf("types: signature must be %d bytes, got %d", SignatureSize, len(b))
	}
	copy(sig[:], b)
	return sig, nil
}

// Hash is a 32-byte SHA-256 digest.
type Hash [HashSize]byte

func (h Hash) Bytes() []byte     { return h[:] }
func (h Hash) String() string    { return hex.EncodeToString(h[:]) }
func (h Hash) IsZero() bool      { return h == Hash{} }
func (h Hash) Equal(o Hash) bool { return h == o }

// Less gives Hash a total order, used to sort tie-broken collections deterministically.
func (h Hash) Less(o Hash) bool { return bytes.Compare(h[:], o[:]) < 0 }

func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("types: hash must be %d bytes, got %d", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Height is a monotone block counter starting at 0 (the genesis block).
type Height uint64

// Round resets to 0 at the start of every height.
type Round uint32

// ValidatorId identifies a validator by its consensus public key. Equality and
// map-keying use the raw 32 bytes directly, since PublicKey is a comparable array.
type ValidatorId = PublicKey

// ValidatorStatus is the lifecycle state of a validator within the active set manager.
type ValidatorStatus int

const (
	StatusActive ValidatorStatus = iota
	StatusStandby
	StatusJailed
)

func (s ValidatorStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusStandby:
		return "standby"
	case StatusJailed:
		return "jailed"
	default:
		return "unknown"
	}
}

// Transaction moves `Amount` from `From` to `To`, guarded by a strictly
// increasing per-sender `Nonce`. `Data` is an opaque memo field; it has no
// consensus meaning beyond being covered by the signature and the tx hash.
type Transaction struct {
	From      PublicKey
	To        PublicKey
	Amount    uint64
	Nonce     uint64
	Data      []byte
	Signature Signature
}

// BlockHeader carries everything about a block except the transaction bodies.
type BlockHeader struct {
	Height       Height
	Timestamp    int64 // unix seconds, proposer wall clock at proposal time
	ParentHash   Hash
	Proposer     PublicKey
	StateRoot    Hash
	TxMerkleRoot Hash
}

// Block is a header plus its ordered transaction list.
type Block struct {
	Header       BlockHeader
	Transactions []Transaction
}

// VoteType distinguishes the two BFT voting rounds.
type VoteType int

const (
	VoteTypePrevote VoteType = iota + 1
	VoteTypePrecommit
)

func (t VoteType) String() string {
	switch t {
	case VoteTypePrevote:
		return "prevote"
	case VoteTypePrecommit:
		return "precommit"
	default:
		return "unknown"
	}
}

// Vote is a validator's signed prevote or precommit for (Height, Round). A nil
// vote (BlockHash absent) is represented by HasBlock == false; BlockHash is the
// zero Hash in that case and must be ignored.
type Vote struct {
	Type      VoteType
	Height    Height
	Round     Round
	HasBlock  bool
	BlockHash Hash
	Validator PublicKey
	Signature Signature
}

// NilVote reports whether this is a vote for nil (no block).
func (v Vote) NilVote() bool { return !v.HasBlock }

// Proposal nominates a block for (Height, Round). ValidRound is present when
// the proposer is re-proposing a value that already has a polka from an
// earlier round; HasValidRound == false means "no valid round" (a fresh value).
type Proposal struct {
	Height        Height
	Round         Round
	BlockHash     Hash
	Block         *Block
	Proposer      PublicKey
	Signature     Signature
	HasValidRound bool
	ValidRound    Round
}

// ValidatorInfo is one entry in the validator set: identity, stake, commission,
// lifecycle status, and a bounded performance score adjusted by
// validator.Manager.RecordSigned/RecordMiss. Ranking, tie-breaking and
// proposer selection do not read the score, and nothing suspends a validator
// on it.
type ValidatorInfo struct {
	PubKey            PublicKey
	Stake             uint64
	CommissionRateBps uint32
	Status            ValidatorStatus
	PerformanceScore  uint32 // 0..=10000
	JoinHeight        Height
}

// AccountState is the ledger entry for one public key.
type AccountState struct {
	Balance uint64
	Nonce   uint64
}
