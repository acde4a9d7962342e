// Package encoding provides the deterministic, canonical byte encodings that
// every hash and signature in the node is computed over. Fields are written in
// a fixed tag order using the protobuf wire format (via protowire), mirroring
// the reference node's encoding package; nothing here is actually decoded as a
// protobuf message, the wire format is used purely as a stable, self-describing
// byte layout.
package encoding

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ordinalchain/ordinal/pkg/types"
)

// MarshalTransaction deterministically encodes a Transaction, including its
// signature, so that re-signing a transaction changes its hash.
func MarshalTransaction(tx *types.Transaction) ([]byte, error) {
	if tx == nil {
		return nil, fmt.Errorf("encoding: transaction is nil")
	}
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, tx.From.Bytes())
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, tx.To.Bytes())
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, tx.Amount)
	b = protowire.AppendTag(b, 4, protowire.VarintType)
	b = protowire.AppendVarint(b, tx.Nonce)
	b = protowire.AppendTag(b, 5, protowire.BytesType)
	b = protowire.AppendBytes(b, tx.Data)
	b = protowire.AppendTag(b, 6, protowire.BytesType)
	b = protowire.AppendBytes(b, tx.Signature.Bytes())
	return b, nil
}

// TransactionSigningBytes computes the message a Transaction's signature is
// taken over: SHA256(from ‖ to ‖ amount_le64 ‖ nonce_le64 ‖ data). This is
// intentionally distinct from (and much narrower than) MarshalTransaction,
// which covers the signature itself and is used only for hashing/storage.
func TransactionSigningBytes(tx *types.Transaction) []byte {
	b := make([]byte, 0, types.PublicKeySize*2+8+8+len(tx.Data))
	b = append(b, tx.From.Bytes()...)
	b = append(b, tx.To.Bytes()...)
	b = appendLE64(b, tx.Amount)
	b = appendLE64(b, tx.Nonce)
	b = append(b, tx.Data...)
	h := HashBytes(b)
	return h[:]
}

func appendLE64(b []byte, v uint64) []byte {
	return append(b,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56),
	)
}

func appendLE32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// MarshalBlockHeader deterministically encodes a BlockHeader. The block hash
// is computed over this encoding alone — transaction bodies are covered only
// indirectly, through TxMerkleRoot.
func MarshalBlockHeader(h *types.BlockHeader) ([]byte, error) {
	if h == nil {
		return nil, fmt.Errorf("encoding: block header is nil")
	}
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.Height))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.Timestamp))
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, h.ParentHash.Bytes())
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, h.Proposer.Bytes())
	b = protowire.AppendTag(b, 5, protowire.BytesType)
	b = protowire.AppendBytes(b, h.StateRoot.Bytes())
	b = protowire.AppendTag(b, 6, protowire.BytesType)
	b = protowire.AppendBytes(b, h.TxMerkleRoot.Bytes())
	return b, nil
}

// MarshalBlock deterministically encodes a full Block (header + transactions).
// Only MarshalBlockHeader feeds the block hash; this form is used to persist
// and gossip whole blocks.
func MarshalBlock(block *types.Block) ([]byte, error) {
	if block == nil {
		return nil, fmt.Errorf("encoding: block is nil")
	}
	headerBytes, err := MarshalBlockHeader(&block.Header)
	if err != nil {
		return nil, err
	}
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, headerBytes)
	for i := range block.Transactions {
		txBytes, err := MarshalTransaction(&block.Transactions[i])
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, txBytes)
	}
	return b, nil
}

// VoteSigningBytes computes a Vote's canonical signing message:
// type_tag(1) ‖ height_le64 ‖ round_le32 ‖ (1 ‖ hash | 0).
func VoteSigningBytes(v *types.Vote) []byte {
	b := make([]byte, 0, 1+8+4+1+types.HashSize)
	b = append(b, byte(v.Type))
	b = appendLE64(b, uint64(v.Height))
	b = appendLE32(b, uint32(v.Round))
	if v.HasBlock {
		b = append(b, 1)
		b = append(b, v.BlockHash.Bytes()...)
	} else {
		b = append(b, 0)
	}
	return b
}

// MarshalVote deterministically encodes a Vote including its signature, used
// for wire transport and storage (not for the signature itself — see
// VoteSigningBytes).
func MarshalVote(v *types.Vote) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("encoding: vote is nil")
	}
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v.Type))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v.Height))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v.Round))
	if v.HasBlock {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, v.BlockHash.Bytes())
	}
	b = protowire.AppendTag(b, 5, protowire.BytesType)
	b = protowire.AppendBytes(b, v.Validator.Bytes())
	b = protowire.AppendTag(b, 6, protowire.BytesType)
	b = protowire.AppendBytes(b, v.Signature.Bytes())
	return b, nil
}

// ProposalSigningBytes computes a Proposal's canonical signing message over
// height, round, block hash, proposer and (if present) valid round. The
// signature and the attached block body are not encoded.
func ProposalSigningBytes(p *types.Proposal) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("encoding: proposal is nil")
	}
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.Height))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.Round))
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, p.BlockHash.Bytes())
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, p.Proposer.Bytes())
	if p.HasValidRound {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p.ValidRound))
	}
	return b, nil
}

// MarshalProposal deterministically encodes a Proposal including its block
// payload and signature, used for wire transport.
func MarshalProposal(p *types.Proposal) ([]byte, error) {
	signBytes, err := ProposalSigningBytes(p)
	if err != nil {
		return nil, err
	}
	var blockBytes []byte
	if p.Block != nil {
		blockBytes, err = MarshalBlock(p.Block)
		if err != nil {
			return nil, err
		}
	}
	b := append([]byte(nil), signBytes...)
	b = protowire.AppendTag(b, 6, protowire.BytesType)
	b = protowire.AppendBytes(b, p.Signature.Bytes())
	if len(blockBytes) > 0 {
		b = protowire.AppendTag(b, 7, protowire.BytesType)
		b = protowire.AppendBytes(b, blockBytes)
	}
	return b, nil
}
