package bft

import (
	"crypto/ed25519"

	"github.com/ordinalchain/ordinal/pkg/encoding"
	"github.com/ordinalchain/ordinal/pkg/types"
)

// SignVote builds and signs a Vote as validator priv/pub. The runtime calls
// this in response to an OutputCastVote before broadcasting and feeding the
// vote back into OnPrevote/OnPrecommit.
func SignVote(priv ed25519.PrivateKey, pub types.PublicKey, voteType types.VoteType, height types.Height, round types.Round, hash types.Hash, hasBlock bool) (types.Vote, error) {
	v := types.Vote{
		Type:      voteType,
		Height:    height,
		Round:     round,
		HasBlock:  hasBlock,
		BlockHash: hash,
		Validator: pub,
	}
	sig := ed25519.Sign(priv, encoding.VoteSigningBytes(&v))
	signature, err := types.SignatureFromBytes(sig)
	if err != nil {
		return types.Vote{}, err
	}
	v.Signature = signature
	return v, nil
}

// SignProposal builds and signs a Proposal as the round's proposer.
func SignProposal(priv ed25519.PrivateKey, pub types.PublicKey, height types.Height, round types.Round, block *types.Block, blockHash types.Hash, validRound types.Round, hasValidRound bool) (types.Proposal, error) {
	p := types.Proposal{
		Height:        height,
		Round:         round,
		BlockHash:     blockHash,
		Block:         block,
		Proposer:      pub,
		HasValidRound: hasValidRound,
		ValidRound:    validRound,
	}
	signBytes, err := encoding.ProposalSigningBytes(&p)
	if err != nil {
		return types.Proposal{}, err
	}
	sig := ed25519.Sign(priv, signBytes)
	signature, err := types.SignatureFromBytes(sig)
	if err != nil {
		return types.Proposal{}, err
	}
	p.Signature = signature
	return p, nil
}
