package encoding

import (
	"crypto/sha256"

	"github.com/ordinalchain/ordinal/pkg/types"
)

// HashBytes computes SHA-256 over input data.
func HashBytes(data []byte) types.Hash {
	sum := sha256.Sum256(data)
	return types.Hash(sum)
}

// HashTransaction computes a transaction's canonical hash, covering every
// field including the signature.
func HashTransaction(tx *types.Transaction) (types.Hash, error) {
	b, err := MarshalTransaction(tx)
	if err != nil {
		return types.Hash{}, err
	}
	return HashBytes(b), nil
}

// HashBlockHeader computes the block hash: SHA256 of the canonical header
// encoding only. Transaction bodies are bound in through TxMerkleRoot.
func HashBlockHeader(h *types.BlockHeader) (types.Hash, error) {
	b, err := MarshalBlockHeader(h)
	if err != nil {
		return types.Hash{}, err
	}
	return HashBytes(b), nil
}

// HashBlock is a convenience wrapper for hashing a full Block's header.
func HashBlock(block *types.Block) (types.Hash, error) {
	if block == nil {
		return types.Hash{}, nil
	}
	return HashBlockHeader(&block.Header)
}
