package encoding

import (
	"crypto/sha256"

	"github.com/ordinalchain/ordinal/pkg/types"
)

// TxMerkleRoot computes the binary SHA-256 Merkle root over a block's
// transactions, in order. Each leaf is SHA256(canonical transaction encoding);
// an odd-sized level duplicates its last node before hashing the next level up.
// An empty transaction list has the zero Hash as its root.
func TxMerkleRoot(txs []types.Transaction) (types.Hash, error) {
	if len(txs) == 0 {
		return types.Hash{}, nil
	}
	leaves := make([][]byte, 0, len(txs))
	for i := range txs {
		b, err := MarshalTransaction(&txs[i])
		if err != nil {
			return types.Hash{}, err
		}
		sum := sha256.Sum256(b)
		leaves = append(leaves, sum[:])
	}
	root := merkleRoot(leaves)
	var out types.Hash
	copy(out[:], root)
	return out, nil
}

func merkleRoot(nodes [][]byte) []byte {
	for len(nodes) > 1 {
		var next [][]byte
		for i := 0; i < len(nodes); i += 2 {
			left := nodes[i]
			right := left
			if i+1 < len(nodes) {
				right = nodes[i+1]
			}
			h := sha256.New()
			h.Write(left)
			h.Write(right)
			next = append(next, h.Sum(nil))
		}
		nodes = next
	}
	return nodes[0]
}
