package encoding

import (
	"encoding/binary"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ordinalchain/ordinal/pkg/types"
)

// MarshalUint64 encodes v as a big-endian fixed64, for keys whose
// lexicographic byte order must match numeric order (e.g. chainstore height
// keys iterated in range scans).
func MarshalUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// UnmarshalUint64 is the inverse of MarshalUint64.
func UnmarshalUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("encoding: uint64 key must be 8 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// UnmarshalTransaction decodes a Transaction from its MarshalTransaction wire form.
func UnmarshalTransaction(b []byte) (*types.Transaction, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("encoding: empty transaction")
	}
	var tx types.Transaction
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("encoding: invalid transaction tag")
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("encoding: invalid transaction.from")
			}
			pk, err := types.PublicKeyFromBytes(v)
			if err != nil {
				return nil, err
			}
			tx.From = pk
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("encoding: invalid transaction.to")
			}
			pk, err := types.PublicKeyFromBytes(v)
			if err != nil {
				return nil, err
			}
			tx.To = pk
			b = b[n:]
		case 3:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("encoding: invalid transaction.amount")
			}
			tx.Amount = v
			b = b[n:]
		case 4:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("encoding: invalid transaction.nonce")
			}
			tx.Nonce = v
			b = b[n:]
		case 5:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("encoding: invalid transaction.data")
			}
			tx.Data = append([]byte(nil), v...)
			b = b[n:]
		case 6:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("encoding: invalid transaction.signature")
			}
			sig, err := types.SignatureFromBytes(v)
			if err != nil {
				return nil, err
			}
			tx.Signature = sig
			b = b[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("encoding: invalid transaction field %d", num)
			}
			b = b[n:]
		}
	}
	return &tx, nil
}

// UnmarshalBlockHeader decodes a BlockHeader from its MarshalBlockHeader wire form.
func UnmarshalBlockHeader(b []byte) (*types.BlockHeader, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("encoding: empty block header")
	}
	var h types.BlockHeader
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("encoding: invalid block header tag")
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("encoding: invalid header.height")
			}
			h.Height = types.Height(v)
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("encoding: invalid header.timestamp")
			}
			h.Timestamp = int64(v)
			b = b[n:]
		case 3:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("encoding: invalid header.parent_hash")
			}
			hash, err := types.HashFromBytes(v)
			if err != nil {
				return nil, err
			}
			h.ParentHash = hash
			b = b[n:]
		case 4:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("encoding: invalid header.proposer")
			}
			pk, err := types.PublicKeyFromBytes(v)
			if err != nil {
				return nil, err
			}
			h.Proposer = pk
			b = b[n:]
		case 5:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("encoding: invalid header.state_root")
			}
			hash, err := types.HashFromBytes(v)
			if err != nil {
				return nil, err
			}
			h.StateRoot = hash
			b = b[n:]
		case 6:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("encoding: invalid header.tx_merkle_root")
			}
			hash, err := types.HashFromBytes(v)
			if err != nil {
				return nil, err
			}
			h.TxMerkleRoot = hash
			b = b[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("encoding: invalid block header field %d", num)
			}
			b = b[n:]
		}
	}
	return &h, nil
}

// UnmarshalBlock decodes a Block from its MarshalBlock wire form.
func UnmarshalBlock(b []byte) (*types.Block, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("encoding: empty block")
	}
	var block types.Block
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("encoding: invalid block tag")
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("encoding: invalid block.header")
			}
			h, err := UnmarshalBlockHeader(v)
			if err != nil {
				return nil, err
			}
			block.Header = *h
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("encoding: invalid block.transaction")
			}
			tx, err := UnmarshalTransaction(v)
			if err != nil {
				return nil, err
			}
			block.Transactions = append(block.Transactions, *tx)
			b = b[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("encoding: invalid block field %d", num)
			}
			b = b[n:]
		}
	}
	return &block, nil
}
