// Package chainstore is the durable, Pebble-backed record of committed
// chain state: blocks (indexed by both hash and height), the active
// validator-set snapshot taken at the last commit, and consensus metadata
// (height, round, last-finalized hash) needed to resume a node after restart.
package chainstore

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"github.com/ordinalchain/ordinal/pkg/encoding"
	"github.com/ordinalchain/ordinal/pkg/types"
)

const (
	blockPrefix        = "block/"
	blockHeightPrefix  = "block_height/"
	validatorSetKey    = "meta/validator_set"
	metaHeightKey      = "meta/consensus_height"
	metaRoundKey       = "meta/consensus_round"
	metaLastFinalized  = "meta/consensus_last_finalized"
)

// Store is the persistent chain store.
type Store struct {
	db *pebble.DB
}

// Open opens or creates a Pebble store under <dataDir>/chainstore.
func Open(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "chainstore")
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("chainstore: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying Pebble handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewIndexedBatch returns a batch whose writes are visible to reads against
// the batch itself before Commit, for preview-then-apply commit flows.
func (s *Store) NewIndexedBatch() *pebble.Batch {
	return s.db.NewIndexedBatch()
}

// PutBlock persists block, indexed by both its header hash and its height,
// and returns the computed hash.
func (s *Store) PutBlock(block *types.Block) (types.Hash, error) {
	hash, err := encoding.HashBlock(block)
	if err != nil {
		return types.Hash{}, err
	}
	blockBytes, err := encoding.MarshalBlock(block)
	if err != nil {
		return types.Hash{}, err
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(append([]byte(blockPrefix), hash.Bytes()...), blockBytes, nil); err != nil {
		return types.Hash{}, err
	}
	heightKey := append([]byte(blockHeightPrefix), encoding.MarshalUint64(uint64(block.Header.Height))...)
	if err := batch.Set(heightKey, hash.Bytes(), nil); err != nil {
		return types.Hash{}, err
	}
	return hash, batch.Commit(pebble.Sync)
}

// GetBlockByHash returns the block with the given header hash, or nil if absent.
func (s *Store) GetBlockByHash(hash types.Hash) (*types.Block, error) {
	val, closer, err := s.db.Get(append([]byte(blockPrefix), hash.Bytes()...))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("chainstore: get block %s: %w", hash, err)
	}
	defer closer.Close()
	return encoding.UnmarshalBlock(val)
}

// GetBlockByHeight returns the block committed at height, or nil if absent.
func (s *Store) GetBlockByHeight(height types.Height) (*types.Block, error) {
	heightKey := append([]byte(blockHeightPrefix), encoding.MarshalUint64(uint64(height))...)
	val, closer, err := s.db.Get(heightKey)
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("chainstore: get block height %d: %w", height, err)
	}
	hash, err := types.HashFromBytes(val)
	closer.Close()
	if err != nil {
		return nil, err
	}
	return s.GetBlockByHash(hash)
}

// validatorSetEntry is the JSON-on-disk form of one validator record.
type validatorSetEntry struct {
	PubKey            string `json:"pubkey"`
	Stake             uint64 `json:"stake"`
	CommissionRateBps uint32 `json:"commission_rate_bps"`
	Status            int    `json:"status"`
	PerformanceScore  uint32 `json:"performance_score"`
	JoinHeight        uint64 `json:"join_height"`
}

// PutValidatorSetSnapshot persists the given validator records as the
// validator-set snapshot, overwriting any previous snapshot. The runtime
// passes only the Active validators, at epoch-boundary commits.
func (s *Store) PutValidatorSetSnapshot(set []types.ValidatorInfo) error {
	entries := make([]validatorSetEntry, len(set))
	for i, v := range set {
		entries[i] = validatorSetEntry{
			PubKey:            v.PubKey.String(),
			Stake:             v.Stake,
			CommissionRateBps: v.CommissionRateBps,
			Status:            int(v.Status),
			PerformanceScore:  v.PerformanceScore,
			JoinHeight:        uint64(v.JoinHeight),
		}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("chainstore: marshal validator set: %w", err)
	}
	return s.db.Set([]byte(validatorSetKey), raw, pebble.Sync)
}

// GetValidatorSetSnapshot loads the last-persisted validator set, or nil if
// none has ever been written.
func (s *Store) GetValidatorSetSnapshot() ([]types.ValidatorInfo, error) {
	val, closer, err := s.db.Get([]byte(validatorSetKey))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("chainstore: get validator set: %w", err)
	}
	defer closer.Close()
	var entries []validatorSetEntry
	if err := json.Unmarshal(val, &entries); err != nil {
		return nil, fmt.Errorf("chainstore: unmarshal validator set: %w", err)
	}
	out := make([]types.ValidatorInfo, len(entries))
	for i, e := range entries {
		pub, err := hexPublicKey(e.PubKey)
		if err != nil {
			return nil, err
		}
		out[i] = types.ValidatorInfo{
			PubKey:            pub,
			Stake:             e.Stake,
			CommissionRateBps: e.CommissionRateBps,
			Status:            types.ValidatorStatus(e.Status),
			PerformanceScore:  e.PerformanceScore,
			JoinHeight:        types.Height(e.JoinHeight),
		}
	}
	return out, nil
}

// ConsensusState captures the durable consensus-resume metadata.
type ConsensusState struct {
	Height        types.Height
	Round         types.Round
	LastFinalized types.Hash
}

// PutConsensusState persists the node's consensus position, overwriting any
// previous value, so a restart can resume at the right height/round.
func (s *Store) PutConsensusState(state ConsensusState) error {
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set([]byte(metaHeightKey), encoding.MarshalUint64(uint64(state.Height)), nil); err != nil {
		return err
	}
	if err := batch.Set([]byte(metaRoundKey), encoding.MarshalUint64(uint64(state.Round)), nil); err != nil {
		return err
	}
	if err := batch.Set([]byte(metaLastFinalized), state.LastFinalized.Bytes(), nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// GetConsensusState loads the durable consensus position, returning the zero
// value if nothing has ever been persisted.
func (s *Store) GetConsensusState() (ConsensusState, error) {
	var out ConsensusState
	if val, closer, err := s.db.Get([]byte(metaHeightKey)); err == nil {
		v, uerr := encoding.UnmarshalUint64(val)
		closer.Close()
		if uerr != nil {
			return out, uerr
		}
		out.Height = types.Height(v)
	} else if err != pebble.ErrNotFound {
		return out, fmt.Errorf("chainstore: get consensus height: %w", err)
	}
	if val, closer, err := s.db.Get([]byte(metaRoundKey)); err == nil {
		v, uerr := encoding.UnmarshalUint64(val)
		closer.Close()
		if uerr != nil {
			return out, uerr
		}
		out.Round = types.Round(v)
	} else if err != pebble.ErrNotFound {
		return out, fmt.Errorf("chainstore: get consensus round: %w", err)
	}
	if val, closer, err := s.db.Get([]byte(metaLastFinalized)); err == nil {
		h, herr := types.HashFromBytes(val)
		closer.Close()
		if herr != nil {
			return out, herr
		}
		out.LastFinalized = h
	} else if err != pebble.ErrNotFound {
		return out, fmt.Errorf("chainstore: get consensus last finalized: %w", err)
	}
	return out, nil
}

func hexPublicKey(s string) (types.PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return types.PublicKey{}, err
	}
	return types.PublicKeyFromBytes(b)
}
