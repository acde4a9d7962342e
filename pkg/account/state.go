// Package account implements the account state machine (§4.4): nonce-ordered
// transfers with all-or-nothing per-transaction semantics, applied to a
// StateDB, and a deterministic SHA-256 state root over every account.
package account

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ordinalchain/ordinal/pkg/crypto"
	"github.com/ordinalchain/ordinal/pkg/encoding"
	"github.com/ordinalchain/ordinal/pkg/types"
)

// Sentinel errors for the four validation failure kinds a transfer can hit,
// checked in strict order: AccountNotFound, then InvalidNonce, then
// InsufficientBalance. A transaction whose signature does not verify is
// rejected before any of these are even consulted.
var (
	ErrInvalidSignature    = errors.New("account: invalid transaction signature")
	ErrAccountNotFound     = errors.New("account: sender account not found")
	ErrInvalidNonce        = errors.New("account: invalid nonce")
	ErrInsufficientBalance = errors.New("account: insufficient balance")
	ErrBalanceOverflow     = errors.New("account: balance overflow")
)

// StateDB is the mapping from public key to AccountState. Accounts are
// created lazily on first credit; a debit against an unknown account is
// AccountNotFound, never an implicit zero balance.
type StateDB struct {
	mu       sync.RWMutex
	accounts map[types.PublicKey]types.AccountState
}

// NewStateDB returns an empty ledger.
func NewStateDB() *StateDB {
	return &StateDB{accounts: make(map[types.PublicKey]types.AccountState)}
}

// GetAccount returns a copy of an account's state.
func (s *StateDB) GetAccount(pub types.PublicKey) (types.AccountState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[pub]
	return a, ok
}

// SetAccount overwrites (or creates) an account's state directly, used by
// genesis loading and snapshot restore. It bypasses transfer validation.
func (s *StateDB) SetAccount(pub types.PublicKey, a types.AccountState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[pub] = a
}

// Accounts returns a snapshot copy of every (pubkey, account) pair.
func (s *StateDB) Accounts() map[types.PublicKey]types.AccountState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[types.PublicKey]types.AccountState, len(s.accounts))
	for k, v := range s.accounts {
		out[k] = v
	}
	return out
}

// TxReceipt records the outcome of applying one transaction within a block.
// A failed transaction leaves state completely untouched (including its
// sender's nonce) and does not revert transactions that already succeeded
// earlier in the same block.
type TxReceipt struct {
	TxHash  types.Hash
	Success bool
	Error   error
}

// ApplyTransfer validates and applies a single transaction against s. The
// checks run in this strict order: signature, AccountNotFound, InvalidNonce,
// InsufficientBalance. A no-op transfer (Amount == 0, even to self) that
// passes validation still bumps the sender's nonce — there is no early return
// for zero-value transfers.
func (s *StateDB) ApplyTransfer(tx *types.Transaction) TxReceipt {
	txHash, err := encoding.HashTransaction(tx)
	if err != nil {
		return TxReceipt{Success: false, Error: fmt.Errorf("account: hash transaction: %w", err)}
	}
	receipt := TxReceipt{TxHash: txHash}

	if !crypto.VerifyEd25519(ed25519.PublicKey(tx.From.Bytes()), encoding.TransactionSigningBytes(tx), tx.Signature.Bytes()) {
		receipt.Error = ErrInvalidSignature
		return receipt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sender, ok := s.accounts[tx.From]
	if !ok {
		receipt.Error = ErrAccountNotFound
		return receipt
	}
	if tx.Nonce != sender.Nonce {
		receipt.Error = fmt.Errorf("%w: account nonce %d, tx nonce %d", ErrInvalidNonce, sender.Nonce, tx.Nonce)
		return receipt
	}
	if sender.Balance < tx.Amount {
		receipt.Error = fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, sender.Balance, tx.Amount)
		return receipt
	}

	if tx.From == tx.To {
		// Self-transfer: no balance change, but the nonce still increments —
		// a no-op transaction is a paid way to bump nonce.
		sender.Nonce++
		s.accounts[tx.From] = sender
		receipt.Success = true
		return receipt
	}

	recipient := s.accounts[tx.To] // zero value if absent; created on credit below

	newSenderBalance := sender.Balance - tx.Amount
	newRecipientBalance := recipient.Balance + tx.Amount
	if newRecipientBalance < recipient.Balance {
		receipt.Error = ErrBalanceOverflow
		return receipt
	}

	sender.Balance = newSenderBalance
	sender.Nonce++
	s.accounts[tx.From] = sender
	recipient.Balance = newRecipientBalance
	s.accounts[tx.To] = recipient

	receipt.Success = true
	return receipt
}

// ApplyBlock applies every transaction in block in order, each independently:
// a failure only skips its own transaction, never rolling back transactions
// that already committed earlier in the same block.
func (s *StateDB) ApplyBlock(block *types.Block) []TxReceipt {
	receipts := make([]TxReceipt, len(block.Transactions))
	for i := range block.Transactions {
		receipts[i] = s.ApplyTransfer(&block.Transactions[i])
	}
	return receipts
}

// ComputeStateRoot computes a deterministic SHA-256 digest over every
// account, sorted by public key: it is the hash of the concatenation of
// (pubkey ‖ balance_le64 ‖ nonce_le64) for each account in ascending pubkey
// order. An empty StateDB hashes the empty buffer, i.e. SHA-256(""), not a
// special-cased zero Hash.
func (s *StateDB) ComputeStateRoot() types.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]types.PublicKey, 0, len(s.accounts))
	for k := range s.accounts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i].Bytes(), keys[j].Bytes()) < 0 })

	buf := make([]byte, 0, len(keys)*(types.PublicKeySize+16))
	for _, k := range keys {
		a := s.accounts[k]
		buf = append(buf, k.Bytes()...)
		buf = appendLE64(buf, a.Balance)
		buf = appendLE64(buf, a.Nonce)
	}
	return encoding.HashBytes(buf)
}

func appendLE64(b []byte, v uint64) []byte {
	return append(b,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56),
	)
}
