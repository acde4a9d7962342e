// Package mempool is the minimal nonce-ordered pending-transaction queue
// that sits between the p2p transaction topic and block proposal — a
// prioritized queue external to consensus (§1), not part of the BFT core.
package mempool

import (
	"container/heap"
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/ordinalchain/ordinal/pkg/crypto"
	"github.com/ordinalchain/ordinal/pkg/encoding"
	"github.com/ordinalchain/ordinal/pkg/types"
)

// StateView is the account-state lookup the mempool needs to validate a
// transaction's nonce without taking on a dependency on pkg/account's full
// write surface.
type StateView interface {
	GetAccount(pub types.PublicKey) (types.AccountState, bool)
}

// Mempool holds pending transactions per sender, ordered by nonce. A
// zero-amount transfer is rejected here even though the account state
// machine itself would accept it (the state machine's no-op-still-bumps-
// nonce rule exists for transactions that already made it into a block, not
// for what should be admitted to the pool).
type Mempool struct {
	mu    sync.RWMutex
	state StateView
	pool  map[types.PublicKey][]*types.Transaction
}

// New constructs an empty mempool backed by state for nonce lookups.
func New(state StateView) *Mempool {
	return &Mempool{state: state, pool: make(map[types.PublicKey][]*types.Transaction)}
}

// AddTx validates and admits a transaction: it must carry a valid signature,
// a positive amount, and a nonce not already below the sender's current
// on-chain nonce, and must not duplicate a nonce already queued for that
// sender.
func (m *Mempool) AddTx(tx *types.Transaction) error {
	if tx == nil {
		return fmt.Errorf("mempool: transaction is nil")
	}
	if tx.Amount == 0 {
		return fmt.Errorf("mempool: zero-amount transfers are rejected")
	}
	if !crypto.VerifyEd25519(ed25519.PublicKey(tx.From.Bytes()), encoding.TransactionSigningBytes(tx), tx.Signature.Bytes()) {
		return fmt.Errorf("mempool: invalid signature")
	}
	account, _ := m.state.GetAccount(tx.From)
	if tx.Nonce < account.Nonce {
		return fmt.Errorf("mempool: stale nonce %d, account is at %d", tx.Nonce, account.Nonce)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.pool[tx.From]
	insertAt := len(queue)
	for i, existing := range queue {
		if existing.Nonce == tx.Nonce {
			return fmt.Errorf("mempool: duplicate nonce %d for sender", tx.Nonce)
		}
		if tx.Nonce < existing.Nonce {
			insertAt = i
			break
		}
	}
	queue = append(queue, nil)
	copy(queue[insertAt+1:], queue[insertAt:])
	queue[insertAt] = tx
	m.pool[tx.From] = queue
	return nil
}

// Len returns the number of transactions currently queued across every sender.
func (m *Mempool) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, q := range m.pool {
		n += len(q)
	}
	return n
}

// Remove drops every queued transaction for sender whose nonce is strictly
// below upToNonce, called after a commit advances that sender's account nonce.
func (m *Mempool) Remove(sender types.PublicKey, upToNonce uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.pool[sender]
	kept := queue[:0]
	for _, tx := range queue {
		if tx.Nonce >= upToNonce {
			kept = append(kept, tx)
		}
	}
	if len(kept) == 0 {
		delete(m.pool, sender)
		return
	}
	m.pool[sender] = kept
}

// SelectForBlock returns up to max transactions ready to include in the next
// block: nonce-ascending per sender, one ready transaction per sender at a
// time, ties across senders broken by ascending transaction hash for a
// deterministic ordering across nodes proposing from the same pool state.
func (m *Mempool) SelectForBlock(max int) ([]*types.Transaction, error) {
	if max <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	type cursor struct {
		account types.AccountState
		queue   []*types.Transaction
		pos     int
	}
	cursors := make(map[types.PublicKey]*cursor, len(m.pool))
	for sender, queue := range m.pool {
		if len(queue) == 0 {
			continue
		}
		account, _ := m.state.GetAccount(sender)
		cursors[sender] = &cursor{account: account, queue: queue}
	}

	h := &readyHeap{}
	heap.Init(h)
	push := func(sender types.PublicKey, c *cursor) error {
		for c.pos < len(c.queue) {
			tx := c.queue[c.pos]
			if tx.Nonce != c.account.Nonce {
				return nil // next queued tx for this sender isn't ready yet
			}
			hash, err := encoding.HashTransaction(tx)
			if err != nil {
				return err
			}
			heap.Push(h, &readyTx{tx: tx, hash: hash, sender: sender})
			return nil
		}
		return nil
	}
	for sender, c := range cursors {
		if err := push(sender, c); err != nil {
			return nil, err
		}
	}

	var out []*types.Transaction
	for h.Len() > 0 && len(out) < max {
		item := heap.Pop(h).(*readyTx)
		out = append(out, item.tx)

		c := cursors[item.sender]
		c.account.Nonce++
		c.pos++
		if err := push(item.sender, c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type readyTx struct {
	tx     *types.Transaction
	hash   types.Hash
	sender types.PublicKey
}

type readyHeap []*readyTx

func (h readyHeap) Len() int            { return len(h) }
func (h readyHeap) Less(i, j int) bool  { return h[i].hash.Less(h[j].hash) }
func (h readyHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *readyHeap) Push(x interface{}) { *h = append(*h, x.(*readyTx)) }
func (h *readyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
