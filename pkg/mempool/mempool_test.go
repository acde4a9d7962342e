package mempool

import (
	"crypto/ed25519"
	"testing"

	"github.com/ordinalchain/ordinal/pkg/encoding"
	"github.com/ordinalchain/ordinal/pkg/types"
)

type fakeState struct {
	accounts map[types.PublicKey]types.AccountState
}

func (f *fakeState) GetAccount(pub types.PublicKey) (types.AccountState, bool) {
	a, ok := f.accounts[pub]
	return a, ok
}

func keyFromSeed(b byte) (ed25519.PrivateKey, types.PublicKey) {
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = b
	priv := ed25519.NewKeyFromSeed(seed)
	pub, _ := types.PublicKeyFromBytes(priv.Public().(ed25519.PublicKey))
	return priv, pub
}

func signedTx(priv ed25519.PrivateKey, from, to types.PublicKey, amount, nonce uint64) *types.Transaction {
	tx := &types.Transaction{From: from, To: to, Amount: amount, Nonce: nonce}
	sig := ed25519.Sign(priv, encoding.TransactionSigningBytes(tx))
	s, _ := types.SignatureFromBytes(sig)
	tx.Signature = s
	return tx
}

func TestAddTxRejectsZeroAmount(t *testing.T) {
	priv, pub := keyFromSeed(1)
	_, to := keyFromSeed(2)
	state := &fakeState{accounts: map[types.PublicKey]types.AccountState{pub: {Nonce: 0}}}
	mp := New(state)
	if err := mp.AddTx(signedTx(priv, pub, to, 0, 0)); err == nil {
		t.Fatalf("expected zero-amount transfer to be rejected by the mempool")
	}
}

func TestAddTxRejectsStaleNonce(t *testing.T) {
	priv, pub := keyFromSeed(1)
	_, to := keyFromSeed(2)
	state := &fakeState{accounts: map[types.PublicKey]types.AccountState{pub: {Nonce: 5}}}
	mp := New(state)
	if err := mp.AddTx(signedTx(priv, pub, to, 10, 2)); err == nil {
		t.Fatalf("expected stale-nonce transaction to be rejected")
	}
}

func TestAddTxRejectsDuplicateNonce(t *testing.T) {
	priv, pub := keyFromSeed(1)
	_, to := keyFromSeed(2)
	state := &fakeState{accounts: map[types.PublicKey]types.AccountState{pub: {Nonce: 0}}}
	mp := New(state)
	if err := mp.AddTx(signedTx(priv, pub, to, 10, 0)); err != nil {
		t.Fatalf("AddTx: %v", err)
	}
	if err := mp.AddTx(signedTx(priv, pub, to, 99, 0)); err == nil {
		t.Fatalf("expected duplicate-nonce transaction to be rejected")
	}
}

func TestSelectForBlockIsNonceOrderedPerSender(t *testing.T) {
	privA, pubA := keyFromSeed(1)
	_, to := keyFromSeed(2)
	state := &fakeState{accounts: map[types.PublicKey]types.AccountState{pubA: {Nonce: 0}}}
	mp := New(state)

	tx1 := signedTx(privA, pubA, to, 10, 1)
	tx0 := signedTx(privA, pubA, to, 10, 0)
	if err := mp.AddTx(tx1); err != nil {
		t.Fatalf("AddTx tx1: %v", err)
	}
	if err := mp.AddTx(tx0); err != nil {
		t.Fatalf("AddTx tx0: %v", err)
	}

	selected, err := mp.SelectForBlock(10)
	if err != nil {
		t.Fatalf("SelectForBlock: %v", err)
	}
	if len(selected) != 2 || selected[0].Nonce != 0 || selected[1].Nonce != 1 {
		t.Fatalf("selected = %+v, want nonce 0 then 1", selected)
	}
}

func TestSelectForBlockSkipsNotYetReadySender(t *testing.T) {
	privA, pubA := keyFromSeed(1)
	_, to := keyFromSeed(2)
	state := &fakeState{accounts: map[types.PublicKey]types.AccountState{pubA: {Nonce: 0}}}
	mp := New(state)

	// Only nonce 1 is queued; nonce 0 (required first) never arrived.
	tx1 := signedTx(privA, pubA, to, 10, 1)
	mp.pool[pubA] = []*types.Transaction{tx1}

	selected, err := mp.SelectForBlock(10)
	if err != nil {
		t.Fatalf("SelectForBlock: %v", err)
	}
	if len(selected) != 0 {
		t.Fatalf("expected no ready transactions, got %+v", selected)
	}
}

func TestRemoveDropsConfirmedNonces(t *testing.T) {
	privA, pubA := keyFromSeed(1)
	_, to := keyFromSeed(2)
	state := &fakeState{accounts: map[types.PublicKey]types.AccountState{pubA: {Nonce: 0}}}
	mp := New(state)
	mp.AddTx(signedTx(privA, pubA, to, 10, 0))
	mp.AddTx(signedTx(privA, pubA, to, 10, 1))

	mp.Remove(pubA, 1)
	if mp.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after removing confirmed nonce 0", mp.Len())
	}
}
