package runtime

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ordinalchain/ordinal/pkg/config"
	"github.com/ordinalchain/ordinal/pkg/genesis"
	"github.com/ordinalchain/ordinal/pkg/log"
	"github.com/ordinalchain/ordinal/pkg/types"
)

func testConfig(t *testing.T) *config.NodeConfig {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.HomeDir = t.TempDir()
	cfg.Storage.WarmDir = "warm"
	cfg.Storage.ColdDir = "cold"
	cfg.Storage.HotCapacity = 16
	return cfg
}

func mustDecode(t *testing.T, hexStr string) types.PublicKey {
	t.Helper()
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		t.Fatalf("hex.DecodeString: %v", err)
	}
	pub, err := types.PublicKeyFromBytes(raw)
	if err != nil {
		t.Fatalf("PublicKeyFromBytes: %v", err)
	}
	return pub
}

func TestNewAppliesGenesisAccountsAndValidators(t *testing.T) {
	gen := genesis.Default()
	cfg := testConfig(t)
	reg := prometheus.NewRegistry()

	n, err := New(cfg, gen, log.NewNop(), reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = n.chain.Close() })

	for _, acc := range gen.Accounts {
		pub := mustDecode(t, acc.PubKey)
		state, ok := n.Account(pub)
		if !ok {
			t.Fatalf("genesis account %s not applied", acc.PubKey)
		}
		if state.Balance != acc.Balance {
			t.Fatalf("account %s balance = %d, want %d", acc.PubKey, state.Balance, acc.Balance)
		}
	}

	active := n.validators.ActiveSet()
	if len(active) != len(gen.Validators) {
		t.Fatalf("active set size = %d, want %d", len(active), len(gen.Validators))
	}
	for _, v := range gen.Validators {
		pub := mustDecode(t, v.PubKey)
		info, ok := n.validators.Get(pub)
		if !ok {
			t.Fatalf("genesis validator %s not registered", v.PubKey)
		}
		if info.Stake != v.InitialStake {
			t.Fatalf("validator %s stake = %d, want %d", v.PubKey, info.Stake, v.InitialStake)
		}
		if info.Status != types.StatusActive {
			t.Fatalf("validator %s status = %v, want active", v.PubKey, info.Status)
		}
	}
}

func TestSubmitTransactionRejectsInvalidSignature(t *testing.T) {
	gen := genesis.Default()
	cfg := testConfig(t)
	reg := prometheus.NewRegistry()

	n, err := New(cfg, gen, log.NewNop(), reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = n.chain.Close() })

	from := mustDecode(t, gen.Accounts[0].PubKey)
	to := mustDecode(t, gen.Accounts[1].PubKey)
	tx := &types.Transaction{From: from, To: to, Amount: 10, Nonce: 0}
	if err := n.SubmitTransaction(tx); err == nil {
		t.Fatalf("expected an unsigned transaction to be rejected")
	}
}

func TestResumeHeightDefaultsToOneWithNoPriorCommit(t *testing.T) {
	gen := genesis.Default()
	cfg := testConfig(t)
	reg := prometheus.NewRegistry()

	n, err := New(cfg, gen, log.NewNop(), reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = n.chain.Close() })

	height, err := n.resumeHeight()
	if err != nil {
		t.Fatalf("resumeHeight: %v", err)
	}
	if height != 1 {
		t.Fatalf("resumeHeight = %d, want 1", height)
	}
}

func TestStopWithoutStartClosesChainStoreCleanly(t *testing.T) {
	gen := genesis.Default()
	cfg := testConfig(t)
	reg := prometheus.NewRegistry()

	n, err := New(cfg, gen, log.NewNop(), reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := n.Stop(context.TODO()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
