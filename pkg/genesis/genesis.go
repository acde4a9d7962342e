// Package genesis loads and validates the JSON genesis file that bootstraps
// a node: chain-wide parameters, the initial validator set, and initial
// account balances (§6).
package genesis

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ordinalchain/ordinal/pkg/encoding"
	"github.com/ordinalchain/ordinal/pkg/types"
)

// ChainParams are the chain-wide parameters fixed at genesis.
type ChainParams struct {
	EpochLength   uint64 `json:"epoch_length"`
	BlockTimeMs   uint64 `json:"block_time_ms"`
	MaxValidators uint64 `json:"max_validators"`
	BaseFeeFloor  uint64 `json:"base_fee_floor"`

	FeeLaunchBurnBps      uint64 `json:"fee_launch_burn_bps"`
	FeeLaunchValidatorBps uint64 `json:"fee_launch_validator_bps"`
	FeeLaunchTreasuryBps  uint64 `json:"fee_launch_treasury_bps"`
	FeeLaunchDeveloperBps uint64 `json:"fee_launch_developer_bps"`

	FeeMaturityBurnBps      uint64 `json:"fee_maturity_burn_bps"`
	FeeMaturityValidatorBps uint64 `json:"fee_maturity_validator_bps"`
	FeeMaturityTreasuryBps  uint64 `json:"fee_maturity_treasury_bps"`
	FeeMaturityDeveloperBps uint64 `json:"fee_maturity_developer_bps"`

	FeeTransitionEpochs uint64 `json:"fee_transition_epochs"`
	SlashDoubleSignBps  uint64 `json:"slash_double_sign_bps"`
	SlashDowntimeBps    uint64 `json:"slash_downtime_bps"`
	StakingBaseApyBps   uint64 `json:"staking_base_apy_bps"`
}

// DefaultChainParams mirrors the reference devnet defaults.
func DefaultChainParams() ChainParams {
	return ChainParams{
		EpochLength:             100,
		BlockTimeMs:             2000,
		MaxValidators:           200,
		BaseFeeFloor:            1,
		FeeLaunchBurnBps:        1000,
		FeeLaunchValidatorBps:   0,
		FeeLaunchTreasuryBps:    4500,
		FeeLaunchDeveloperBps:   4500,
		FeeMaturityBurnBps:      2500,
		FeeMaturityValidatorBps: 2500,
		FeeMaturityTreasuryBps:  2500,
		FeeMaturityDeveloperBps: 2500,
		FeeTransitionEpochs:     1825,
		SlashDoubleSignBps:      5000,
		SlashDowntimeBps:        100,
		StakingBaseApyBps:       500,
	}
}

// Validator is one genesis validator entry.
type Validator struct {
	PubKey            string `json:"pubkey_hex_64"`
	InitialStake      uint64 `json:"initial_stake_u64"`
	CommissionRateBps uint32 `json:"commission_rate_bps_u16"`
}

// Account is one genesis account balance entry.
type Account struct {
	PubKey  string `json:"pubkey_hex_64"`
	Balance uint64 `json:"balance_u64"`
}

// Genesis is the full genesis file contract (§6).
type Genesis struct {
	ChainID     string      `json:"chain_id"`
	GenesisTime time.Time   `json:"genesis_time"`
	ChainParams ChainParams `json:"chain_params"`
	Validators  []Validator `json:"validators"`
	Accounts    []Account   `json:"accounts"`
	GenesisHash string      `json:"genesis_hash"`
}

// canonical is the subset of Genesis hashed by ComputeHash: everything
// except GenesisHash itself.
type canonical struct {
	ChainID     string      `json:"chain_id"`
	GenesisTime time.Time   `json:"genesis_time"`
	ChainParams ChainParams `json:"chain_params"`
	Validators  []Validator `json:"validators"`
	Accounts    []Account   `json:"accounts"`
}

// ComputeHash returns SHA-256 of the canonical JSON encoding of g, excluding
// the genesis_hash field itself, hex-encoded.
func (g *Genesis) ComputeHash() (string, error) {
	c := canonical{
		ChainID:     g.ChainID,
		GenesisTime: g.GenesisTime,
		ChainParams: g.ChainParams,
		Validators:  g.Validators,
		Accounts:    g.Accounts,
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("genesis: marshal canonical form: %w", err)
	}
	return encoding.HashBytes(raw).String(), nil
}

// Validate checks every invariant named in §6: at least one validator, no
// duplicate validator pubkeys, positive stake, commission within bounds, and
// both fee-split ratios summing to exactly 10,000 bps.
func (g *Genesis) Validate() error {
	if len(g.Validators) == 0 {
		return fmt.Errorf("genesis: at least one validator is required")
	}
	seen := make(map[string]bool, len(g.Validators))
	for i, v := range g.Validators {
		if seen[v.PubKey] {
			return fmt.Errorf("genesis: duplicate validator pubkey at index %d", i)
		}
		seen[v.PubKey] = true
		if v.InitialStake == 0 {
			return fmt.Errorf("genesis: validator at index %d has zero stake", i)
		}
		if v.CommissionRateBps > 10_000 {
			return fmt.Errorf("genesis: validator at index %d has commission > 10000 bps", i)
		}
		if _, err := decodePubKey(v.PubKey); err != nil {
			return fmt.Errorf("genesis: validator at index %d: %w", i, err)
		}
	}
	for i, a := range g.Accounts {
		if _, err := decodePubKey(a.PubKey); err != nil {
			return fmt.Errorf("genesis: account at index %d: %w", i, err)
		}
	}

	p := g.ChainParams
	if p.EpochLength == 0 {
		return fmt.Errorf("genesis: epoch_length must be > 0")
	}
	if p.BlockTimeMs == 0 {
		return fmt.Errorf("genesis: block_time_ms must be > 0")
	}
	if p.MaxValidators == 0 {
		return fmt.Errorf("genesis: max_validators must be > 0")
	}
	launchTotal := p.FeeLaunchBurnBps + p.FeeLaunchValidatorBps + p.FeeLaunchTreasuryBps + p.FeeLaunchDeveloperBps
	if launchTotal != 10_000 {
		return fmt.Errorf("genesis: launch fee split sums to %d bps, want 10000", launchTotal)
	}
	maturityTotal := p.FeeMaturityBurnBps + p.FeeMaturityValidatorBps + p.FeeMaturityTreasuryBps + p.FeeMaturityDeveloperBps
	if maturityTotal != 10_000 {
		return fmt.Errorf("genesis: maturity fee split sums to %d bps, want 10000", maturityTotal)
	}
	return nil
}

func decodePubKey(s string) (types.PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return types.PublicKey{}, fmt.Errorf("invalid hex pubkey %q: %w", s, err)
	}
	return types.PublicKeyFromBytes(b)
}

// Default returns a 4-validator devnet genesis, matching the reference
// node's default_testnet fixture.
func Default() *Genesis {
	g := &Genesis{
		ChainID:     "ordinal-devnet-1",
		GenesisTime: time.Now().UTC(),
		ChainParams: DefaultChainParams(),
	}
	for i := byte(1); i <= 4; i++ {
		var pub types.PublicKey
		pub[0] = i
		g.Validators = append(g.Validators, Validator{
			PubKey:            pub.String(),
			InitialStake:      10_000_000,
			CommissionRateBps: 500,
		})
		g.Accounts = append(g.Accounts, Account{
			PubKey:  pub.String(),
			Balance: 100_000_000,
		})
	}
	hash, err := g.ComputeHash()
	if err == nil {
		g.GenesisHash = hash
	}
	return g
}

// ToFile validates g and writes it as pretty-printed JSON, stamping
// GenesisHash with the freshly computed value.
func (g *Genesis) ToFile(path string) error {
	hash, err := g.ComputeHash()
	if err != nil {
		return err
	}
	g.GenesisHash = hash
	if err := g.Validate(); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("genesis: marshal: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}

// FromFile reads and validates a genesis file, recomputing GenesisHash from
// its contents rather than trusting the stored value.
func FromFile(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read %s: %w", path, err)
	}
	var g Genesis
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("genesis: unmarshal: %w", err)
	}
	hash, err := g.ComputeHash()
	if err != nil {
		return nil, err
	}
	g.GenesisHash = hash
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}
