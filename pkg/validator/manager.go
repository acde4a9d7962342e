package validator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ordinalchain/ordinal/pkg/types"
)

// Config bounds the active validator set and gates registration.
type Config struct {
	ActiveSetCap int
	EpochLength  uint64
	MinStake     uint64
}

type entry struct {
	info        types.ValidatorInfo
	tier        LockTier
	delegations []Delegation
}

// Manager is the stake-weighted validator-set manager (§4.3): registration,
// status transitions, effective-voting-power ranking, epoch rotation, and
// deterministic weighted round-robin proposer selection.
type Manager struct {
	mu           sync.RWMutex
	cfg          Config
	validators   map[types.PublicKey]*entry
	currentEpoch uint64
}

// NewManager constructs an empty manager with the given configuration.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, validators: make(map[types.PublicKey]*entry)}
}

// RegisterValidator admits a new validator at joinHeight with an initial
// stake and lock tier. It starts Active if fewer than ActiveSetCap validators
// are Active, otherwise Standby; a subsequent RotateEpoch re-ranks everyone.
// Stake below the configured minimum, or a pubkey already registered, is
// rejected.
func (m *Manager) RegisterValidator(pub types.PublicKey, stake uint64, tier LockTier, commissionBps uint32, joinHeight types.Height) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stake < m.cfg.MinStake {
		return fmt.Errorf("validator: stake %d below minimum %d", stake, m.cfg.MinStake)
	}
	if _, exists := m.validators[pub]; exists {
		return fmt.Errorf("validator: %s already registered", pub)
	}
	status := types.StatusStandby
	activeCount := 0
	for _, e := range m.validators {
		if e.info.Status == types.StatusActive {
			activeCount++
		}
	}
	if activeCount < m.cfg.ActiveSetCap {
		status = types.StatusActive
	}
	m.validators[pub] = &entry{
		info: types.ValidatorInfo{
			PubKey:            pub,
			Stake:             stake,
			CommissionRateBps: commissionBps,
			Status:            status,
			PerformanceScore:  10000,
			JoinHeight:        joinHeight,
		},
		tier: tier,
	}
	return nil
}

// DeregisterValidator removes a validator entirely. Its delegations are
// dropped with it — returning delegated funds to delegators is a fee-market /
// account-settlement concern outside this component (§1 out-of-scope).
func (m *Manager) DeregisterValidator(pub types.PublicKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.validators[pub]; !ok {
		return fmt.Errorf("validator: %s not registered", pub)
	}
	delete(m.validators, pub)
	return nil
}

// Get returns a copy of a validator's info.
func (m *Manager) Get(pub types.PublicKey) (types.ValidatorInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.validators[pub]
	if !ok {
		return types.ValidatorInfo{}, false
	}
	return e.info, true
}

// Jail immediately moves a validator to Jailed status; it is excluded from
// the active set and from proposer selection until Unjail is called.
func (m *Manager) Jail(pub types.PublicKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.validators[pub]
	if !ok {
		return fmt.Errorf("validator: %s not registered", pub)
	}
	e.info.Status = types.StatusJailed
	return nil
}

// Unjail moves a jailed validator back to Standby; the next epoch rotation
// decides whether it re-enters the active set.
func (m *Manager) Unjail(pub types.PublicKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.validators[pub]
	if !ok {
		return fmt.Errorf("validator: %s not registered", pub)
	}
	if e.info.Status != types.StatusJailed {
		return fmt.Errorf("validator: %s is not jailed", pub)
	}
	e.info.Status = types.StatusStandby
	return nil
}

// UpdateStake replaces a validator's raw stake (e.g. after a stake top-up or
// withdrawal processed by the account layer).
func (m *Manager) UpdateStake(pub types.PublicKey, newStake uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.validators[pub]
	if !ok {
		return fmt.Errorf("validator: %s not registered", pub)
	}
	e.info.Stake = newStake
	return nil
}

// Delegate adds a delegation behind a validator. The delegation scales by its
// own lock tier, independent of the validator's tier (original_source's
// staking pool model — see SPEC_FULL.md §11).
func (m *Manager) Delegate(pub types.PublicKey, d Delegation) error {
	if err := validateDelegation(d); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.validators[pub]
	if !ok {
		return fmt.Errorf("validator: %s not registered", pub)
	}
	e.delegations = append(e.delegations, d)
	return nil
}

// Undelegate removes up to amount from delegator's delegations behind pub,
// oldest first, mirroring the original staking pool's FIFO unstake order.
func (m *Manager) Undelegate(pub types.PublicKey, delegator string, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.validators[pub]
	if !ok {
		return fmt.Errorf("validator: %s not registered", pub)
	}
	remaining := amount
	kept := e.delegations[:0]
	for _, d := range e.delegations {
		if remaining == 0 || d.Delegator != delegator {
			kept = append(kept, d)
			continue
		}
		if d.Amount <= remaining {
			remaining -= d.Amount
			continue // fully consumed, drop it
		}
		d.Amount -= remaining
		remaining = 0
		kept = append(kept, d)
	}
	if remaining > 0 {
		return fmt.Errorf("validator: insufficient delegated balance for %s behind %s", delegator, pub)
	}
	e.delegations = kept
	return nil
}

// EffectiveVotingPower computes stake*tier_bps/10000 plus the vote power of
// every delegation behind the validator, each scaled by its own tier.
func (m *Manager) EffectiveVotingPower(pub types.PublicKey) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.validators[pub]
	if !ok {
		return 0, fmt.Errorf("validator: %s not registered", pub)
	}
	return effectivePower(e), nil
}

func effectivePower(e *entry) uint64 {
	power := votePower(e.info.Stake, e.tier)
	for _, d := range e.delegations {
		power += votePower(d.Amount, d.Tier)
	}
	return power
}

// rankedCandidates returns every non-jailed validator sorted by descending
// effective voting power, with pubkey bytes as a deterministic tiebreaker.
func (m *Manager) rankedCandidates() []*entry {
	var out []*entry
	for _, e := range m.validators {
		if e.info.Status == types.StatusJailed {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := effectivePower(out[i]), effectivePower(out[j])
		if pi != pj {
			return pi > pj
		}
		return out[i].info.PubKey.Less(out[j].info.PubKey)
	})
	return out
}

// RotateEpoch recomputes Active/Standby assignment: the top ActiveSetCap
// ranked, non-jailed validators become Active; everyone else becomes Standby.
// Jailed validators are left untouched. It advances the epoch counter.
func (m *Manager) RotateEpoch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	ranked := m.rankedCandidates()
	for i, e := range ranked {
		if i < m.cfg.ActiveSetCap {
			e.info.Status = types.StatusActive
		} else {
			e.info.Status = types.StatusStandby
		}
	}
	m.currentEpoch++
}

// CurrentEpoch returns the current epoch counter.
func (m *Manager) CurrentEpoch() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentEpoch
}

// ActiveSet returns the Active validators' public keys, ordered by descending
// effective voting power (ties broken by pubkey). This is the ordered
// validator list the BFT core is constructed or advanced with.
func (m *Manager) ActiveSet() []types.PublicKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.PublicKey
	for _, e := range m.rankedCandidates() {
		if e.info.Status == types.StatusActive {
			out = append(out, e.info.PubKey)
		}
	}
	return out
}

// TotalActivePower sums effective voting power across the Active set.
func (m *Manager) TotalActivePower() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total uint64
	for _, e := range m.validators {
		if e.info.Status == types.StatusActive {
			total += effectivePower(e)
		}
	}
	return total
}

// ProposerForRound deterministically selects a proposer from the Active set,
// weighted by effective voting power: height is reduced modulo the total
// active power to pick a "seed" point, then the Active validators, ordered by
// ascending public key, are walked accumulating power until the seed point
// falls within a validator's share. round does not affect the result — this
// mirrors the reference validator-set manager's get_proposer(height,
// staking_pool), which has no round term. It is the runtime's canonical,
// stake-weighted notion of block-production identity, distinct from and
// consulted independently of the BFT core's own positional proposer rule.
func (m *Manager) ProposerForRound(height types.Height, _ types.Round) (types.PublicKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []*entry
	var total uint64
	for _, e := range m.validators {
		if e.info.Status != types.StatusActive {
			continue
		}
		active = append(active, e)
		total += effectivePower(e)
	}
	if total == 0 || len(active) == 0 {
		return types.PublicKey{}, false
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].info.PubKey.Less(active[j].info.PubKey)
	})
	seed := uint64(height) % total
	var cum uint64
	for _, e := range active {
		cum += effectivePower(e)
		if seed < cum {
			return e.info.PubKey, true
		}
	}
	// Unreachable unless effectivePower changed between the sum and the walk;
	// fall back to the lowest-pubkey validator rather than panic.
	return active[0].info.PubKey, true
}

// RecordSigned restores performance score towards the ceiling when a
// validator participates in a round (caps at 10000).
func (m *Manager) RecordSigned(pub types.PublicKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.validators[pub]
	if !ok {
		return
	}
	if e.info.PerformanceScore < 10000 {
		e.info.PerformanceScore += 100
		if e.info.PerformanceScore > 10000 {
			e.info.PerformanceScore = 10000
		}
	}
}

// RecordMiss penalizes performance score when a validator fails to
// participate in a round it was expected to (floors at 0).
func (m *Manager) RecordMiss(pub types.PublicKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.validators[pub]
	if !ok {
		return
	}
	if e.info.PerformanceScore < 500 {
		e.info.PerformanceScore = 0
	} else {
		e.info.PerformanceScore -= 500
	}
}
