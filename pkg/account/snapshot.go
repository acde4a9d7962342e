package account

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ordinalchain/ordinal/pkg/types"
)

// entry is the on-disk JSON representation of one account in state.json.
type entry struct {
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// SaveSnapshot writes every account to path as a `{ hex_pubkey: { balance,
// nonce } }` JSON map (§6's state.json layout).
func SaveSnapshot(path string, db *StateDB) error {
	accounts := db.Accounts()
	out := make(map[string]entry, len(accounts))
	for k, v := range accounts {
		out[k.String()] = entry{Balance: v.Balance, Nonce: v.Nonce}
	}
	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("account: marshal snapshot: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}

// LoadSnapshot reads a state.json snapshot and returns a populated StateDB.
func LoadSnapshot(path string) (*StateDB, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("account: read snapshot: %w", err)
	}
	var m map[string]entry
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("account: unmarshal snapshot: %w", err)
	}
	db := NewStateDB()
	for k, e := range m {
		pub, err := hexToPubKey(k)
		if err != nil {
			return nil, fmt.Errorf("account: snapshot entry %q: %w", k, err)
		}
		db.SetAccount(pub, types.AccountState{Balance: e.Balance, Nonce: e.Nonce})
	}
	return db, nil
}

func hexToPubKey(s string) (types.PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return types.PublicKey{}, err
	}
	return types.PublicKeyFromBytes(b)
}
