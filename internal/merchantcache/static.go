package merchantcache

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vietpay-gateway/internal/domain/merchant"
)

// StaticDirectory is the last-resort merchant source for total storage
// outages. It is a read-only JSON file keyed by API key hash, loaded once at
// startup; balances in it are informational only and never mutated.
type StaticDirectory struct {
	byHash map[string]merchant.Account
}

// LoadStaticDirectory reads the emergency merchant file. An empty path or a
// missing file yields an empty directory, which disables the static tier.
func LoadStaticDirectory(path string) (*StaticDirectory, error) {
	dir := &StaticDirectory{byHash: make(map[string]merchant.Account)}
	if path == "" {
		return dir, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return dir, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read static merchant file: %w", err)
	}
	if err := json.Unmarshal(data, &dir.byHash); err != nil {
		return nil, fmt.Errorf("failed to parse static merchant file: %w", err)
	}

	for hash, acct := range dir.byHash {
		if acct.APIKeyHash == "" {
			acct.APIKeyHash = hash
			dir.byHash[hash] = acct
		}
	}

	return dir, nil
}

// LookupByAPIKey resolves an account by the hash of the presented key
func (d *StaticDirectory) LookupByAPIKey(apiKey string) *merchant.Account {
	acct, ok := d.byHash[merchant.HashAPIKey(apiKey)]
	if !ok {
		return nil
	}
	copied := acct
	return &copied
}

// Len reports how many merchants the static tier can serve
func (d *StaticDirectory) Len() int {
	return len(d.byHash)
}
