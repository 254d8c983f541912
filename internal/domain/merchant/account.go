package merchant

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Account represents a merchant's operating account. It is the unit of
// locking for balance mutations: concurrent withdraw creations against the
// same account must serialize their available-balance decrement.
type Account struct {
	PublicID   string `json:"public_id" bson:"public_id"`
	APIKeyHash string `json:"api_key_hash" bson:"api_key_hash"` // sha256 hex, never plaintext

	// AvailableBalance is decremented at order-creation time (funds lock);
	// CurrentBalance is adjusted only at settlement. available <= current is
	// deliberately not enforced structurally.
	AvailableBalance int64 `json:"available_balance" bson:"available_balance"`
	CurrentBalance   int64 `json:"current_balance" bson:"current_balance"`

	MinDeposit  int64 `json:"min_deposit" bson:"min_deposit"`
	MaxDeposit  int64 `json:"max_deposit" bson:"max_deposit"`
	MinWithdraw int64 `json:"min_withdraw" bson:"min_withdraw"`
	MaxWithdraw int64 `json:"max_withdraw" bson:"max_withdraw"`

	DepositIPWhitelist  []string `json:"deposit_ip_whitelist" bson:"deposit_ip_whitelist"`
	WithdrawIPWhitelist []string `json:"withdraw_ip_whitelist" bson:"withdraw_ip_whitelist"`

	Enabled   bool      `json:"enabled" bson:"enabled"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// HashAPIKey derives the stored digest for an API key
func HashAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// MatchesAPIKey compares a plaintext key against the stored hash
func (a *Account) MatchesAPIKey(apiKey string) bool {
	return a.APIKeyHash == HashAPIKey(apiKey)
}

// WhitelistedFor reports whether the source IP appears in the whitelist for
// the given order direction. An empty whitelist admits nothing; orders from
// unlisted IPs are flagged suspicious rather than rejected.
func (a *Account) WhitelistedFor(deposit bool, ip string) bool {
	list := a.WithdrawIPWhitelist
	if deposit {
		list = a.DepositIPWhitelist
	}
	for _, allowed := range list {
		if allowed == ip {
			return true
		}
	}
	return false
}

// LimitsFor returns the min/max amount bounds for the given direction
func (a *Account) LimitsFor(deposit bool) (min, max int64) {
	if deposit {
		return a.MinDeposit, a.MaxDeposit
	}
	return a.MinWithdraw, a.MaxWithdraw
}
