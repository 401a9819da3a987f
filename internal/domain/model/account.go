package model

// Account is a tenant account with its upstream marketplace merchant id,
// as served by the account directory.
type Account struct {
	ID         string `json:"account_id"  db:"id"`
	MerchantID string `json:"merchant_id" db:"merchant_id"`
	IsActive   bool   `json:"is_active"   db:"is_active"`
}

// SyncState tracks the last day a tenant's sales were fully synced.
// Written by the sync action service; read here to compute sales ranges.
type SyncState struct {
	AccountID     string `json:"account_id"      db:"account_id"`
	Resource      string `json:"resource"        db:"resource"`
	LastSyncedDay string `json:"last_synced_day" db:"last_synced_day"`
}
