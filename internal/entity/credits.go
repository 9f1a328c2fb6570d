package entity

import (
	"time"

	"github.com/google/uuid"
)

// Transaction types recorded in the enrichment ledger.
const (
	TransactionSingleCompany = "single_company"
	TransactionBulk          = "bulk"
)

// CreditUsage is an organization's enrichment balance.
type CreditUsage struct {
	OrgID                 uuid.UUID `json:"org_id"`
	CreditsUsed           int       `json:"credits_used"`
	CreditsLimit          int       `json:"credits_limit"`
	ICPSearchCreditsUsed  int       `json:"icp_search_credits_used"`
	ICPSearchCreditsLimit int       `json:"icp_search_credits_limit"`
}

// Remaining returns the enrichment credits left, never negative.
func (u CreditUsage) Remaining() int {
	if r := u.CreditsLimit - u.CreditsUsed; r > 0 {
		return r
	}
	return 0
}

// MemberCreditUsage tracks usage for one member of an organization.
type MemberCreditUsage struct {
	OrgID        uuid.UUID `json:"org_id"`
	MemberID     string    `json:"member_id"`
	CreditsUsed  int       `json:"credits_used"`
	CreditsLimit *int      `json:"credits_limit,omitempty"`
}

// EnrichmentTransaction is an append-only audit row for one enrichment operation.
type EnrichmentTransaction struct {
	ID            uuid.UUID         `json:"id"`
	OrgID         uuid.UUID         `json:"org_id"`
	MemberID      string            `json:"member_id,omitempty"`
	Type          string            `json:"type"`
	CreditsUsed   int               `json:"credits_used"`
	CacheHit      bool              `json:"cache_hit"`
	ProviderCalls int               `json:"provider_calls"`
	Filters       EnrichmentFilters `json:"filters"`
	Metadata      map[string]any    `json:"metadata"`
	CreatedAt     time.Time         `json:"created_at"`
}
