package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/octobees/leads-enrichment/api/internal/entity"
	"github.com/octobees/leads-enrichment/api/internal/repository"
)

// CreditLedger checks balances before materialization and appends ledger entries.
// Charging itself happens in the materialization transaction.
type CreditLedger struct {
	store        CreditStore
	defaultLimit int
}

// NewCreditLedger builds a ledger. defaultLimit is the allowance of an
// organization that has never been charged.
func NewCreditLedger(store CreditStore, defaultLimit int) *CreditLedger {
	if defaultLimit <= 0 {
		defaultLimit = repository.DefaultCreditsLimit
	}
	return &CreditLedger{store: store, defaultLimit: defaultLimit}
}

// DefaultLimit is the baseline allowance.
func (l *CreditLedger) DefaultLimit() int { return l.defaultLimit }

// CheckAndReserve reports whether requested credits fit in the organization's
// remaining balance, narrowed by the member cap when one is set. It does not
// hold the credits; the guarded increment at charge time does.
func (l *CreditLedger) CheckAndReserve(ctx context.Context, orgID uuid.UUID, memberID string, requested int) (bool, int, error) {
	usage, err := l.store.GetUsage(ctx, orgID, l.defaultLimit)
	if err != nil {
		return false, 0, fmt.Errorf("read credit usage: %w", err)
	}
	remaining := usage.Remaining()

	if strings.TrimSpace(memberID) != "" {
		member, err := l.store.GetMemberUsage(ctx, orgID, memberID)
		if err != nil {
			return false, 0, fmt.Errorf("read member credit usage: %w", err)
		}
		if member != nil && member.CreditsLimit != nil {
			memberRemaining := *member.CreditsLimit - member.CreditsUsed
			if memberRemaining < 0 {
				memberRemaining = 0
			}
			if memberRemaining < remaining {
				remaining = memberRemaining
			}
		}
	}

	return requested <= remaining, remaining, nil
}

// Usage returns the organization's balance.
func (l *CreditLedger) Usage(ctx context.Context, orgID uuid.UUID) (entity.CreditUsage, error) {
	usage, err := l.store.GetUsage(ctx, orgID, l.defaultLimit)
	if err != nil {
		return entity.CreditUsage{}, fmt.Errorf("read credit usage: %w", err)
	}
	return usage, nil
}

// Record appends an enrichment transaction.
func (l *CreditLedger) Record(ctx context.Context, txn *entity.EnrichmentTransaction) error {
	if err := l.store.RecordTransaction(ctx, txn); err != nil {
		return fmt.Errorf("record enrichment transaction: %w", err)
	}
	return nil
}
