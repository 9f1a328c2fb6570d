package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octobees/leads-enrichment/api/internal/entity"
)

// DefaultCreditsLimit is the baseline allowance of an organization without a usage row.
const DefaultCreditsLimit = 30

// CreditsRepository reads credit balances and appends to the enrichment ledger.
type CreditsRepository interface {
	GetUsage(ctx context.Context, orgID uuid.UUID, defaultLimit int) (entity.CreditUsage, error)
	GetMemberUsage(ctx context.Context, orgID uuid.UUID, memberID string) (*entity.MemberCreditUsage, error)
	RecordTransaction(ctx context.Context, txn *entity.EnrichmentTransaction) error
}

// PGXCreditsRepository implements CreditsRepository using pgx.
type PGXCreditsRepository struct {
	pool pgxPool
}

// NewPGXCreditsRepository wires a pgx backed credits repository.
func NewPGXCreditsRepository(pool *pgxpool.Pool) *PGXCreditsRepository {
	return &PGXCreditsRepository{pool: pool}
}

// GetUsage returns the organization's balance, falling back to the baseline
// allowance when no usage row exists yet.
func (r *PGXCreditsRepository) GetUsage(ctx context.Context, orgID uuid.UUID, defaultLimit int) (entity.CreditUsage, error) {
	if defaultLimit <= 0 {
		defaultLimit = DefaultCreditsLimit
	}
	usage := entity.CreditUsage{OrgID: orgID}
	err := r.pool.QueryRow(ctx, `
        SELECT credits_used, credits_limit, icp_search_credits_used, icp_search_credits_limit
        FROM credit_usage WHERE org_id = $1
    `, orgID).Scan(&usage.CreditsUsed, &usage.CreditsLimit, &usage.ICPSearchCreditsUsed, &usage.ICPSearchCreditsLimit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			usage.CreditsLimit = defaultLimit
			return usage, nil
		}
		return entity.CreditUsage{}, fmt.Errorf("query credit usage: %w", err)
	}
	return usage, nil
}

// GetMemberUsage returns the member's usage row, or nil when the member has none.
func (r *PGXCreditsRepository) GetMemberUsage(ctx context.Context, orgID uuid.UUID, memberID string) (*entity.MemberCreditUsage, error) {
	usage := entity.MemberCreditUsage{OrgID: orgID, MemberID: memberID}
	err := r.pool.QueryRow(ctx, `
        SELECT credits_used, credits_limit FROM member_credit_usage
        WHERE org_id = $1 AND member_id = $2
    `, orgID, memberID).Scan(&usage.CreditsUsed, &usage.CreditsLimit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query member credit usage: %w", err)
	}
	return &usage, nil
}

// RecordTransaction appends an enrichment ledger entry.
func (r *PGXCreditsRepository) RecordTransaction(ctx context.Context, txn *entity.EnrichmentTransaction) error {
	if txn == nil {
		return fmt.Errorf("transaction payload is nil")
	}
	filters, err := json.Marshal(txn.Filters.Normalized())
	if err != nil {
		return fmt.Errorf("encode transaction filters: %w", err)
	}
	metadata, err := jsonbOrEmpty(txn.Metadata)
	if err != nil {
		return fmt.Errorf("encode transaction metadata: %w", err)
	}

	var memberID any
	if txn.MemberID != "" {
		memberID = txn.MemberID
	}

	row := r.pool.QueryRow(ctx, `
        INSERT INTO enrichment_transactions (
            org_id, member_id, type, credits_used, cache_hit, provider_calls, filters, metadata
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at
    `, txn.OrgID, memberID, txn.Type, txn.CreditsUsed, txn.CacheHit, txn.ProviderCalls, filters, metadata)
	if err := row.Scan(&txn.ID, &txn.CreatedAt); err != nil {
		return fmt.Errorf("insert enrichment transaction: %w", err)
	}
	return nil
}

var _ CreditsRepository = (*PGXCreditsRepository)(nil)
