package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxPool is the subset of *pgxpool.Pool used by the repositories.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

var _ pgxPool = (*pgxpool.Pool)(nil)

var (
	// ErrNotFound is returned when a lookup matches no row in the caller's scope.
	ErrNotFound = errors.New("record not found")
	// ErrCreditLimitExceeded is returned when a guarded credit increment would overspend.
	ErrCreditLimitExceeded = errors.New("credit limit exceeded")
)

func stringOrNil(value *string) any {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return v
}

func intOrNil(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func jsonbOrEmpty(value any) ([]byte, error) {
	if value == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return []byte("{}"), nil
	}
	return data, nil
}

func decodeMetadata(raw []byte) map[string]any {
	out := map[string]any{}
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

// likePatterns turns title fragments into escaped ILIKE patterns.
func likePatterns(fragments []string) []string {
	if len(fragments) == 0 {
		return nil
	}
	escaper := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	out := make([]string, 0, len(fragments))
	for _, f := range fragments {
		out = append(out, "%"+escaper.Replace(f)+"%")
	}
	return out
}
