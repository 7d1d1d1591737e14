package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotelhub/loyalty-engine/internal/model"
)

func TestLedgerRepository_Insert_PassesAllFields(t *testing.T) {
	var capturedSQL string
	var capturedArgs []any
	tx := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			capturedSQL = sql
			capturedArgs = arguments
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
	}

	refID := "BK-1001"
	refType := "booking"
	expiresAt := time.Now().UTC().Add(24 * time.Hour)
	entry := &model.LedgerEntry{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		Amount:        500,
		Kind:          model.KindEarned,
		Description:   "stay completed: 2 night(s)",
		ReferenceID:   &refID,
		ReferenceType: &refType,
		ExpiresAt:     &expiresAt,
		CreatedAt:     time.Now().UTC(),
	}

	repo := NewLedgerRepositoryWithPool(&mockPool{})
	err := repo.Insert(context.Background(), tx, entry)

	require.NoError(t, err)
	assert.Contains(t, capturedSQL, "INSERT INTO ledger_entries")
	require.Len(t, capturedArgs, 9)
	assert.Equal(t, entry.ID, capturedArgs[0])
	assert.Equal(t, int64(500), capturedArgs[2])
	assert.Equal(t, "earned", capturedArgs[3])
	assert.Equal(t, &refID, capturedArgs[5])
}

func TestLedgerRepository_SumByCustomer(t *testing.T) {
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error {
				*dest[0].(*int64) = 1250
				return nil
			}}
		},
	}

	repo := NewLedgerRepositoryWithPool(mock)
	sum, err := repo.SumByCustomer(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Equal(t, int64(1250), sum)
}

func TestLedgerRepository_HasOffset_QueriesByReference(t *testing.T) {
	var capturedSQL string
	var capturedArgs []any
	tx := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			capturedSQL = sql
			capturedArgs = args
			return &mockRow{scanFn: func(dest ...any) error {
				*dest[0].(*bool) = true
				return nil
			}}
		},
	}
	entryID := uuid.New()

	repo := NewLedgerRepositoryWithPool(&mockPool{})
	exists, err := repo.HasOffset(context.Background(), tx, entryID)

	require.NoError(t, err)
	assert.True(t, exists)
	assert.Contains(t, capturedSQL, "kind = 'expired'")
	assert.Contains(t, capturedSQL, "reference_type = 'ledger_entry'")
	require.Len(t, capturedArgs, 1)
	assert.Equal(t, entryID, capturedArgs[0])
}

func TestLedgerRepository_FindExpirable_ExcludesOffsetEntries(t *testing.T) {
	var capturedSQL string
	mock := &mockPool{
		queryFn: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			capturedSQL = sql
			return emptyRows{}, nil
		},
	}

	repo := NewLedgerRepositoryWithPool(mock)
	entries, err := repo.FindExpirable(context.Background(), time.Now().UTC(), 500)

	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Contains(t, capturedSQL, "NOT EXISTS")
	assert.Contains(t, capturedSQL, "kind = 'earned'")
	assert.Contains(t, capturedSQL, "ORDER BY e.customer_id")
}

// emptyRows implements pgx.Rows with no rows.
type emptyRows struct{}

func (emptyRows) Close()                                       {}
func (emptyRows) Err() error                                   { return nil }
func (emptyRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (emptyRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (emptyRows) Next() bool                                   { return false }
func (emptyRows) Scan(dest ...any) error                       { return nil }
func (emptyRows) Values() ([]any, error)                       { return nil, nil }
func (emptyRows) RawValues() [][]byte                          { return nil }
func (emptyRows) Conn() *pgx.Conn                              { return nil }
