package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotelhub/loyalty-engine/internal/model"
	"github.com/hotelhub/loyalty-engine/internal/service"
)

func TestRedemptionRepository_UpdateStatus_StampsUsedAt(t *testing.T) {
	var capturedSQL string
	var capturedArgs []any
	tx := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			capturedSQL = sql
			capturedArgs = arguments
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}
	at := time.Now().UTC()
	id := uuid.New()

	repo := NewRedemptionRepositoryWithPool(&mockPool{})
	err := repo.UpdateStatus(context.Background(), tx, id, model.RedemptionUsed, at)

	require.NoError(t, err)
	assert.Contains(t, capturedSQL, "used_at = $3")
	require.Len(t, capturedArgs, 3)
	assert.Equal(t, "used", capturedArgs[1])
	assert.Equal(t, at, capturedArgs[2])
}

func TestRedemptionRepository_UpdateStatus_StampsReversedAt(t *testing.T) {
	var capturedSQL string
	tx := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			capturedSQL = sql
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}

	repo := NewRedemptionRepositoryWithPool(&mockPool{})
	err := repo.UpdateStatus(context.Background(), tx, uuid.New(), model.RedemptionReversed, time.Now().UTC())

	require.NoError(t, err)
	assert.Contains(t, capturedSQL, "reversed_at = $3")
}

func TestRedemptionRepository_UpdateStatus_ExpiredHasNoStamp(t *testing.T) {
	var capturedArgs []any
	tx := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			capturedArgs = arguments
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}

	repo := NewRedemptionRepositoryWithPool(&mockPool{})
	err := repo.UpdateStatus(context.Background(), tx, uuid.New(), model.RedemptionExpired, time.Now().UTC())

	require.NoError(t, err)
	assert.Len(t, capturedArgs, 2, "only the status column changes")
}

func TestRedemptionRepository_GetForUpdate_NotFound(t *testing.T) {
	tx := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}

	repo := NewRedemptionRepositoryWithPool(&mockPool{})
	_, err := repo.GetForUpdate(context.Background(), tx, uuid.New())

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrRedemptionNotFound))
}

func TestRedemptionRepository_GetByCodeForUpdate_LockNotAvailable(t *testing.T) {
	tx := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error {
				return &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}
			}}
		},
	}

	repo := NewRedemptionRepositoryWithPool(&mockPool{})
	_, err := repo.GetByCodeForUpdate(context.Background(), tx, "RDM-abc")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBusy))
}

func TestRedemptionRepository_CountActiveByCustomerItem_ExcludesReversed(t *testing.T) {
	var capturedSQL string
	tx := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			capturedSQL = sql
			return &mockRow{scanFn: func(dest ...any) error {
				*dest[0].(*int) = 2
				return nil
			}}
		},
	}

	repo := NewRedemptionRepositoryWithPool(&mockPool{})
	count, err := repo.CountActiveByCustomerItem(context.Background(), tx, uuid.New(), uuid.New())

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Contains(t, capturedSQL, "status <> 'reversed'",
		"reversed redemptions release their per-user slot")
}
