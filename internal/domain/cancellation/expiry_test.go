package cancellation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookloop/bookloop-api/internal/domain/chat"
	"github.com/bookloop/bookloop-api/internal/domain/notification"
	"github.com/bookloop/bookloop-api/internal/domain/transaction"
	"github.com/bookloop/bookloop-api/internal/pkg/lock"
)

func TestSweepAutoApprovesExpired(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	expiredTx := f.store.addTransaction(transaction.StatusOngoing, 40)
	freshTx := f.store.addTransaction(transaction.StatusApproved, 40)

	expired, err := f.svc.Initiate(ctx, expiredTx.BorrowerID, fullRefund(expiredTx.ID))
	require.NoError(t, err)
	fresh, err := f.svc.Initiate(ctx, freshTx.BorrowerID, fullRefund(freshTx.ID))
	require.NoError(t, err)
	f.store.setExpiresAt(expired.ID, f.clock.Add(-time.Minute))

	result, err := f.svc.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, expired.ID, result.CancellationIDs[0])

	stored := f.store.request(expired.ID)
	assert.Equal(t, StatusProcessed, stored.Status)
	assert.True(t, stored.AutoResolved)
	require.NotNil(t, stored.OtherConfirmed)
	assert.True(t, *stored.OtherConfirmed)
	assert.Equal(t, transaction.StatusCancelled, f.store.transaction(expiredTx.ID).Status)
	assert.True(t, f.store.bookAvailable(expiredTx.BookID))

	assert.Equal(t, StatusPending, f.store.request(fresh.ID).Status)

	history, err := f.svc.History(ctx, expired.ID, expiredTx.LenderID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.JSONEq(t, `{"event":"completed","refundAmount":40}`, string(history[2].Details))

	types := f.transport.types()
	assert.Equal(t, chat.SystemCancellationAutoApproved, types[len(types)-1])

	last := f.notifier.sent[len(f.notifier.sent)-1]
	assert.Equal(t, expiredTx.BorrowerID, last.userID)
	assert.Equal(t, notification.CategoryCancellationExpired, last.category)
}

func TestSweepIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tr := f.store.addTransaction(transaction.StatusApproved, 10)

	_, err := f.svc.Initiate(ctx, tr.BorrowerID, fullRefund(tr.ID))
	require.NoError(t, err)
	f.advance(72 * time.Hour)

	first, err := f.svc.Sweep(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, first.Processed)

	historyBefore := f.store.historyCount()
	postsBefore := len(f.transport.types())
	notesBefore := f.notifier.count()

	second, err := f.svc.Sweep(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, second.Processed)
	assert.Equal(t, historyBefore, f.store.historyCount())
	assert.Equal(t, postsBefore, len(f.transport.types()))
	assert.Equal(t, notesBefore, f.notifier.count())
}

func TestSweepRespectsBatchSize(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		tr := f.store.addTransaction(transaction.StatusApproved, 10)
		_, err := f.svc.Initiate(ctx, tr.BorrowerID, fullRefund(tr.ID))
		require.NoError(t, err)
	}
	f.advance(49 * time.Hour)

	result, err := f.svc.Sweep(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)

	result, err = f.svc.Sweep(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
}

func TestWorkerRunOnceSkipsWhenLocked(t *testing.T) {
	f := newFixture()
	locker := lock.NewLocal()
	w := NewWorker(f.svc, locker, time.Minute, 10)

	release, err := locker.TryLock(context.Background(), sweepLockKey, time.Minute)
	require.NoError(t, err)
	assert.False(t, w.RunOnce())

	release()
	assert.True(t, w.RunOnce())
}
