package moderation

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookloop/bookloop-api/internal/domain/audit"
	"github.com/bookloop/bookloop-api/internal/domain/chat"
	"github.com/bookloop/bookloop-api/internal/domain/credit"
	"github.com/bookloop/bookloop-api/internal/domain/notification"
	"github.com/bookloop/bookloop-api/internal/pkg/apperr"
)

type fixture struct {
	store    *memStore
	chats    *fakeChats
	notifier *fakeNotifier
	svc      *Service
	clock    time.Time

	reporter uuid.UUID
	reported uuid.UUID
	room     uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		store:    newMemStore(),
		chats:    newFakeChats(),
		notifier: &fakeNotifier{},
		clock:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		reporter: uuid.New(),
		reported: uuid.New(),
	}
	f.room = f.chats.addRoom(f.reporter, f.reported)
	f.svc = NewService(f.store, f.chats, f.notifier)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *fixture) input(reason Reason) SubmitInput {
	return SubmitInput{ChatID: f.room, ReportedID: f.reported, Reason: reason}
}

// seedCluster files reports from two other members so the next report in
// the room sees the multiple_reports signal.
func (f *fixture) seedCluster(t *testing.T) {
	t.Helper()
	for i := 0; i < 2; i++ {
		other := uuid.New()
		f.chats.members[f.room][other] = true
		res, err := f.svc.Submit(context.Background(), other, f.input(ReasonOther))
		require.NoError(t, err)
		require.False(t, res.AutoResolved)
		f.advance(time.Minute)
	}
}

func TestSubmitAutoResolvesAndPenalizes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.store.setBalance(f.reported, 120)
	f.seedCluster(t)

	msgID := f.chats.addMessage(f.room, f.reported, "SCAM send money via paypal http://x.co")
	in := f.input(ReasonScam)
	in.MessageID = uuid.NullUUID{UUID: msgID, Valid: true}

	res, err := f.svc.Submit(ctx, f.reporter, in)
	require.NoError(t, err)

	assert.True(t, res.AutoResolved)
	assert.Equal(t, 3, res.SignalCount)
	assert.InDelta(t, 74.5, res.Confidence, 1e-9)
	assert.Equal(t, 120, res.PenaltyApplied, "penalty is floored at the available balance")
	assert.Equal(t, 0, f.store.balance(f.reported))

	report := f.store.report(res.ReportID)
	assert.Equal(t, StatusChecked, report.Status)
	assert.Equal(t, AppealNone, report.AppealStatus)

	signals, err := f.store.ListSignals(ctx, res.ReportID)
	require.NoError(t, err)
	assert.Len(t, signals, 3)

	trust, ok := f.store.trustOf(f.reporter)
	require.True(t, ok)
	assert.Equal(t, 55.0, trust.TrustScore)
	assert.Equal(t, 1, trust.TotalReports)
	assert.Equal(t, 1, trust.ValidReports)

	entries := f.store.ledgerEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, credit.TxTypePenalty, entries[0].txType)
	assert.Equal(t, -120, entries[0].delta)
	assert.Equal(t, res.ReportID, entries[0].entityID)

	assert.Contains(t, f.store.auditActions(), audit.ActionReportPenalty)
	assert.Equal(t, []notification.Category{notification.CategoryReportPenalty}, f.notifier.to(f.reported))
}

func TestSubmitVolumeAloneDoesNotAutoResolve(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.store.setBalance(f.reported, 500)

	var last *SubmitResult
	for _, reason := range []Reason{ReasonSpam, ReasonAbuse, ReasonOther} {
		res, err := f.svc.Submit(ctx, f.reporter, f.input(reason))
		require.NoError(t, err)
		last = res
		f.advance(5 * time.Minute)
	}

	assert.Equal(t, 1, last.SignalCount)
	assert.InDelta(t, 29.0, last.Confidence, 1e-9)
	assert.False(t, last.AutoResolved)
	assert.Equal(t, 0, last.PenaltyApplied)
	assert.Equal(t, 500, f.store.balance(f.reported))
	assert.Equal(t, StatusPending, f.store.report(last.ReportID).Status)

	trust, _ := f.store.trustOf(f.reporter)
	assert.Equal(t, DefaultTrustScore, trust.TrustScore)
	assert.Equal(t, 3, trust.TotalReports)
	assert.Empty(t, f.notifier.to(f.reported))
}

func TestSubmitNoSignalsHasZeroConfidence(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Submit(context.Background(), f.reporter, f.input(ReasonOther))
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, 0, res.SignalCount)
}

func TestSubmitRejections(t *testing.T) {
	t.Run("self report", func(t *testing.T) {
		f := newFixture()
		in := f.input(ReasonSpam)
		in.ReportedID = f.reporter
		_, err := f.svc.Submit(context.Background(), f.reporter, in)
		assert.ErrorIs(t, err, ErrSelfReport)
		assert.Equal(t, apperr.SelfReport, apperr.KindOf(err))
	})

	t.Run("not a chat member", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Submit(context.Background(), uuid.New(), f.input(ReasonSpam))
		assert.ErrorIs(t, err, chat.ErrNotRoomMember)
	})

	t.Run("message from another chat", func(t *testing.T) {
		f := newFixture()
		otherRoom := f.chats.addRoom(f.reporter, f.reported)
		in := f.input(ReasonSpam)
		in.MessageID = uuid.NullUUID{UUID: f.chats.addMessage(otherRoom, f.reported, "hi"), Valid: true}
		_, err := f.svc.Submit(context.Background(), f.reporter, in)
		assert.ErrorIs(t, err, chat.ErrMessageNotFound)
	})

	t.Run("reported user outside the chat", func(t *testing.T) {
		f := newFixture()
		in := f.input(ReasonSpam)
		in.ReportedID = uuid.New()
		_, err := f.svc.Submit(context.Background(), f.reporter, in)
		assert.ErrorIs(t, err, ErrReportedNotInChat)
		assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
		_, ok := f.store.trustOf(f.reporter)
		assert.False(t, ok)
	})

	t.Run("message written by someone else", func(t *testing.T) {
		f := newFixture()
		f.store.setBalance(f.reported, 300)
		f.seedCluster(t)

		in := f.input(ReasonScam)
		in.MessageID = uuid.NullUUID{
			UUID:  f.chats.addMessage(f.room, f.reporter, "SCAM send money via paypal http://x.co"),
			Valid: true,
		}
		_, err := f.svc.Submit(context.Background(), f.reporter, in)
		assert.ErrorIs(t, err, ErrMessageNotByReported)
		assert.Equal(t, apperr.Validation, apperr.KindOf(err))
		assert.Equal(t, 300, f.store.balance(f.reported))

		mine, total, err := f.store.ListByReporter(context.Background(), f.reporter, ListFilter{Limit: 10})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, mine)
	})

	t.Run("system message cannot be cited", func(t *testing.T) {
		f := newFixture()
		msgID := f.chats.addMessage(f.room, f.reported, "SCAM")
		f.chats.messages[msgID].SenderID = uuid.NullUUID{}

		in := f.input(ReasonScam)
		in.MessageID = uuid.NullUUID{UUID: msgID, Valid: true}
		_, err := f.svc.Submit(context.Background(), f.reporter, in)
		assert.ErrorIs(t, err, ErrMessageNotByReported)
	})

	t.Run("cooldown", func(t *testing.T) {
		f := newFixture()
		until := f.clock.Add(10 * time.Minute)
		ts := NewTrustScore(f.reporter, f.clock)
		ts.CooldownUntil = &until
		f.store.setTrust(*ts)

		_, err := f.svc.Submit(context.Background(), f.reporter, f.input(ReasonSpam))
		assert.ErrorIs(t, err, ErrReporterCooldown)
		assert.Equal(t, apperr.Cooldown, apperr.KindOf(err))
		ae, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, until.Format(time.RFC3339), ae.Meta["cooldown_until"])

		f.advance(10 * time.Minute)
		_, err = f.svc.Submit(context.Background(), f.reporter, f.input(ReasonSpam))
		assert.NoError(t, err)
	})

	t.Run("rate limit rolls back default trust row", func(t *testing.T) {
		f := newFixture()
		for i := 0; i < MaxReportsPerWindow; i++ {
			f.store.putReport(Report{
				ID:         uuid.New(),
				ChatID:     uuid.New(),
				ReporterID: f.reporter,
				ReportedID: uuid.New(),
				Reason:     ReasonSpam,
				Status:     StatusPending,
				CreatedAt:  f.clock.Add(-time.Duration(i+1) * time.Hour),
			})
		}

		_, err := f.svc.Submit(context.Background(), f.reporter, f.input(ReasonSpam))
		assert.ErrorIs(t, err, ErrReportRateLimit)
		assert.Equal(t, apperr.RateLimited, apperr.KindOf(err))
		_, ok := f.store.trustOf(f.reporter)
		assert.False(t, ok)
	})
}

func TestSubmitDuplicate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, f.reporter, f.input(ReasonSpam))
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, f.reporter, f.input(ReasonSpam))
	require.ErrorIs(t, err, ErrDuplicateReport)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, first.ReportID.String(), ae.Meta["existing_report_id"])

	// A different reason is a different report.
	_, err = f.svc.Submit(ctx, f.reporter, f.input(ReasonAbuse))
	assert.NoError(t, err)

	// A closed report no longer blocks resubmission.
	r := f.store.report(first.ReportID)
	r.Status = StatusClosed
	f.store.putReport(r)
	_, err = f.svc.Submit(ctx, f.reporter, f.input(ReasonSpam))
	assert.NoError(t, err)
}

func TestAppeal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.svc.Submit(ctx, f.reporter, f.input(ReasonSpam))
	require.NoError(t, err)

	_, err = f.svc.Appeal(ctx, res.ReportID, f.reported, "too short")
	assert.ErrorIs(t, err, ErrAppealReasonLength)

	_, err = f.svc.Appeal(ctx, res.ReportID, f.reporter, "I am appealing someone else's report")
	assert.ErrorIs(t, err, ErrNotReportedUser)

	_, err = f.svc.Appeal(ctx, uuid.New(), f.reported, "This report does not exist at all")
	assert.ErrorIs(t, err, ErrReportNotFound)

	report, err := f.svc.Appeal(ctx, res.ReportID, f.reported, "The message was a quote from the book we traded")
	require.NoError(t, err)
	assert.Equal(t, AppealPending, report.AppealStatus)
	assert.Equal(t, f.clock, report.AppealDate.Time)

	_, err = f.svc.Appeal(ctx, res.ReportID, f.reported, "Trying to appeal the same report twice")
	assert.ErrorIs(t, err, ErrAlreadyAppealed)

	assert.Contains(t, f.store.auditActions(), audit.ActionReportAppealed)
}

func autoResolvedReport(f *fixture, penalty int) Report {
	r := Report{
		ID:             uuid.New(),
		ChatID:         f.room,
		ReporterID:     f.reporter,
		ReportedID:     f.reported,
		Reason:         ReasonAbuse,
		AutoResolved:   true,
		Status:         StatusChecked,
		PenaltyApplied: penalty,
		AppealStatus:   AppealPending,
		AppealReason:   sql.NullString{String: "It was a misunderstanding about the return date", Valid: true},
		CreatedAt:      f.clock,
	}
	f.store.putReport(r)
	return r
}

func TestResolveAppealOverturned(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	admin := uuid.New()
	r := autoResolvedReport(f, 100)
	f.store.setBalance(f.reported, 20)

	resolved, err := f.svc.ResolveAppeal(ctx, admin, r.ID, true, "quoted text")
	require.NoError(t, err)

	assert.Equal(t, AppealResolved, resolved.AppealStatus)
	assert.Equal(t, string(AppealOverturned), resolved.AppealOutcome.String)
	assert.Equal(t, StatusClosed, resolved.Status)
	assert.True(t, resolved.AutoResolved, "auto_resolved never reverts")
	assert.Equal(t, 120, f.store.balance(f.reported))

	trust, ok := f.store.trustOf(f.reporter)
	require.True(t, ok)
	assert.Equal(t, 40.0, trust.TrustScore)
	assert.Equal(t, 1, trust.FalseReports)
	require.NotNil(t, trust.CooldownUntil)
	assert.Equal(t, f.clock.Add(FalseReportCooldown), *trust.CooldownUntil)

	assert.Equal(t, []notification.Category{notification.CategoryAppealResolved}, f.notifier.to(f.reported))
	assert.Equal(t, []notification.Category{notification.CategoryAppealResolved}, f.notifier.to(f.reporter))

	_, err = f.svc.ResolveAppeal(ctx, admin, r.ID, true, "again")
	assert.ErrorIs(t, err, ErrAppealNotPending)

	_, err = f.svc.Submit(ctx, f.reporter, f.input(ReasonSpam))
	assert.ErrorIs(t, err, ErrReporterCooldown)
}

func TestResolveAppealFlagsLowTrustReporter(t *testing.T) {
	f := newFixture()
	ts := NewTrustScore(f.reporter, f.clock)
	ts.TrustScore = 25
	f.store.setTrust(*ts)
	r := autoResolvedReport(f, 0)

	_, err := f.svc.ResolveAppeal(context.Background(), uuid.New(), r.ID, true, "")
	require.NoError(t, err)

	trust, _ := f.store.trustOf(f.reporter)
	assert.Equal(t, 15.0, trust.TrustScore)
	assert.True(t, trust.IsFlagged)
	assert.Empty(t, f.store.ledgerEntries(), "nothing to refund")
}

func TestResolveAppealUpheld(t *testing.T) {
	f := newFixture()
	r := autoResolvedReport(f, 100)
	f.store.setBalance(f.reported, 0)

	resolved, err := f.svc.ResolveAppeal(context.Background(), uuid.New(), r.ID, false, "")
	require.NoError(t, err)

	assert.Equal(t, string(AppealUpheld), resolved.AppealOutcome.String)
	assert.Equal(t, StatusChecked, resolved.Status)
	assert.Equal(t, 0, f.store.balance(f.reported))
	_, ok := f.store.trustOf(f.reporter)
	assert.False(t, ok)
}

func TestRefundPenaltyOnce(t *testing.T) {
	f := newFixture()
	r := autoResolvedReport(f, 50)
	ledger := &memLedger{s: f.store}

	n, err := RefundPenalty(context.Background(), ledger, &r)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	n, err = RefundPenalty(context.Background(), ledger, &r)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 50, f.store.balance(f.reported))
}

func TestApplyPenaltyTable(t *testing.T) {
	for reason, amount := range PenaltyTable {
		f := newFixture()
		f.store.setBalance(f.reported, 1000)
		p, err := ApplyPenalty(context.Background(), &memLedger{s: f.store}, f.reported, reason, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, amount, p.Nominal)
		assert.Equal(t, amount, p.Applied)
		assert.Equal(t, 1000-amount, f.store.balance(f.reported))
	}
}

func TestGetTrustScoreDefault(t *testing.T) {
	f := newFixture()
	ts, err := f.svc.GetTrustScore(context.Background(), f.reporter)
	require.NoError(t, err)
	assert.Equal(t, DefaultTrustScore, ts.TrustScore)
	assert.Equal(t, 0, ts.TotalReports)
}
