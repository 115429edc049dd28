package moderation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bookloop/bookloop-api/internal/domain/audit"
	"github.com/bookloop/bookloop-api/internal/domain/chat"
	"github.com/bookloop/bookloop-api/internal/domain/credit"
	"github.com/bookloop/bookloop-api/internal/domain/notification"
)

type ledgerEntry struct {
	userID     uuid.UUID
	txType     credit.TxType
	delta      int
	entityType string
	entityID   uuid.UUID
}

// memStore serializes transactions with one mutex and restores a snapshot on error.
type memStore struct {
	mu       sync.Mutex
	reports  map[uuid.UUID]Report
	signals  []StoredSignal
	trust    map[uuid.UUID]TrustScore
	balances map[uuid.UUID]int
	entries  []ledgerEntry
	audits   []audit.Entry
	locks    []string
}

func newMemStore() *memStore {
	return &memStore{
		reports:  map[uuid.UUID]Report{},
		trust:    map[uuid.UUID]TrustScore{},
		balances: map[uuid.UUID]int{},
	}
}

func (s *memStore) setBalance(userID uuid.UUID, amount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] = amount
}

func (s *memStore) balance(userID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID]
}

func (s *memStore) setTrust(t TrustScore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trust[t.UserID] = t
}

func (s *memStore) trustOf(userID uuid.UUID) (TrustScore, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trust[userID]
	return t, ok
}

func (s *memStore) report(id uuid.UUID) Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reports[id]
}

func (s *memStore) putReport(r Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = r
}

func (s *memStore) auditActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.audits))
	for i, a := range s.audits {
		out[i] = a.Action
	}
	return out
}

func (s *memStore) ledgerEntries() []ledgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledgerEntry(nil), s.entries...)
}

func (s *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapReports := make(map[uuid.UUID]Report, len(s.reports))
	for k, v := range s.reports {
		snapReports[k] = v
	}
	snapTrust := make(map[uuid.UUID]TrustScore, len(s.trust))
	for k, v := range s.trust {
		snapTrust[k] = v
	}
	snapBalances := make(map[uuid.UUID]int, len(s.balances))
	for k, v := range s.balances {
		snapBalances[k] = v
	}
	sigLen, entryLen, auditLen := len(s.signals), len(s.entries), len(s.audits)

	if err := fn(ctx, &memTx{s: s}); err != nil {
		s.reports, s.trust, s.balances = snapReports, snapTrust, snapBalances
		s.signals, s.entries, s.audits = s.signals[:sigLen], s.entries[:entryLen], s.audits[:auditLen]
		return err
	}
	return nil
}

func (s *memStore) GetReport(_ context.Context, id uuid.UUID) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	return &r, nil
}

func (s *memStore) ListSignals(_ context.Context, reportID uuid.UUID) ([]*StoredSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*StoredSignal, 0)
	for i := range s.signals {
		if s.signals[i].ReportID == reportID {
			sig := s.signals[i]
			out = append(out, &sig)
		}
	}
	return out, nil
}

func (s *memStore) list(match func(Report) bool, f ListFilter) ([]*Report, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*Report, 0)
	for _, r := range s.reports {
		if match(r) {
			r := r
			all = append(all, &r)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if f.Offset >= total {
		return []*Report{}, total, nil
	}
	end := f.Offset + f.Limit
	if f.Limit <= 0 || end > total {
		end = total
	}
	return all[f.Offset:end], total, nil
}

func (s *memStore) ListByReporter(_ context.Context, reporterID uuid.UUID, f ListFilter) ([]*Report, int, error) {
	return s.list(func(r Report) bool { return r.ReporterID == reporterID }, f)
}

func (s *memStore) ListByReported(_ context.Context, reportedID uuid.UUID, f ListFilter) ([]*Report, int, error) {
	return s.list(func(r Report) bool { return r.ReportedID == reportedID }, f)
}

func (s *memStore) ListPendingAppeals(_ context.Context, f ListFilter) ([]*Report, int, error) {
	return s.list(func(r Report) bool { return r.AppealStatus == AppealPending }, f)
}

func (s *memStore) GetTrustScore(_ context.Context, userID uuid.UUID) (*TrustScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trust[userID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// memTx runs with memStore.mu held.
type memTx struct {
	s *memStore
}

func (t *memTx) LockTrustScore(_ context.Context, userID uuid.UUID, now time.Time) (*TrustScore, error) {
	ts, ok := t.s.trust[userID]
	if !ok {
		ts = *NewTrustScore(userID, now)
		t.s.trust[userID] = ts
	}
	return &ts, nil
}

func (t *memTx) SaveTrustScore(_ context.Context, ts *TrustScore) error {
	t.s.trust[ts.UserID] = *ts
	return nil
}

func (t *memTx) LockSubmission(_ context.Context, key string) error {
	t.s.locks = append(t.s.locks, key)
	return nil
}

func (t *memTx) CountReportsBy(_ context.Context, reporterID uuid.UUID, since time.Time) (int, error) {
	n := 0
	for _, r := range t.s.reports {
		if r.ReporterID == reporterID && r.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) FindDuplicate(_ context.Context, key duplicateKey, since time.Time) (uuid.UUID, error) {
	for _, r := range t.s.reports {
		if r.ReporterID == key.ReporterID && r.ReportedID == key.ReportedID && r.ChatID == key.ChatID &&
			r.MessageID == key.MessageID && r.Reason == key.Reason &&
			r.CreatedAt.After(since) && r.Status != StatusClosed {
			return r.ID, nil
		}
	}
	return uuid.Nil, nil
}

func (t *memTx) HistoryAgainst(_ context.Context, reportedID uuid.UUID, since time.Time) (HistoryStats, error) {
	var h HistoryStats
	for _, r := range t.s.reports {
		if r.ReportedID == reportedID && r.CreatedAt.After(since) {
			h.Total++
			if r.AutoResolved {
				h.AutoResolved++
			}
		}
	}
	return h, nil
}

func (t *memTx) ClusterInChat(_ context.Context, reportedID, chatID uuid.UUID, since time.Time) (ClusterStats, error) {
	var c ClusterStats
	reporters := map[uuid.UUID]struct{}{}
	for _, r := range t.s.reports {
		if r.ReportedID == reportedID && r.ChatID == chatID && r.CreatedAt.After(since) {
			c.PriorReports++
			reporters[r.ReporterID] = struct{}{}
		}
	}
	c.DistinctReporters = len(reporters)
	return c, nil
}

func (t *memTx) CreateReport(_ context.Context, r *Report) error {
	t.s.reports[r.ID] = *r
	return nil
}

func (t *memTx) CreateSignals(_ context.Context, signals []*StoredSignal) error {
	for _, sig := range signals {
		t.s.signals = append(t.s.signals, *sig)
	}
	return nil
}

func (t *memTx) LockReport(_ context.Context, id uuid.UUID) (*Report, error) {
	r, ok := t.s.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	return &r, nil
}

func (t *memTx) UpdateReview(_ context.Context, r *Report) error {
	t.s.reports[r.ID] = *r
	return nil
}

func (t *memTx) Ledger() Ledger {
	return &memLedger{s: t.s}
}

func (t *memTx) Audit(_ context.Context, e *audit.Entry) error {
	t.s.audits = append(t.s.audits, *e)
	return nil
}

type memLedger struct {
	s *memStore
}

func (l *memLedger) Deduct(_ context.Context, userID uuid.UUID, amount int, meta credit.TxMeta) (credit.Balance, error) {
	old := l.s.balances[userID]
	next := old - amount
	if next < 0 {
		next = 0
	}
	l.s.balances[userID] = next
	l.s.entries = append(l.s.entries, ledgerEntry{userID, credit.TxTypePenalty, next - old, meta.RelatedEntityType, meta.RelatedEntityID})
	return credit.Balance{Old: old, New: next}, nil
}

func (l *memLedger) Add(_ context.Context, userID uuid.UUID, amount int, txType credit.TxType, meta credit.TxMeta) (credit.Balance, error) {
	old := l.s.balances[userID]
	l.s.balances[userID] = old + amount
	l.s.entries = append(l.s.entries, ledgerEntry{userID, txType, amount, meta.RelatedEntityType, meta.RelatedEntityID})
	return credit.Balance{Old: old, New: old + amount}, nil
}

func (l *memLedger) HasEntry(_ context.Context, txType credit.TxType, entityType string, entityID uuid.UUID) (bool, error) {
	for _, e := range l.s.entries {
		if e.txType == txType && e.entityType == entityType && e.entityID == entityID {
			return true, nil
		}
	}
	return false, nil
}

// fakeChats holds rooms with members and messages.
type fakeChats struct {
	members  map[uuid.UUID]map[uuid.UUID]bool
	messages map[uuid.UUID]*chat.Message
}

func newFakeChats() *fakeChats {
	return &fakeChats{
		members:  map[uuid.UUID]map[uuid.UUID]bool{},
		messages: map[uuid.UUID]*chat.Message{},
	}
}

func (c *fakeChats) addRoom(members ...uuid.UUID) uuid.UUID {
	id := uuid.New()
	c.members[id] = map[uuid.UUID]bool{}
	for _, m := range members {
		c.members[id][m] = true
	}
	return id
}

func (c *fakeChats) addMessage(roomID, senderID uuid.UUID, content string) uuid.UUID {
	msg := &chat.Message{
		ID:          uuid.New(),
		RoomID:      roomID,
		SenderID:    uuid.NullUUID{UUID: senderID, Valid: true},
		Content:     content,
		MessageType: chat.MessageTypeText,
	}
	c.messages[msg.ID] = msg
	return msg.ID
}

func (c *fakeChats) RequireMember(_ context.Context, chatID, userID uuid.UUID) error {
	members, ok := c.members[chatID]
	if !ok {
		return chat.ErrRoomNotFound
	}
	if !members[userID] {
		return chat.ErrNotRoomMember
	}
	return nil
}

func (c *fakeChats) MessageInChat(_ context.Context, chatID, messageID uuid.UUID) (*chat.Message, error) {
	msg, ok := c.messages[messageID]
	if !ok || msg.RoomID != chatID {
		return nil, chat.ErrMessageNotFound
	}
	return msg, nil
}

type sentNotice struct {
	userID   uuid.UUID
	category notification.Category
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
}

func (n *fakeNotifier) Notify(_ context.Context, userID uuid.UUID, _, _ string, category notification.Category, _ uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotice{userID: userID, category: category})
}

func (n *fakeNotifier) to(userID uuid.UUID) []notification.Category {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification.Category
	for _, s := range n.sent {
		if s.userID == userID {
			out = append(out, s.category)
		}
	}
	return out
}
