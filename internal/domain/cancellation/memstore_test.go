package cancellation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bookloop/bookloop-api/internal/domain/audit"
	"github.com/bookloop/bookloop-api/internal/domain/chat"
	"github.com/bookloop/bookloop-api/internal/domain/notification"
	"github.com/bookloop/bookloop-api/internal/domain/transaction"
)

type book struct {
	available bool
}

// memStore serializes transactions with one mutex and restores a snapshot on error.
type memStore struct {
	mu           sync.Mutex
	transactions map[uuid.UUID]transaction.Transaction
	books        map[uuid.UUID]book
	requests     map[uuid.UUID]Request
	history      []History
	audits       []audit.Entry
}

func newMemStore() *memStore {
	return &memStore{
		transactions: map[uuid.UUID]transaction.Transaction{},
		books:        map[uuid.UUID]book{},
		requests:     map[uuid.UUID]Request{},
	}
}

func (s *memStore) addTransaction(status transaction.Status, minimumCredits int) transaction.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := transaction.Transaction{
		ID:             uuid.New(),
		BookID:         uuid.New(),
		BorrowerID:     uuid.New(),
		LenderID:       uuid.New(),
		Status:         status,
		ChatID:         uuid.NullUUID{UUID: uuid.New(), Valid: true},
		MinimumCredits: minimumCredits,
		BookTitle:      "The Left Hand of Darkness",
	}
	s.transactions[t.ID] = t
	s.books[t.BookID] = book{available: false}
	return t
}

func (s *memStore) transaction(id uuid.UUID) transaction.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions[id]
}

func (s *memStore) bookAvailable(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.books[id].available
}

func (s *memStore) request(id uuid.UUID) Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id]
}

func (s *memStore) setExpiresAt(id uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.requests[id]
	r.ExpiresAt = at
	s.requests[id] = r
}

func (s *memStore) historyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

func (s *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapTx := make(map[uuid.UUID]transaction.Transaction, len(s.transactions))
	for k, v := range s.transactions {
		snapTx[k] = v
	}
	snapBooks := make(map[uuid.UUID]book, len(s.books))
	for k, v := range s.books {
		snapBooks[k] = v
	}
	snapReq := make(map[uuid.UUID]Request, len(s.requests))
	for k, v := range s.requests {
		snapReq[k] = v
	}
	histLen, auditLen := len(s.history), len(s.audits)

	if err := fn(ctx, &memTx{s: s}); err != nil {
		s.transactions, s.books, s.requests = snapTx, snapBooks, snapReq
		s.history, s.audits = s.history[:histLen], s.audits[:auditLen]
		return err
	}
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, ErrCancellationNotFound
	}
	return &r, nil
}

func (s *memStore) GetLatestByTransaction(_ context.Context, transactionID uuid.UUID) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *Request
	for _, r := range s.requests {
		if r.TransactionID != transactionID {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			cp := r
			latest = &cp
		}
	}
	if latest == nil {
		return nil, ErrCancellationNotFound
	}
	return latest, nil
}

func (s *memStore) ListHistory(_ context.Context, cancellationID uuid.UUID) ([]*History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*History, 0)
	for i := range s.history {
		if s.history[i].CancellationID == cancellationID {
			h := s.history[i]
			out = append(out, &h)
		}
	}
	return out, nil
}

func (s *memStore) GetTransaction(_ context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return nil, transaction.ErrTransactionNotFound
	}
	return &t, nil
}

// memTx runs with memStore.mu held.
type memTx struct {
	s *memStore
}

func (t *memTx) LockTransaction(_ context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	tr, ok := t.s.transactions[id]
	if !ok {
		return nil, transaction.ErrTransactionNotFound
	}
	return &tr, nil
}

func (t *memTx) SetTransactionStatus(_ context.Context, id uuid.UUID, status transaction.Status) error {
	tr, ok := t.s.transactions[id]
	if !ok {
		return transaction.ErrTransactionNotFound
	}
	tr.Status = status
	t.s.transactions[id] = tr
	return nil
}

func (t *memTx) SetBookAvailable(_ context.Context, bookID uuid.UUID, available bool) error {
	t.s.books[bookID] = book{available: available}
	return nil
}

func (t *memTx) HasActiveRequest(_ context.Context, transactionID uuid.UUID) (bool, error) {
	for _, r := range t.s.requests {
		if r.TransactionID == transactionID && (r.Status == StatusPending || r.Status == StatusConsented) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) CreateRequest(ctx context.Context, r *Request) error {
	if active, _ := t.HasActiveRequest(ctx, r.TransactionID); active {
		return ErrActiveRequestExists
	}
	t.s.requests[r.ID] = *r
	return nil
}

func (t *memTx) LockRequest(_ context.Context, id uuid.UUID) (*Request, error) {
	r, ok := t.s.requests[id]
	if !ok {
		return nil, ErrCancellationNotFound
	}
	return &r, nil
}

func (t *memTx) LockExpired(_ context.Context, now time.Time, limit int) ([]*Request, error) {
	out := make([]*Request, 0)
	for _, r := range t.s.requests {
		if r.Status == StatusPending && r.ExpiresAt.Before(now) {
			cp := r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memTx) MarkAnswered(_ context.Context, id uuid.UUID, consent bool, status Status, at time.Time, auto bool) (bool, error) {
	r, ok := t.s.requests[id]
	if !ok || r.Status != StatusPending {
		return false, nil
	}
	r.OtherConfirmed = &consent
	r.Status = status
	r.OtherResponseDate = &at
	r.AutoResolved = auto
	t.s.requests[id] = r
	return true, nil
}

func (t *memTx) MarkExpired(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r, ok := t.s.requests[id]
	if !ok || r.Status != StatusPending {
		return false, nil
	}
	r.Status = StatusExpired
	r.AutoResolved = true
	r.ProcessedAt = &at
	t.s.requests[id] = r
	return true, nil
}

func (t *memTx) MarkProcessed(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r, ok := t.s.requests[id]
	if !ok || r.Status != StatusConsented {
		return false, nil
	}
	r.Status = StatusProcessed
	r.ProcessedAt = &at
	t.s.requests[id] = r
	return true, nil
}

func (t *memTx) AppendHistory(_ context.Context, h *History) error {
	t.s.history = append(t.s.history, *h)
	return nil
}

func (t *memTx) Audit(_ context.Context, e *audit.Entry) error {
	t.s.audits = append(t.s.audits, *e)
	return nil
}

type postedMessage struct {
	chatID   uuid.UUID
	senderID uuid.UUID
	payload  chat.SystemPayload
}

type fakeTransport struct {
	mu        sync.Mutex
	posted    []postedMessage
	broadcast int
	postErr   error
}

func (f *fakeTransport) PostSystemMessage(_ context.Context, chatID, senderID uuid.UUID, p chat.SystemPayload) (*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return nil, f.postErr
	}
	f.posted = append(f.posted, postedMessage{chatID: chatID, senderID: senderID, payload: p})
	return &chat.Message{ID: uuid.New(), RoomID: chatID, MessageType: chat.MessageTypeSystem}, nil
}

func (f *fakeTransport) Broadcast(context.Context, uuid.UUID, *chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcast++
	return nil
}

func (f *fakeTransport) types() []chat.SystemType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]chat.SystemType, len(f.posted))
	for i, p := range f.posted {
		out[i] = p.payload.SystemType()
	}
	return out
}

type sentNotice struct {
	userID   uuid.UUID
	category notification.Category
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
}

func (f *fakeNotifier) Notify(_ context.Context, userID uuid.UUID, _, _ string, category notification.Category, _ uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotice{userID: userID, category: category})
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}
