// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-channel-subscription/internal/domain"
	"telegram-channel-subscription/internal/domain/model"
	"telegram-channel-subscription/internal/domain/ports/adapter"
	"telegram-channel-subscription/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// memPaymentRepo is a small in-memory implementation used by unit tests.
type memPaymentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Payment

	invoiceSeq int64

	// test hooks to simulate failures
	findErr   error
	updateErr error
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: make(map[string]*model.Payment)}
}

func (m *memPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) MarkSucceeded(ctx context.Context, tx repository.Tx, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if p.Status == model.PaymentStatusSucceeded {
		return p.InvoiceNumber, nil
	}
	if p.Status != model.PaymentStatusPending {
		return 0, domain.ErrInvalidArgument
	}
	m.invoiceSeq++
	now := time.Now()
	p.Status = model.PaymentStatusSucceeded
	p.InvoiceNumber = m.invoiceSeq
	p.PaidAt = &now
	p.UpdatedAt = now
	return p.InvoiceNumber, nil
}

func (m *memPaymentRepo) UpdateDeliveryState(ctx context.Context, tx repository.Tx, id string, ds model.DeliveryState) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Delivery = ds
	p.UpdatedAt = time.Now()
	return nil
}

func (m *memPaymentRepo) FindUndelivered(ctx context.Context, tx repository.Tx, staleBefore time.Time, limit int) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.Status != model.PaymentStatusSucceeded {
			continue
		}
		stale := p.UpdatedAt.Before(staleBefore) && !p.Delivery.LinkDelivered
		if !p.Delivery.LinkDelivered || p.Delivery.Status == model.DeliveryStatusFailed || stale {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPaymentRepo) ListPendingLinkByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.UserID == userID && p.Status == model.PaymentStatusSucceeded && p.Delivery.Status == model.DeliveryStatusPendingLink {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memPaymentRepo) ListFailedDeliveries(ctx context.Context, tx repository.Tx, limit int) ([]*model.FailedDelivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.FailedDelivery
	for _, p := range m.store {
		if p.Status != model.PaymentStatusSucceeded || p.Delivery.LinkDelivered {
			continue
		}
		out = append(out, &model.FailedDelivery{
			PaymentID:     p.ID,
			InvoiceNumber: p.InvoiceNumber,
			Amount:        p.Amount,
			Currency:      p.Currency,
			Status:        p.Delivery.Status,
			Attempts:      p.Delivery.Attempts,
			FailureReason: p.Delivery.FailureReason,
			LastAttemptAt: p.Delivery.LastAttemptAt,
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPaymentRepo) DeliveryStats(ctx context.Context, tx repository.Tx) (*model.DeliveryStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := &model.DeliveryStats{}
	for _, p := range m.store {
		if p.Status != model.PaymentStatusSucceeded {
			continue
		}
		st.TotalSucceeded++
		if p.Delivery.LinkDelivered {
			st.Delivered++
			if p.Delivery.RecoveryCompleted {
				st.Recovered++
			}
		}
		switch p.Delivery.Status {
		case model.DeliveryStatusFailed:
			st.Failed++
		case model.DeliveryStatusPendingLink:
			st.PendingLink++
		}
	}
	return st, nil
}

var _ repository.PaymentRepository = (*memPaymentRepo)(nil)

type memUserRepo struct {
	mu    sync.RWMutex
	store map[string]*model.User

	findErr error // simulates a lookup fault
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{store: make(map[string]*model.User)}
}

func (m *memUserRepo) Save(ctx context.Context, tx repository.Tx, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.store[user.ID] = &cp
	return nil
}

func (m *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.store {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, telegramID int64) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.store {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) SetTelegramID(ctx context.Context, tx repository.Tx, userID string, telegramID int64, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return domain.ErrNotFound
	}
	return u.LinkTelegram(telegramID, username)
}

var _ repository.UserRepository = (*memUserRepo)(nil)

type memPlanRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Plan
}

func newMemPlanRepo() *memPlanRepo {
	return &memPlanRepo{store: make(map[string]*model.Plan)}
}

func (m *memPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *plan
	m.store[plan.ID] = &cp
	return nil
}

func (m *memPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Plan, 0, len(m.store))
	for _, p := range m.store {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

var _ repository.PlanRepository = (*memPlanRepo)(nil)

type memDeliveryLogRepo struct {
	mu       sync.Mutex
	attempts []*model.DeliveryAttempt
}

func newMemDeliveryLogRepo() *memDeliveryLogRepo { return &memDeliveryLogRepo{} }

func (m *memDeliveryLogRepo) Append(ctx context.Context, tx repository.Tx, a *model.DeliveryAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.attempts = append(m.attempts, &cp)
	return nil
}

func (m *memDeliveryLogRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID string) ([]*model.DeliveryAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.DeliveryAttempt
	for _, a := range m.attempts {
		if a.PaymentID == paymentID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

var _ repository.DeliveryLogRepository = (*memDeliveryLogRepo)(nil)

// fakeBot is a scripted TelegramBotAdapter. Each send consumes the next
// scripted outcome; once the script runs out, sends succeed.
type fakeBot struct {
	mu     sync.Mutex
	script []error // nil entry = success, errPanic entry = panic
	calls  int
	sent   []string // texts of successful sends
	chats  []int64
}

// errPanic in a fakeBot script makes that SendMessage call panic.
var errPanic = domain.NewDeliveryError(domain.FailureTransient, "scripted panic", nil)

func (b *fakeBot) SendMessage(ctx context.Context, telegramID int64, text string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	var next error
	if len(b.script) > 0 {
		next = b.script[0]
		b.script = b.script[1:]
	}
	if next == errPanic {
		panic("bot adapter fault")
	}
	if next != nil {
		return 0, next
	}
	b.sent = append(b.sent, text)
	b.chats = append(b.chats, telegramID)
	return b.calls, nil
}

func (b *fakeBot) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

var _ adapter.TelegramBotAdapter = (*fakeBot)(nil)

type notice struct {
	title    string
	severity adapter.Severity
	data     map[string]string
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notice
	panics  bool
}

func (n *fakeNotifier) Notify(ctx context.Context, title, message string, severity adapter.Severity, data map[string]string) {
	if n.panics {
		panic("notifier down")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{title: title, severity: severity, data: data})
}

var _ adapter.AdminNotifier = (*fakeNotifier)(nil)

// fakeLocker hands out the lease unless held is set.
type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	locks    int
	unlocks  int
	lastKey  string
	lastTTL  time.Duration
	unlockEr error
}

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return "", domain.ErrSweepInProgress
	}
	l.locks++
	l.lastKey = key
	l.lastTTL = ttl
	return "tok-1", nil
}

func (l *fakeLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unlocks++
	return l.unlockEr
}

var _ Locker = (*fakeLocker)(nil)

// fakeTxManager runs the function inline without a database.
type fakeTxManager struct{ calls int }

func (m *fakeTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.calls++
	return fn(ctx, repository.NoTX)
}

var _ repository.TransactionManager = (*fakeTxManager)(nil)

// recoveryDeps bundles the fakes behind one recovery engine under test. The
// engine's sleep is replaced with a recorder so backoff schedules can be
// asserted without waiting them out.
type recoveryDeps struct {
	payments *memPaymentRepo
	users    *memUserRepo
	plans    *memPlanRepo
	logRepo  *memDeliveryLogRepo
	bot      *fakeBot
	notifier *fakeNotifier

	mu     sync.Mutex
	slept  []time.Duration
	cancel func() // optional; set by tests that need sleep to cancel ctx
}

func (d *recoveryDeps) sleeps() []time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]time.Duration, len(d.slept))
	copy(out, d.slept)
	return out
}

func newRecoveryDeps() *recoveryDeps {
	return &recoveryDeps{
		payments: newMemPaymentRepo(),
		users:    newMemUserRepo(),
		plans:    newMemPlanRepo(),
		logRepo:  newMemDeliveryLogRepo(),
		bot:      &fakeBot{},
		notifier: &fakeNotifier{},
	}
}

func (d *recoveryDeps) newUC(locker Locker, opts RecoveryOptions) *recoveryUC {
	uc := NewRecoveryUseCase(d.payments, d.users, d.plans, d.logRepo, d.bot, d.notifier, locker, opts, time.Second, newTestLogger())
	uc.sleep = func(ctx context.Context, dur time.Duration) {
		d.mu.Lock()
		d.slept = append(d.slept, dur)
		d.mu.Unlock()
		if d.cancel != nil {
			d.cancel()
		}
	}
	return uc
}

// seed helpers

func (d *recoveryDeps) seedUser(ctx context.Context, id string, tgID int64) *model.User {
	u := &model.User{ID: id, Email: id + "@example.com", FullName: "Buyer " + id, RegisteredAt: time.Now()}
	if tgID > 0 {
		_ = u.LinkTelegram(tgID, "tg_"+id)
	}
	_ = d.users.Save(ctx, nil, u)
	return u
}

func (d *recoveryDeps) seedPlan(ctx context.Context, id string, links ...string) *model.Plan {
	chans := make([]model.Channel, 0, len(links))
	for i, l := range links {
		chans = append(chans, model.Channel{ID: id + "-ch", Title: "Channel", InviteLink: l, Position: i})
	}
	p := &model.Plan{ID: id, Name: "Plan " + id, DurationDays: 30, PriceIRR: 500000, Channels: chans, CreatedAt: time.Now()}
	_ = d.plans.Save(ctx, nil, p)
	return p
}

func (d *recoveryDeps) seedPayment(ctx context.Context, id, userID, planID string, status model.PaymentStatus) *model.Payment {
	now := time.Now()
	p := &model.Payment{
		ID: id, UserID: userID, PlanID: planID,
		Amount: 500000, Currency: "IRR",
		Status: status, CreatedAt: now, UpdatedAt: now,
	}
	if status == model.PaymentStatusSucceeded {
		p.PaidAt = &now
		p.InvoiceNumber = 1000
	}
	_ = d.payments.Save(ctx, nil, p)
	return p
}
