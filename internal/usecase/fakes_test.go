package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	domain "github.com/aq2208/payflow/internal/entity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- in-memory ports ---

type memOrders struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func newMemOrders(orders ...*domain.Order) *memOrders {
	m := &memOrders{orders: map[string]domain.Order{}}
	for _, o := range orders {
		m.orders[o.ID] = *o
	}
	return m
}

func (m *memOrders) Create(ctx context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return fmt.Errorf("order %s exists", o.ID)
	}
	m.orders[o.ID] = *o
	return nil
}

func (m *memOrders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	cp := o
	return &cp, nil
}

func (m *memOrders) ApplyTransition(ctx context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.orders[o.ID]
	if !ok {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, o.ID)
	}
	if cur.Version != o.Version {
		return domain.ErrVersionConflict
	}
	o.Version++
	o.UpdatedAt = time.Now()
	m.orders[o.ID] = *o
	return nil
}

func (m *memOrders) ListStaleByStatus(ctx context.Context, status domain.OrderStatus, cutoff time.Time, limit int) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.Status == status && o.UpdatedAt.Before(cutoff) && len(out) < limit {
			cp := o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memOrders) rewind(id string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	o.UpdatedAt = o.UpdatedAt.Add(-d)
	m.orders[id] = o
}

type memAttempts struct {
	mu       sync.Mutex
	attempts map[string]domain.PaymentAttempt
	seq      []string // insertion order stands in for created_at
}

func newMemAttempts(attempts ...*domain.PaymentAttempt) *memAttempts {
	m := &memAttempts{attempts: map[string]domain.PaymentAttempt{}}
	for _, a := range attempts {
		m.attempts[a.ID] = *a
		m.seq = append(m.seq, a.ID)
	}
	return m
}

func (m *memAttempts) Create(ctx context.Context, a *domain.PaymentAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[a.ID] = *a
	m.seq = append(m.seq, a.ID)
	return nil
}

func (m *memAttempts) GetLatestByOrder(ctx context.Context, orderID string) (*domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.seq) - 1; i >= 0; i-- {
		if a := m.attempts[m.seq[i]]; a.OrderID == orderID {
			cp := a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memAttempts) GetActiveByOrder(ctx context.Context, orderID string) (*domain.PaymentAttempt, error) {
	return m.find(func(a domain.PaymentAttempt) bool {
		return a.OrderID == orderID && !a.Status.Final()
	})
}

func (m *memAttempts) GetApprovedByOrder(ctx context.Context, orderID string) (*domain.PaymentAttempt, error) {
	return m.find(func(a domain.PaymentAttempt) bool {
		return a.OrderID == orderID && a.Status == domain.AttemptApproved
	})
}

func (m *memAttempts) GetByExternalRef(ctx context.Context, gw domain.GatewayKind, ref string) (*domain.PaymentAttempt, error) {
	return m.find(func(a domain.PaymentAttempt) bool {
		return a.Gateway == gw && a.ExternalRef == ref
	})
}

func (m *memAttempts) find(match func(domain.PaymentAttempt) bool) (*domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if match(a) {
			cp := a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memAttempts) UpdateStatusIf(ctx context.Context, id string, from, to domain.AttemptStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	m.attempts[id] = a
	return true, nil
}

type memWebhooks struct {
	mu   sync.Mutex
	rows map[string]domain.WebhookEvent
}

func newMemWebhooks() *memWebhooks {
	return &memWebhooks{rows: map[string]domain.WebhookEvent{}}
}

func (m *memWebhooks) Insert(ctx context.Context, ev *domain.WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(ev.Gateway) + "|" + ev.EventID
	if _, ok := m.rows[key]; ok {
		return domain.ErrDuplicateWebhook
	}
	m.rows[key] = *ev
	return nil
}

func (m *memWebhooks) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memSplits struct {
	mu   sync.Mutex
	rows []domain.CommissionSplit
}

func (m *memSplits) CreateAll(ctx context.Context, splits []domain.CommissionSplit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range splits {
		for _, have := range m.rows {
			if have.OrderID == s.OrderID && have.SellerID == s.SellerID && have.Entry == s.Entry {
				return domain.ErrSettlementExists
			}
		}
	}
	m.rows = append(m.rows, splits...)
	return nil
}

func (m *memSplits) ListByOrder(ctx context.Context, orderID string) ([]domain.CommissionSplit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CommissionSplit
	for _, s := range m.rows {
		if s.OrderID == orderID {
			out = append(out, s)
		}
	}
	return out, nil
}

type memIdem struct {
	mu   sync.Mutex
	vals map[string]string
}

func newMemIdem() *memIdem { return &memIdem{vals: map[string]string{}} }

func (m *memIdem) TryLock(ctx context.Context, scope, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := scope + "|" + key
	if _, ok := m.vals[k]; ok {
		return false, nil
	}
	m.vals[k] = ""
	return true, nil
}

func (m *memIdem) Remember(ctx context.Context, scope, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[scope+"|"+key] = value
	return nil
}

func (m *memIdem) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[scope+"|"+key]
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

type keyLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLocker() *keyLocker { return &keyLocker{locks: map[string]*sync.Mutex{}} }

func (l *keyLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock, nil
}

type memCache struct {
	mu   sync.Mutex
	vals map[string]string
}

func newMemCache() *memCache { return &memCache{vals: map[string]string{}} }

func (m *memCache) SetStatus(ctx context.Context, orderID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[orderID] = status
	return nil
}

func (m *memCache) GetStatus(ctx context.Context, orderID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[orderID]
	return v, ok, nil
}

type capturePublisher struct {
	mu         sync.Mutex
	requested  []SettlementRequestedMsg
	recorded   []SettlementRecordedMsg
	requestErr error // when set, PublishSettlementRequested fails
}

func (p *capturePublisher) PublishSettlementRequested(ctx context.Context, msg SettlementRequestedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.requestErr != nil {
		return p.requestErr
	}
	p.requested = append(p.requested, msg)
	return nil
}

func (p *capturePublisher) setRequestErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requestErr = err
}

func (p *capturePublisher) PublishSettlementRecorded(ctx context.Context, msg SettlementRecordedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recorded = append(p.recorded, msg)
	return nil
}

func (p *capturePublisher) requestedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requested)
}

// --- fake gateway + router ---

type fakeNotice struct {
	EventID string `json:"event_id"`
	Ref     string `json:"ref"`
	Status  string `json:"status"`
}

// fakeGateway accepts signature "good" and the fakeNotice wire format.
type fakeGateway struct {
	kind     domain.GatewayKind
	initiate func(req InitiateRequest) (InitiateResult, error)
	statuses map[string]domain.AttemptStatus
	calls    int
	callsMu  sync.Mutex
}

func (g *fakeGateway) Name() domain.GatewayKind { return g.kind }

func (g *fakeGateway) Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	g.callsMu.Lock()
	g.calls++
	g.callsMu.Unlock()
	if g.initiate != nil {
		return g.initiate(req)
	}
	return InitiateResult{ExternalRef: "ref-" + req.OrderID, Status: domain.AttemptPending}, nil
}

func (g *fakeGateway) QueryStatus(ctx context.Context, ref string) (domain.AttemptStatus, error) {
	if st, ok := g.statuses[ref]; ok {
		return st, nil
	}
	return domain.AttemptDeclined, nil
}

func (g *fakeGateway) VerifySignature(payload []byte, signature string) bool {
	return signature == "good"
}

func (g *fakeGateway) ParseWebhook(payload []byte) (domain.WebhookNotice, error) {
	var n fakeNotice
	if err := json.Unmarshal(payload, &n); err != nil {
		return domain.WebhookNotice{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if n.EventID == "" || n.Ref == "" {
		return domain.WebhookNotice{}, fmt.Errorf("%w: missing identifiers", domain.ErrValidation)
	}
	return domain.WebhookNotice{
		EventID:     n.EventID,
		ExternalRef: n.Ref,
		Status:      domain.AttemptStatus(n.Status),
	}, nil
}

type fakeRouter struct {
	gateways map[domain.GatewayKind]Gateway
}

func newFakeRouter(gws ...Gateway) *fakeRouter {
	r := &fakeRouter{gateways: map[domain.GatewayKind]Gateway{}}
	for _, g := range gws {
		r.gateways[g.Name()] = g
	}
	return r
}

func (r *fakeRouter) Dispatch(ctx context.Context, req InitiateRequest) (domain.GatewayKind, InitiateResult, error) {
	for kind, g := range r.gateways {
		res, err := g.Initiate(ctx, req)
		return kind, res, err
	}
	return "", InitiateResult{}, domain.ErrGatewayUnavailable
}

func (r *fakeRouter) ByName(kind domain.GatewayKind) (Gateway, bool) {
	g, ok := r.gateways[kind]
	return g, ok
}

func (r *fakeRouter) QueryStatus(ctx context.Context, kind domain.GatewayKind, ref string) (domain.AttemptStatus, error) {
	g, ok := r.gateways[kind]
	if !ok {
		return "", domain.ErrValidation
	}
	return g.QueryStatus(ctx, ref)
}
