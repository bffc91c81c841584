package billing

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/shared"
)

// in-memory fakes shared by the service tests in this package

type fakeTM struct{}

func (fakeTM) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memProjects struct {
	mu sync.Mutex
	m  map[uuid.UUID]*billing.BillingProject
}

func newMemProjects() *memProjects {
	return &memProjects{m: make(map[uuid.UUID]*billing.BillingProject)}
}

func (r *memProjects) Save(_ context.Context, p *billing.BillingProject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[p.ID] = p
	return nil
}

func (r *memProjects) FindByID(_ context.Context, id uuid.UUID) (*billing.BillingProject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.m[id]; ok {
		return p, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memProjects) FindByTenant(_ context.Context, tenantID string) (*billing.BillingProject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.m {
		if p.TenantID == tenantID {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memProjects) GetOrCreateByTenant(ctx context.Context, tenantID string) (*billing.BillingProject, error) {
	if p, err := r.FindByTenant(ctx, tenantID); err == nil {
		return p, nil
	}
	p, err := billing.NewBillingProject(tenantID)
	if err != nil {
		return nil, err
	}
	return p, r.Save(ctx, p)
}

func (r *memProjects) List(_ context.Context) ([]*billing.BillingProject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*billing.BillingProject, 0, len(r.m))
	for _, p := range r.m {
		out = append(out, p)
	}
	return out, nil
}

func (r *memProjects) DeleteAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m = make(map[uuid.UUID]*billing.BillingProject)
	return nil
}

type memInvoices struct {
	mu sync.Mutex
	m  map[uuid.UUID]*billing.Invoice
}

func newMemInvoices() *memInvoices {
	return &memInvoices{m: make(map[uuid.UUID]*billing.Invoice)}
}

func (r *memInvoices) Create(_ context.Context, inv *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[inv.ID] = inv
	return nil
}

func (r *memInvoices) Save(ctx context.Context, inv *billing.Invoice) error {
	return r.Create(ctx, inv)
}

func (r *memInvoices) FindByID(_ context.Context, id uuid.UUID) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv, ok := r.m[id]; ok {
		return inv, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memInvoices) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	return r.FindByID(ctx, id)
}

func (r *memInvoices) FindInProgressByProject(_ context.Context, projectID uuid.UUID) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.m {
		if inv.ProjectID == projectID && inv.IsInProgress() {
			return inv, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memInvoices) FindOldestUnpaidByProject(_ context.Context, projectID uuid.UUID) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *billing.Invoice
	for _, inv := range r.m {
		if inv.ProjectID != projectID || !inv.IsUnpaid() {
			continue
		}
		if oldest == nil || inv.StartDate.Before(oldest.StartDate) {
			oldest = inv
		}
	}
	if oldest == nil {
		return nil, shared.ErrNotFound
	}
	return oldest, nil
}

func (r *memInvoices) FindIDsInState(_ context.Context, state billing.InvoiceState) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for _, inv := range r.m {
		if inv.State == state {
			ids = append(ids, inv.ID)
		}
	}
	return ids, nil
}

func (r *memInvoices) ListByProject(_ context.Context, projectID uuid.UUID) ([]*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*billing.Invoice
	for _, inv := range r.m {
		if inv.ProjectID == projectID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (r *memInvoices) List(_ context.Context) ([]*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*billing.Invoice, 0, len(r.m))
	for _, inv := range r.m {
		out = append(out, inv)
	}
	return out, nil
}

type memComponents struct {
	mu       sync.Mutex
	m        map[uuid.UUID]*billing.UsageComponent
	invoices *memInvoices
}

func newMemComponents(invoices *memInvoices) *memComponents {
	return &memComponents{m: make(map[uuid.UUID]*billing.UsageComponent), invoices: invoices}
}

func (r *memComponents) Create(_ context.Context, c *billing.UsageComponent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[c.ID] = c
	return nil
}

func (r *memComponents) Save(ctx context.Context, c *billing.UsageComponent) error {
	return r.Create(ctx, c)
}

func (r *memComponents) FindByID(_ context.Context, id uuid.UUID) (*billing.UsageComponent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.m[id]; ok {
		return c, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memComponents) ListByInvoice(_ context.Context, invoiceID uuid.UUID) ([]*billing.UsageComponent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*billing.UsageComponent
	for _, c := range r.m {
		if c.InvoiceID == invoiceID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memComponents) ListByInvoiceAndKind(ctx context.Context, invoiceID uuid.UUID, kind billing.ResourceKind) ([]*billing.UsageComponent, error) {
	all, err := r.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	var out []*billing.UsageComponent
	for _, c := range all {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memComponents) FindActiveByResource(_ context.Context, kind billing.ResourceKind, resourceID string) (*billing.UsageComponent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.m {
		if c.Kind == kind && c.ResourceID == resourceID && c.IsActive() {
			return c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memComponents) CountByKind(_ context.Context, kind billing.ResourceKind, activeOnly bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.m {
		if c.Kind != kind || (activeOnly && !c.IsActive()) {
			continue
		}
		if r.onInProgressInvoice(c) {
			n++
		}
	}
	return n, nil
}

func (r *memComponents) CostByKind(_ context.Context, kind billing.ResourceKind, activeOnly bool) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum float64
	for _, c := range r.m {
		if c.Kind != kind || (activeOnly && !c.IsActive()) {
			continue
		}
		if r.onInProgressInvoice(c) {
			sum += c.PriceCharged.Float64()
		}
	}
	return sum, nil
}

func (r *memComponents) onInProgressInvoice(c *billing.UsageComponent) bool {
	inv, ok := r.invoices.m[c.InvoiceID]
	return ok && inv.IsInProgress()
}

type memBalances struct {
	mu sync.Mutex
	m  map[uuid.UUID]*billing.Balance
}

func newMemBalances() *memBalances {
	return &memBalances{m: make(map[uuid.UUID]*billing.Balance)}
}

func (r *memBalances) Save(_ context.Context, b *billing.Balance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[b.ProjectID] = b
	return nil
}

func (r *memBalances) FindByProject(_ context.Context, projectID uuid.UUID) (*billing.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.m[projectID]; ok {
		return b, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memBalances) FindByProjectForUpdate(ctx context.Context, projectID uuid.UUID) (*billing.Balance, error) {
	return r.FindByProject(ctx, projectID)
}

func (r *memBalances) GetOrCreateByProject(ctx context.Context, projectID uuid.UUID) (*billing.Balance, error) {
	if b, err := r.FindByProject(ctx, projectID); err == nil {
		return b, nil
	}
	b := billing.NewBalance(projectID)
	return b, r.Save(ctx, b)
}

func (r *memBalances) List(_ context.Context) ([]*billing.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*billing.Balance, 0, len(r.m))
	for _, b := range r.m {
		out = append(out, b)
	}
	return out, nil
}

type memTransactions struct {
	mu sync.Mutex
	l  []*billing.BalanceTransaction
}

func (r *memTransactions) Create(_ context.Context, t *billing.BalanceTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.l = append(r.l, t)
	return nil
}

func (r *memTransactions) ListByBalance(_ context.Context, balanceID uuid.UUID) ([]*billing.BalanceTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*billing.BalanceTransaction
	for _, t := range r.l {
		if t.BalanceID == balanceID {
			out = append(out, t)
		}
	}
	return out, nil
}

type memSettings struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemSettings() *memSettings {
	return &memSettings{m: make(map[string]string)}
}

func (r *memSettings) Get(_ context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.m[key]; ok {
		return v, nil
	}
	return "", shared.ErrNotFound
}

func (r *memSettings) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[key] = value
	return nil
}

func (r *memSettings) All(_ context.Context) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.m))
	for k, v := range r.m {
		out[k] = v
	}
	return out, nil
}

type memPrices struct {
	mu sync.Mutex
	m  map[uuid.UUID]*billing.PriceEntry
}

func newMemPrices() *memPrices {
	return &memPrices{m: make(map[uuid.UUID]*billing.PriceEntry)}
}

func (r *memPrices) Upsert(_ context.Context, e *billing.PriceEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.m {
		if existing.Kind == e.Kind && existing.Key == e.Key {
			delete(r.m, id)
		}
	}
	r.m[e.ID] = e
	return nil
}

func (r *memPrices) FindByKindKey(_ context.Context, kind billing.ResourceKind, key string) (*billing.PriceEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.m {
		if e.Kind == kind && e.Key == key {
			return e, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memPrices) ListByKind(_ context.Context, kind billing.ResourceKind) ([]*billing.PriceEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*billing.PriceEntry
	for _, e := range r.m {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memPrices) List(_ context.Context) ([]*billing.PriceEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*billing.PriceEntry, 0, len(r.m))
	for _, e := range r.m {
		out = append(out, e)
	}
	return out, nil
}

func (r *memPrices) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, id)
	return nil
}

func (r *memPrices) DeleteAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m = make(map[uuid.UUID]*billing.PriceEntry)
	return nil
}

type memNotifications struct {
	mu sync.Mutex
	m  map[uuid.UUID]*billing.Notification
}

func newMemNotifications() *memNotifications {
	return &memNotifications{m: make(map[uuid.UUID]*billing.Notification)}
}

func (r *memNotifications) Create(_ context.Context, n *billing.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[n.ID] = n
	return nil
}

func (r *memNotifications) Save(ctx context.Context, n *billing.Notification) error {
	return r.Create(ctx, n)
}

func (r *memNotifications) FindByID(_ context.Context, id uuid.UUID) (*billing.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.m[id]; ok {
		return n, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memNotifications) ListByProject(_ context.Context, projectID uuid.UUID) ([]*billing.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*billing.Notification
	for _, n := range r.m {
		if n.ProjectID != nil && *n.ProjectID == projectID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *memNotifications) List(_ context.Context) ([]*billing.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*billing.Notification, 0, len(r.m))
	for _, n := range r.m {
		out = append(out, n)
	}
	return out, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*billing.Notification
	err  error
}

func (f *recordingNotifier) Send(_ context.Context, n *billing.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

var (
	_ billing.ProjectRepository            = (*memProjects)(nil)
	_ billing.InvoiceRepository            = (*memInvoices)(nil)
	_ billing.ComponentRepository          = (*memComponents)(nil)
	_ billing.BalanceRepository            = (*memBalances)(nil)
	_ billing.BalanceTransactionRepository = (*memTransactions)(nil)
	_ billing.SettingsStore                = (*memSettings)(nil)
	_ billing.PriceRepository              = (*memPrices)(nil)
	_ billing.NotificationRepository       = (*memNotifications)(nil)
	_ billing.Notifier                     = (*recordingNotifier)(nil)
	_ billing.TransactionManager           = (fakeTM{})
)
