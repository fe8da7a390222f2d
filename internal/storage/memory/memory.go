// Package memory is an in-process store used by tests and by the memory
// data backend. Nothing survives a restart.
package memory

import (
	"context"
	"slices"
	"sync"

	"billremind/internal/core"
)

type Store struct {
	mu        sync.Mutex
	nextID    int64
	clients   map[int64]core.Client
	accounts  map[int64]core.BillingAccount
	configs   map[int64]core.ScheduleConfig
	statuses  map[int64]core.ClientStatus
	templates map[string]core.MessageTemplate
	payments  []core.Payment
	reminders []core.ReminderRecord
}

func New() *Store {
	return &Store{
		clients:   make(map[int64]core.Client),
		accounts:  make(map[int64]core.BillingAccount),
		configs:   make(map[int64]core.ScheduleConfig),
		statuses:  make(map[int64]core.ClientStatus),
		templates: make(map[string]core.MessageTemplate),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// CreateClient stores c and returns its id.
func (s *Store) CreateClient(_ context.Context, c core.Client) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	s.clients[c.ID] = c
	return c.ID, nil
}

// CreateAccount stores a and returns its id.
func (s *Store) CreateAccount(_ context.Context, a core.BillingAccount) (int64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[a.OwnerID]; !ok {
		return 0, core.NotFoundf("client %d", a.OwnerID)
	}
	a.ID = s.id()
	s.accounts[a.ID] = a
	return a.ID, nil
}

func (s *Store) UpsertScheduleConfig(_ context.Context, cfg core.ScheduleConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[cfg.AccountID]; !ok {
		return core.NotFoundf("account %d", cfg.AccountID)
	}
	s.configs[cfg.AccountID] = cloneConfig(cfg)
	return nil
}

func (s *Store) SetAccountActive(_ context.Context, accountID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return core.NotFoundf("account %d", accountID)
	}
	a.Active = active
	s.accounts[accountID] = a
	return nil
}

func (s *Store) UpsertTemplate(_ context.Context, t core.MessageTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.templates[t.Name]; ok {
		t.ID = existing.ID
	} else {
		t.ID = s.id()
	}
	s.templates[t.Name] = t
	return nil
}

func (s *Store) LoadActiveAccountsMissingSchedule(_ context.Context) ([]core.BillingAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.BillingAccount
	for _, a := range s.sortedAccounts() {
		if !a.Active {
			continue
		}
		if cfg, ok := s.configs[a.ID]; ok && cfg.NextBillingDate != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) LoadScheduleConfig(_ context.Context, accountID int64) (*core.ScheduleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[accountID]
	if !ok {
		return nil, nil
	}
	c := cloneConfig(cfg)
	return &c, nil
}

func (s *Store) LoadAccount(_ context.Context, accountID int64) (core.BillingAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return core.BillingAccount{}, core.NotFoundf("account %d", accountID)
	}
	return a, nil
}

func (s *Store) SaveNextBillingDate(_ context.Context, accountID int64, date core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID]; !ok {
		return core.NotFoundf("account %d", accountID)
	}
	cfg, ok := s.configs[accountID]
	if !ok {
		cfg = core.DefaultScheduleConfig(accountID)
	}
	cfg.NextBillingDate = date.Ptr()
	s.configs[accountID] = cfg
	return nil
}

func (s *Store) LoadAccountsDueOn(_ context.Context, day core.Date) ([]core.DueAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.DueAccount
	for _, a := range s.sortedAccounts() {
		var cfg *core.ScheduleConfig
		if c, ok := s.configs[a.ID]; ok {
			cfg = &c
		}
		if !core.IsDueOn(a, cfg, day) {
			continue
		}
		client := s.clients[a.OwnerID]
		out = append(out, core.DueAccount{
			AccountID:     a.ID,
			ClientID:      client.ID,
			ClientName:    client.Name,
			ContactRef:    client.ContactRef,
			Phone:         client.Phone,
			Description:   a.Description,
			DueDayOfMonth: a.DueDayOfMonth,
			Amount:        a.Amount,
		})
	}
	return out, nil
}

// AdvanceSchedule holds the store lock for the whole load-compute-save
// sequence, which gives it the same isolation as a database transaction.
func (s *Store) AdvanceSchedule(_ context.Context, accountID int64, fn core.AdvanceFunc) (core.ScheduleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return core.ScheduleConfig{}, core.NotFoundf("account %d", accountID)
	}
	var current *core.ScheduleConfig
	if c, ok := s.configs[accountID]; ok {
		c = cloneConfig(c)
		current = &c
	}
	next, err := fn(a, current)
	if err != nil {
		return core.ScheduleConfig{}, err
	}
	next.AccountID = accountID
	s.configs[accountID] = cloneConfig(next)
	return next, nil
}

func (s *Store) LoadClientStatus(_ context.Context, clientID int64) (*core.ClientStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[clientID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *Store) SaveClientStatus(_ context.Context, status core.ClientStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[status.ClientID]; !ok {
		return core.NotFoundf("client %d", status.ClientID)
	}
	s.statuses[status.ClientID] = status
	return nil
}

func (s *Store) LastPaymentDate(_ context.Context, clientID int64) (*core.Date, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *core.Date
	for _, p := range s.payments {
		if p.ClientID != clientID {
			continue
		}
		if last == nil || p.PaidOn.After(*last) {
			last = p.PaidOn.Ptr()
		}
	}
	return last, nil
}

func (s *Store) SavePayment(_ context.Context, p core.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[p.ClientID]; !ok {
		return core.NotFoundf("client %d", p.ClientID)
	}
	s.payments = append(s.payments, p)
	return nil
}

func (s *Store) ListClientIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) LoadActiveTemplate(_ context.Context, name string) (*core.MessageTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[name]
	if !ok || !t.Active {
		return nil, nil
	}
	return &t, nil
}

func (s *Store) SaveReminder(_ context.Context, r core.ReminderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders = append(s.reminders, r)
	return nil
}

// Reminders returns a copy of the recorded history.
func (s *Store) Reminders() []core.ReminderRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.reminders)
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) sortedAccounts() []core.BillingAccount {
	out := make([]core.BillingAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b core.BillingAccount) int { return int(a.ID - b.ID) })
	return out
}

func cloneConfig(c core.ScheduleConfig) core.ScheduleConfig {
	if c.NextBillingDate != nil {
		c.NextBillingDate = c.NextBillingDate.Ptr()
	}
	return c
}
