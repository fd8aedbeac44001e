package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/dafibh/fortuna/budget-backend/internal/websocket"
	"github.com/google/uuid"
)

// Operation names passed to MockStore.FailOn
const (
	OpTransactionCreate = "transactions.create"
	OpTransactionUpdate = "transactions.update"
	OpTransactionDelete = "transactions.delete"
	OpRuleCreate        = "rules.create"
	OpRuleUpdate        = "rules.update"
	OpCategoryCreate    = "categories.create"
	OpCategoryUpdate    = "categories.update"
	OpCategoryDelete    = "categories.delete"
)

// MockStore is an in-memory implementation of domain.Store.
// WithinTx serializes transactions and restores a snapshot when fn fails.
type MockStore struct {
	Txns            map[uuid.UUID]*domain.Transaction
	Rules           map[uuid.UUID]*domain.RecurrenceRule
	CategoriesByID  map[uuid.UUID]*domain.Category
	FailOn          func(op string) error
	TxCount         int
	RolledBackCount int

	mu   sync.Mutex
	txMu sync.Mutex
	now  func() time.Time
}

// NewMockStore creates an empty MockStore
func NewMockStore() *MockStore {
	return &MockStore{
		Txns:           make(map[uuid.UUID]*domain.Transaction),
		Rules:          make(map[uuid.UUID]*domain.RecurrenceRule),
		CategoriesByID: make(map[uuid.UUID]*domain.Category),
		now:            time.Now,
	}
}

func (s *MockStore) Transactions() domain.TransactionRepository {
	return &MockTransactionRepository{store: s}
}

func (s *MockStore) RecurrenceRules() domain.RecurrenceRuleRepository {
	return &MockRecurrenceRuleRepository{store: s}
}

func (s *MockStore) Categories() domain.CategoryRepository {
	return &MockCategoryRepository{store: s}
}

// WithinTx runs fn atomically against the in-memory data
func (s *MockStore) WithinTx(ctx context.Context, fn func(store domain.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	s.TxCount++
	snap := s.snapshot()
	s.mu.Unlock()

	if err := fn(&txScope{MockStore: s}); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.RolledBackCount++
		s.mu.Unlock()
		return err
	}
	return nil
}

// txScope is the Store handed to WithinTx callbacks; nested calls join it
type txScope struct {
	*MockStore
}

func (t *txScope) WithinTx(ctx context.Context, fn func(store domain.Store) error) error {
	return fn(t)
}

type storeSnapshot struct {
	transactions map[uuid.UUID]*domain.Transaction
	rules        map[uuid.UUID]*domain.RecurrenceRule
	categories   map[uuid.UUID]*domain.Category
}

func (s *MockStore) snapshot() storeSnapshot {
	snap := storeSnapshot{
		transactions: make(map[uuid.UUID]*domain.Transaction, len(s.Txns)),
		rules:        make(map[uuid.UUID]*domain.RecurrenceRule, len(s.Rules)),
		categories:   make(map[uuid.UUID]*domain.Category, len(s.CategoriesByID)),
	}
	for id, tx := range s.Txns {
		snap.transactions[id] = copyTransaction(tx)
	}
	for id, r := range s.Rules {
		snap.rules[id] = copyRule(r)
	}
	for id, c := range s.CategoriesByID {
		cp := *c
		snap.categories[id] = &cp
	}
	return snap
}

func (s *MockStore) restore(snap storeSnapshot) {
	s.Txns = snap.transactions
	s.Rules = snap.rules
	s.CategoriesByID = snap.categories
}

func (s *MockStore) fail(op string) error {
	if s.FailOn == nil {
		return nil
	}
	return s.FailOn(op)
}

// AddTransaction inserts a transaction directly (helper for tests)
func (s *MockStore) AddTransaction(tx *domain.Transaction) *domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	s.Txns[tx.ID] = copyTransaction(tx)
	return tx
}

// AddRule inserts a recurrence rule directly (helper for tests)
func (s *MockStore) AddRule(rule *domain.RecurrenceRule) *domain.RecurrenceRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if rule.Interval == 0 {
		rule.Interval = 1
	}
	s.Rules[rule.ID] = copyRule(rule)
	return rule
}

// AddCategory inserts a category directly (helper for tests)
func (s *MockStore) AddCategory(c *domain.Category) *domain.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	s.CategoriesByID[c.ID] = &cp
	return c
}

// AddRecurring inserts a rule and its anchor transaction (helper for tests)
func (s *MockStore) AddRecurring(anchor *domain.Transaction, rule *domain.RecurrenceRule) (*domain.Transaction, *domain.RecurrenceRule) {
	rule = s.AddRule(rule)
	anchor.IsRecurring = true
	anchor.RecurrenceID = &rule.ID
	return s.AddTransaction(anchor), rule
}

// Transaction returns a stored transaction by ID (helper for tests)
func (s *MockStore) Transaction(id uuid.UUID) *domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx, ok := s.Txns[id]; ok {
		return copyTransaction(tx)
	}
	return nil
}

// Rule returns a stored rule by ID (helper for tests)
func (s *MockStore) Rule(id uuid.UUID) *domain.RecurrenceRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.Rules[id]; ok {
		return copyRule(r)
	}
	return nil
}

// CountTransactions returns the number of stored transactions
func (s *MockStore) CountTransactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Txns)
}

// CountRules returns the number of stored rules
func (s *MockStore) CountRules() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Rules)
}

// CountCategories returns the number of stored categories
func (s *MockStore) CountCategories() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.CategoriesByID)
}

func copyTransaction(tx *domain.Transaction) *domain.Transaction {
	cp := *tx
	if tx.CategoryID != nil {
		id := *tx.CategoryID
		cp.CategoryID = &id
	}
	if tx.RecurrenceID != nil {
		id := *tx.RecurrenceID
		cp.RecurrenceID = &id
	}
	return &cp
}

func copyRule(r *domain.RecurrenceRule) *domain.RecurrenceRule {
	cp := *r
	if r.EndDate != nil {
		end := *r.EndDate
		cp.EndDate = &end
	}
	return &cp
}

// MockTransactionRepository is the transaction view of a MockStore
type MockTransactionRepository struct {
	store *MockStore
}

// Find returns the user's transactions matching the filter, ordered by date
func (m *MockTransactionRepository) Find(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	result := make([]*domain.Transaction, 0)
	for _, tx := range m.store.Txns {
		if tx.UserID != filter.UserID {
			continue
		}
		if filter.StartDate != nil && tx.Date.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && tx.Date.After(*filter.EndDate) {
			continue
		}
		if filter.CategoryID != nil && (tx.CategoryID == nil || *tx.CategoryID != *filter.CategoryID) {
			continue
		}
		result = append(result, copyTransaction(tx))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// FindRecurringAnchors returns the user's recurring transactions joined with their rules
func (m *MockTransactionRepository) FindRecurringAnchors(ctx context.Context, userID uuid.UUID) ([]*domain.RecurringAnchor, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	result := make([]*domain.RecurringAnchor, 0)
	for _, tx := range m.store.Txns {
		if tx.UserID != userID || !tx.IsRecurring || tx.RecurrenceID == nil {
			continue
		}
		rule, ok := m.store.Rules[*tx.RecurrenceID]
		if !ok {
			continue
		}
		result = append(result, &domain.RecurringAnchor{Transaction: copyTransaction(tx), Rule: copyRule(rule)})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Transaction.Date.Before(result[j].Transaction.Date) })
	return result, nil
}

// GetByID retrieves a transaction owned by the user
func (m *MockTransactionRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Transaction, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	tx, ok := m.store.Txns[id]
	if !ok || tx.UserID != userID {
		return nil, domain.ErrTransactionNotFound
	}
	return copyTransaction(tx), nil
}

// GetByIDForUpdate behaves like GetByID; WithinTx already serializes writers
func (m *MockTransactionRepository) GetByIDForUpdate(ctx context.Context, userID, id uuid.UUID) (*domain.Transaction, error) {
	return m.GetByID(ctx, userID, id)
}

// Create stores a new transaction
func (m *MockTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	if err := m.store.fail(OpTransactionCreate); err != nil {
		return nil, err
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	created := copyTransaction(tx)
	created.ID = uuid.New()
	created.CreatedAt = m.store.now()
	created.UpdatedAt = created.CreatedAt
	m.store.Txns[created.ID] = created
	return copyTransaction(created), nil
}

// Update replaces a stored transaction
func (m *MockTransactionRepository) Update(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	if err := m.store.fail(OpTransactionUpdate); err != nil {
		return nil, err
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	existing, ok := m.store.Txns[tx.ID]
	if !ok || existing.UserID != tx.UserID {
		return nil, domain.ErrTransactionNotFound
	}
	updated := copyTransaction(tx)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = m.store.now()
	m.store.Txns[tx.ID] = updated
	return copyTransaction(updated), nil
}

// Delete removes a transaction owned by the user
func (m *MockTransactionRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := m.store.fail(OpTransactionDelete); err != nil {
		return err
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	tx, ok := m.store.Txns[id]
	if !ok || tx.UserID != userID {
		return domain.ErrTransactionNotFound
	}
	delete(m.store.Txns, id)
	return nil
}

// MockRecurrenceRuleRepository is the rule view of a MockStore
type MockRecurrenceRuleRepository struct {
	store *MockStore
}

// GetByID retrieves a rule
func (m *MockRecurrenceRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.RecurrenceRule, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	r, ok := m.store.Rules[id]
	if !ok {
		return nil, domain.ErrRecurrenceRuleNotFound
	}
	return copyRule(r), nil
}

// Create stores a new rule
func (m *MockRecurrenceRuleRepository) Create(ctx context.Context, rule *domain.RecurrenceRule) (*domain.RecurrenceRule, error) {
	if err := m.store.fail(OpRuleCreate); err != nil {
		return nil, err
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	created := copyRule(rule)
	created.ID = uuid.New()
	created.CreatedAt = m.store.now()
	created.UpdatedAt = created.CreatedAt
	m.store.Rules[created.ID] = created
	return copyRule(created), nil
}

// Update replaces a stored rule
func (m *MockRecurrenceRuleRepository) Update(ctx context.Context, rule *domain.RecurrenceRule) (*domain.RecurrenceRule, error) {
	if err := m.store.fail(OpRuleUpdate); err != nil {
		return nil, err
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	existing, ok := m.store.Rules[rule.ID]
	if !ok {
		return nil, domain.ErrRecurrenceRuleNotFound
	}
	updated := copyRule(rule)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = m.store.now()
	m.store.Rules[rule.ID] = updated
	return copyRule(updated), nil
}

// MockCategoryRepository is the category view of a MockStore
type MockCategoryRepository struct {
	store *MockStore
}

// Create stores a new category, rejecting duplicate names per user
func (m *MockCategoryRepository) Create(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	if err := m.store.fail(OpCategoryCreate); err != nil {
		return nil, err
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	for _, c := range m.store.CategoriesByID {
		if c.UserID == category.UserID && c.Name == category.Name {
			return nil, domain.ErrCategoryExists
		}
	}
	created := *category
	created.ID = uuid.New()
	created.CreatedAt = m.store.now()
	created.UpdatedAt = created.CreatedAt
	m.store.CategoriesByID[created.ID] = &created
	out := created
	return &out, nil
}

// GetByID retrieves a category owned by the user
func (m *MockCategoryRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Category, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	c, ok := m.store.CategoriesByID[id]
	if !ok || c.UserID != userID {
		return nil, domain.ErrCategoryNotFound
	}
	out := *c
	return &out, nil
}

// GetByName retrieves a category by exact name
func (m *MockCategoryRepository) GetByName(ctx context.Context, userID uuid.UUID, name string) (*domain.Category, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	for _, c := range m.store.CategoriesByID {
		if c.UserID == userID && c.Name == name {
			out := *c
			return &out, nil
		}
	}
	return nil, domain.ErrCategoryNotFound
}

// GetAllByUser lists the user's categories ordered by name
func (m *MockCategoryRepository) GetAllByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Category, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	result := make([]*domain.Category, 0)
	for _, c := range m.store.CategoriesByID {
		if c.UserID == userID {
			out := *c
			result = append(result, &out)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Update replaces a category's name and color
func (m *MockCategoryRepository) Update(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	if err := m.store.fail(OpCategoryUpdate); err != nil {
		return nil, err
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	existing, ok := m.store.CategoriesByID[category.ID]
	if !ok || existing.UserID != category.UserID {
		return nil, domain.ErrCategoryNotFound
	}
	for _, c := range m.store.CategoriesByID {
		if c.ID != category.ID && c.UserID == category.UserID && c.Name == category.Name {
			return nil, domain.ErrCategoryExists
		}
	}
	existing.Name = category.Name
	existing.Color = category.Color
	existing.UpdatedAt = m.store.now()
	out := *existing
	return &out, nil
}

// Delete removes a category and clears it from the user's transactions
func (m *MockCategoryRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := m.store.fail(OpCategoryDelete); err != nil {
		return err
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	c, ok := m.store.CategoriesByID[id]
	if !ok || c.UserID != userID {
		return domain.ErrCategoryNotFound
	}
	delete(m.store.CategoriesByID, id)
	for _, tx := range m.store.Txns {
		if tx.CategoryID != nil && *tx.CategoryID == id {
			tx.CategoryID = nil
		}
	}
	return nil
}

// MockUserRepository is a mock implementation of domain.UserRepository
type MockUserRepository struct {
	Users    map[string]*domain.User
	ByID     map[uuid.UUID]*domain.User
	CreateFn func(auth0ID, email string, name, pictureURL *string) (*domain.User, error)
	mu       sync.Mutex
}

// NewMockUserRepository creates a new MockUserRepository
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		Users: make(map[string]*domain.User),
		ByID:  make(map[uuid.UUID]*domain.User),
	}
}

// GetByID retrieves a user by ID
func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.ByID[id]; ok {
		return user, nil
	}
	return nil, domain.ErrUserNotFound
}

// GetByAuth0ID retrieves a user by Auth0 ID
func (m *MockUserRepository) GetByAuth0ID(ctx context.Context, auth0ID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.Users[auth0ID]; ok {
		return user, nil
	}
	return nil, domain.ErrUserNotFound
}

// CreateOrGetByAuth0ID creates or retrieves a user by Auth0 ID
func (m *MockUserRepository) CreateOrGetByAuth0ID(ctx context.Context, auth0ID, email string, name, pictureURL *string) (*domain.User, error) {
	if m.CreateFn != nil {
		return m.CreateFn(auth0ID, email, name, pictureURL)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.Users[auth0ID]; ok {
		return user, nil
	}
	user := &domain.User{
		ID:         uuid.New(),
		Auth0ID:    auth0ID,
		Email:      email,
		Name:       name,
		PictureURL: pictureURL,
	}
	m.Users[auth0ID] = user
	m.ByID[user.ID] = user
	return user, nil
}

// AddUser adds a user to the mock repository (helper for tests)
func (m *MockUserRepository) AddUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users[user.Auth0ID] = user
	m.ByID[user.ID] = user
}

// RecordingPublisher captures published events
type RecordingPublisher struct {
	mu     sync.Mutex
	events []websocket.Event
	users  []uuid.UUID
}

// Publish records the event
func (p *RecordingPublisher) Publish(userID uuid.UUID, event websocket.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	p.users = append(p.users, userID)
}

// Types returns the types of the recorded events in order
func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

// Events returns the recorded events
func (p *RecordingPublisher) Events() []websocket.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]websocket.Event, len(p.events))
	copy(out, p.events)
	return out
}

// UserIDs returns the users the recorded events were published to
func (p *RecordingPublisher) UserIDs() []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uuid.UUID, len(p.users))
	copy(out, p.users)
	return out
}
