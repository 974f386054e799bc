package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"cardapio/backend/internal/domain"
	"cardapio/backend/internal/logging"
	"cardapio/backend/internal/store"
	"cardapio/backend/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	settings         map[string]domain.TenantSettings
	menuItems        map[string]domain.MenuItem
	inventoryEntries []domain.InventoryEntry
	orders           map[string]domain.Order
	expenses         map[string]domain.Expense
	sessions         map[string]domain.CashierSession
	openSessionByKey map[string]string
	usersByUsername  map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		settings:         make(map[string]domain.TenantSettings),
		menuItems:        make(map[string]domain.MenuItem),
		inventoryEntries: make([]domain.InventoryEntry, 0, 64),
		orders:           make(map[string]domain.Order),
		expenses:         make(map[string]domain.Expense),
		sessions:         make(map[string]domain.CashierSession),
		openSessionByKey: make(map[string]string),
		usersByUsername:  make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the demo accounts for the seeded tenant. Passwords come
// from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD, with dev defaults when unset.
func seedUsers(tenantID string) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		logging.Warn("memory-store", "using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override", nil)
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		name     string
		password string
		role     string
		cashier  bool
	}{
		{"admin", "Administrador", adminPwd, domain.RoleAdmin, true},
		{"owner", "Gerente", adminPwd, domain.RoleTenantAdmin, false},
		{"cashier", "Caixa", staffPwd, domain.RoleStaff, true},
		{"waiter", "Garçom", staffPwd, domain.RoleStaff, false},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			logging.Logger().WithError(err).WithField("module", "memory-store").Fatalf("failed to hash seed password for %s", u.username)
		}
		users[u.username] = domain.UserAccount{
			Username:    u.username,
			DisplayName: u.name,
			Password:    string(hash),
			Role:        u.role,
			TenantID:    tenantID,
			IsCashier:   u.cashier,
			Active:      true,
			CreatedAt:   now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with one demo restaurant, its menu and staff.
func NewSeeded(tenantID string) *Store {
	s := New()
	now := time.Now().UTC()
	s.settings[tenantID] = domain.TenantSettings{
		TenantID:      tenantID,
		Name:          "Restaurante Demo",
		DeliveryFee:   decimal.RequireFromString("7.50"),
		ServiceCharge: decimal.NewFromInt(10),
		UpdatedAt:     now,
	}
	for _, item := range []struct {
		id, name, category, price, cost string
		track                           bool
	}{
		{"menu-feijoada", "Feijoada", "pratos", "49.90", "18.00", false},
		{"menu-moqueca", "Moqueca de Peixe", "pratos", "68.00", "27.50", false},
		{"menu-pastel", "Pastel de Queijo", "entradas", "12.00", "3.20", false},
		{"menu-guarana", "Guaraná Lata", "bebidas", "6.50", "2.40", true},
		{"menu-cerveja", "Cerveja 600ml", "bebidas", "14.00", "6.10", true},
	} {
		s.menuItems[item.id] = domain.MenuItem{
			ID:             item.id,
			TenantID:       tenantID,
			Name:           item.name,
			Category:       item.category,
			Price:          decimal.RequireFromString(item.price),
			Cost:           decimal.RequireFromString(item.cost),
			Available:      true,
			TrackInventory: item.track,
			CreatedAt:      now,
		}
	}
	s.usersByUsername = seedUsers(tenantID)
	return s
}

func (s *Store) LoadSnapshot(_ context.Context, tenantID string) (*domain.Snapshot, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &domain.Snapshot{
		TenantID:         tenantID,
		LoadedAt:         time.Now().UTC(),
		Settings:         s.settingsFor(tenantID),
		MenuItems:        []domain.MenuItem{},
		InventoryEntries: []domain.InventoryEntry{},
		Orders:           []domain.Order{},
		Expenses:         []domain.Expense{},
		Sessions:         []domain.CashierSession{},
	}
	for _, item := range s.menuItems {
		if item.TenantID == tenantID {
			snap.MenuItems = append(snap.MenuItems, item)
		}
	}
	for _, entry := range s.inventoryEntries {
		if entry.TenantID == tenantID {
			snap.InventoryEntries = append(snap.InventoryEntries, entry)
		}
	}
	for _, order := range s.orders {
		if order.TenantID == tenantID {
			snap.Orders = append(snap.Orders, copyOrder(order))
		}
	}
	for _, expense := range s.expenses {
		if expense.TenantID == tenantID {
			snap.Expenses = append(snap.Expenses, expense)
		}
	}
	for _, session := range s.sessions {
		if session.TenantID == tenantID {
			snap.Sessions = append(snap.Sessions, copySession(session))
		}
	}

	slices.SortFunc(snap.MenuItems, func(a, b domain.MenuItem) int {
		return cmpString(a.Category+"|"+a.Name, b.Category+"|"+b.Name)
	})
	slices.SortFunc(snap.InventoryEntries, func(a, b domain.InventoryEntry) int {
		return byTimeThenID(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	slices.SortFunc(snap.Orders, func(a, b domain.Order) int {
		return byTimeThenID(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	slices.SortFunc(snap.Expenses, func(a, b domain.Expense) int {
		return byTimeThenID(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	slices.SortFunc(snap.Sessions, func(a, b domain.CashierSession) int {
		return byTimeThenID(a.OpenedAt, b.OpenedAt, a.ID, b.ID)
	})
	return snap, nil
}

func (s *Store) settingsFor(tenantID string) domain.TenantSettings {
	if settings, ok := s.settings[tenantID]; ok {
		return settings
	}
	return domain.TenantSettings{TenantID: tenantID, DeliveryFee: decimal.Zero, ServiceCharge: decimal.Zero}
}

func (s *Store) GetSettings(_ context.Context, tenantID string) (*domain.TenantSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings := s.settingsFor(tenantID)
	return &settings, nil
}

func (s *Store) UpsertSettings(_ context.Context, settings domain.TenantSettings) (*domain.TenantSettings, error) {
	if strings.TrimSpace(settings.TenantID) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if settings.UpdatedAt.IsZero() {
		settings.UpdatedAt = time.Now().UTC()
	}
	s.settings[settings.TenantID] = settings
	saved := settings
	return &saved, nil
}

func (s *Store) CreateMenuItem(_ context.Context, item domain.MenuItem) (*domain.MenuItem, error) {
	if strings.TrimSpace(item.TenantID) == "" || strings.TrimSpace(item.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = xid.New("menu")
	}
	if _, exists := s.menuItems[item.ID]; exists {
		return nil, store.ErrConflict
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.menuItems[item.ID] = item
	saved := item
	return &saved, nil
}

func (s *Store) GetMenuItems(_ context.Context, tenantID string, ids []string) (map[string]domain.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.MenuItem, len(ids))
	for _, id := range ids {
		item, ok := s.menuItems[id]
		if ok && item.TenantID == tenantID {
			result[id] = item
		}
	}
	return result, nil
}

func (s *Store) CreateInventoryEntry(_ context.Context, entry domain.InventoryEntry) (*domain.InventoryEntry, error) {
	if entry.Quantity < 1 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.menuItems[entry.MenuItemID]
	if !ok || item.TenantID != entry.TenantID {
		return nil, store.ErrNotFound
	}
	if entry.ID == "" {
		entry.ID = xid.New("inv")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.inventoryEntries = append(s.inventoryEntries, entry)
	saved := entry
	return &saved, nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	if strings.TrimSpace(order.TenantID) == "" || len(order.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		order.ID = xid.New("order")
	}
	if _, exists := s.orders[order.ID]; exists {
		return nil, store.ErrConflict
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt
	if order.Status == "" {
		order.Status = domain.OrderStatusReceived
	}
	s.orders[order.ID] = copyOrder(order)
	saved := copyOrder(order)
	return &saved, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, tenantID string, orderID string, status string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok || order.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	if order.Status == domain.OrderStatusDelivered || order.Status == domain.OrderStatusCanceled {
		return nil, store.ErrConflict
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = order
	saved := copyOrder(order)
	return &saved, nil
}

func (s *Store) CloseTableOrders(_ context.Context, tenantID string, tableID string, paymentMethod string) ([]domain.Order, error) {
	if strings.TrimSpace(tableID) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	closed := make([]domain.Order, 0, 4)
	for id, order := range s.orders {
		if order.TenantID != tenantID || order.TableID != tableID {
			continue
		}
		if order.Status == domain.OrderStatusDelivered || order.Status == domain.OrderStatusCanceled {
			continue
		}
		order.Status = domain.OrderStatusDelivered
		order.PaymentMethod = paymentMethod
		order.UpdatedAt = now
		s.orders[id] = order
		closed = append(closed, copyOrder(order))
	}
	slices.SortFunc(closed, func(a, b domain.Order) int {
		return byTimeThenID(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return closed, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	if strings.TrimSpace(expense.TenantID) == "" || strings.TrimSpace(expense.DueDate) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	s.expenses[expense.ID] = expense
	saved := expense
	return &saved, nil
}

func (s *Store) PayExpense(_ context.Context, tenantID string, expenseID string, paymentDate string) (*domain.Expense, error) {
	if strings.TrimSpace(paymentDate) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expense, ok := s.expenses[expenseID]
	if !ok || expense.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	expense.PaymentDate = paymentDate
	s.expenses[expenseID] = expense
	saved := expense
	return &saved, nil
}

func (s *Store) DeleteExpense(_ context.Context, tenantID string, expenseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expense, ok := s.expenses[expenseID]
	if !ok || expense.TenantID != tenantID {
		return store.ErrNotFound
	}
	delete(s.expenses, expenseID)
	return nil
}

func (s *Store) OpenSession(_ context.Context, session domain.CashierSession) (*domain.CashierSession, error) {
	if strings.TrimSpace(session.TenantID) == "" || strings.TrimSpace(session.UserID) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(session.TenantID, session.UserID)
	if _, exists := s.openSessionByKey[key]; exists {
		return nil, store.ErrConflict
	}
	if session.ID == "" {
		session.ID = xid.New("sess")
	}
	if session.OpenedAt.IsZero() {
		session.OpenedAt = time.Now().UTC()
	}
	session.Status = domain.SessionStatusOpen
	session.ClosedAt = nil
	session.TotalSalesCash = decimal.Zero
	session.TotalSalesCard = decimal.Zero
	session.TotalSalesPix = decimal.Zero
	session.TotalExpenses = decimal.Zero
	session.FinalBalance = decimal.Zero

	s.sessions[session.ID] = session
	s.openSessionByKey[key] = session.ID
	saved := copySession(session)
	return &saved, nil
}

func (s *Store) GetOpenSession(_ context.Context, tenantID string, userID string) (*domain.CashierSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessionID, exists := s.openSessionByKey[sessionKey(tenantID, userID)]
	if !exists {
		return nil, store.ErrNotFound
	}
	session, exists := s.sessions[sessionID]
	if !exists || session.Status != domain.SessionStatusOpen {
		return nil, store.ErrNotFound
	}
	saved := copySession(session)
	return &saved, nil
}

func (s *Store) CloseSession(_ context.Context, tenantID string, sessionID string, closing domain.SessionClosing) (*domain.CashierSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists || session.TenantID != tenantID || session.Status != domain.SessionStatusOpen {
		return nil, store.ErrNotFound
	}
	closedAt := closing.ClosedAt
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}
	session.Status = domain.SessionStatusClosed
	session.TotalSalesCash = closing.TotalSalesCash
	session.TotalSalesCard = closing.TotalSalesCard
	session.TotalSalesPix = closing.TotalSalesPix
	session.TotalExpenses = closing.TotalExpenses
	session.FinalBalance = closing.FinalBalance
	session.ClosedAt = &closedAt

	delete(s.openSessionByKey, sessionKey(session.TenantID, session.UserID))
	s.sessions[sessionID] = session
	saved := copySession(session)
	return &saved, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func sessionKey(tenantID string, userID string) string {
	return tenantID + "|" + userID
}

func copyOrder(order domain.Order) domain.Order {
	order.Items = slices.Clone(order.Items)
	if order.ChangeFor != nil {
		changeFor := *order.ChangeFor
		order.ChangeFor = &changeFor
	}
	return order
}

func copySession(session domain.CashierSession) domain.CashierSession {
	if session.ClosedAt != nil {
		closedAt := *session.ClosedAt
		session.ClosedAt = &closedAt
	}
	return session
}

func byTimeThenID(a time.Time, b time.Time, aID string, bID string) int {
	if c := a.Compare(b); c != 0 {
		return c
	}
	return cmpString(aID, bID)
}

func cmpString(a string, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
