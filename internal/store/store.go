package store

import (
	"context"
	"errors"

	"cardapio/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

// Repository persists the raw rows of each tenant. Reports are never stored;
// they are recomputed from LoadSnapshot.
type Repository interface {
	// LoadSnapshot returns every row of the tenant. Revision and Fingerprint
	// are left for the caller to fill.
	LoadSnapshot(ctx context.Context, tenantID string) (*domain.Snapshot, error)

	GetSettings(ctx context.Context, tenantID string) (*domain.TenantSettings, error)
	UpsertSettings(ctx context.Context, settings domain.TenantSettings) (*domain.TenantSettings, error)

	CreateMenuItem(ctx context.Context, item domain.MenuItem) (*domain.MenuItem, error)
	GetMenuItems(ctx context.Context, tenantID string, ids []string) (map[string]domain.MenuItem, error)
	CreateInventoryEntry(ctx context.Context, entry domain.InventoryEntry) (*domain.InventoryEntry, error)

	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, tenantID string, orderID string, status string) (*domain.Order, error)
	// CloseTableOrders marks every order of the table that is neither
	// delivered nor canceled as delivered with the given payment method.
	CloseTableOrders(ctx context.Context, tenantID string, tableID string, paymentMethod string) ([]domain.Order, error)

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	PayExpense(ctx context.Context, tenantID string, expenseID string, paymentDate string) (*domain.Expense, error)
	DeleteExpense(ctx context.Context, tenantID string, expenseID string) error

	// OpenSession fails with ErrConflict when the user already has an open session.
	OpenSession(ctx context.Context, session domain.CashierSession) (*domain.CashierSession, error)
	GetOpenSession(ctx context.Context, tenantID string, userID string) (*domain.CashierSession, error)
	CloseSession(ctx context.Context, tenantID string, sessionID string, closing domain.SessionClosing) (*domain.CashierSession, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
