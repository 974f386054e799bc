package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"cardapio/backend/internal/domain"
	"cardapio/backend/internal/store"
	"cardapio/backend/internal/xid"
)

// Timestamps are stored as fixed-width UTC text so that ORDER BY on the
// column matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures every table exists.
// Pass ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tenant_settings (
			tenant_id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			delivery_fee TEXT NOT NULL DEFAULT '0',
			service_charge TEXT NOT NULL DEFAULT '0',
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS menu_items (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			price TEXT NOT NULL,
			cost TEXT NOT NULL DEFAULT '0',
			available INTEGER NOT NULL DEFAULT 1,
			track_inventory INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_menu_items_tenant ON menu_items(tenant_id)`,

		`CREATE TABLE IF NOT EXISTS inventory_entries (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			menu_item_id TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			unit_cost TEXT NOT NULL DEFAULT '0',
			created_at TEXT NOT NULL,
			FOREIGN KEY (menu_item_id) REFERENCES menu_items(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_entries_tenant ON inventory_entries(tenant_id)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			placed_by TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			order_type TEXT NOT NULL,
			payment_method TEXT NOT NULL,
			delivery_fee TEXT NOT NULL DEFAULT '0',
			total TEXT NOT NULL,
			change_for TEXT,
			table_id TEXT,
			waiter_name TEXT,
			notes TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_tenant_created ON orders(tenant_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_tenant_table ON orders(tenant_id, table_id)`,

		`CREATE TABLE IF NOT EXISTS order_items (
			order_id TEXT NOT NULL,
			line_no INTEGER NOT NULL,
			menu_item_id TEXT NOT NULL,
			name TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			unit_price TEXT NOT NULL,
			unit_cost TEXT NOT NULL DEFAULT '0',
			PRIMARY KEY (order_id, line_no),
			FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS expenses (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			amount TEXT NOT NULL,
			due_date TEXT NOT NULL,
			payment_date TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_tenant ON expenses(tenant_id)`,

		`CREATE TABLE IF NOT EXISTS cashier_sessions (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			operator_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			starting_balance TEXT NOT NULL DEFAULT '0',
			total_sales_cash TEXT NOT NULL DEFAULT '0',
			total_sales_card TEXT NOT NULL DEFAULT '0',
			total_sales_pix TEXT NOT NULL DEFAULT '0',
			total_expenses TEXT NOT NULL DEFAULT '0',
			final_balance TEXT NOT NULL DEFAULT '0',
			opened_at TEXT NOT NULL,
			closed_at TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_cashier_sessions_open ON cashier_sessions(tenant_id, user_id) WHERE status = 'open'`,

		`CREATE TABLE IF NOT EXISTS app_users (
			username TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			tenant_id TEXT NOT NULL DEFAULT '',
			is_cashier INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) LoadSnapshot(ctx context.Context, tenantID string) (*domain.Snapshot, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	snap := &domain.Snapshot{TenantID: tenantID, LoadedAt: time.Now().UTC()}

	settings, err := scanSettings(tx.QueryRowContext(ctx, `
		SELECT tenant_id, name, delivery_fee, service_charge, updated_at
		FROM tenant_settings
		WHERE tenant_id = ?
	`, tenantID).Scan)
	switch {
	case errors.Is(err, store.ErrNotFound):
		snap.Settings = domain.TenantSettings{TenantID: tenantID}
	case err != nil:
		return nil, err
	default:
		snap.Settings = *settings
	}

	if snap.MenuItems, err = queryMenuItems(ctx, tx, `
		SELECT id, tenant_id, name, category, price, cost, available, track_inventory, created_at
		FROM menu_items
		WHERE tenant_id = ?
		ORDER BY category, name
	`, tenantID); err != nil {
		return nil, err
	}
	if snap.InventoryEntries, err = queryInventoryEntries(ctx, tx, tenantID); err != nil {
		return nil, err
	}
	if snap.Orders, err = queryOrders(ctx, tx, tenantID); err != nil {
		return nil, err
	}
	if snap.Expenses, err = queryExpenses(ctx, tx, tenantID); err != nil {
		return nil, err
	}
	if snap.Sessions, err = querySessions(ctx, tx, tenantID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return snap, nil
}

func scanSettings(scan func(dest ...any) error) (*domain.TenantSettings, error) {
	var settings domain.TenantSettings
	var updatedAt string
	if err := scan(&settings.TenantID, &settings.Name, &settings.DeliveryFee, &settings.ServiceCharge, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	settings.UpdatedAt = parseTime(updatedAt)
	return &settings, nil
}

func queryMenuItems(ctx context.Context, q querier, query string, args ...any) ([]domain.MenuItem, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.MenuItem, 0, 64)
	for rows.Next() {
		var item domain.MenuItem
		var createdAt string
		if err := rows.Scan(&item.ID, &item.TenantID, &item.Name, &item.Category, &item.Price, &item.Cost,
			&item.Available, &item.TrackInventory, &createdAt); err != nil {
			return nil, err
		}
		item.CreatedAt = parseTime(createdAt)
		items = append(items, item)
	}
	return items, rows.Err()
}

func queryInventoryEntries(ctx context.Context, q querier, tenantID string) ([]domain.InventoryEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, tenant_id, menu_item_id, quantity, unit_cost, created_at
		FROM inventory_entries
		WHERE tenant_id = ?
		ORDER BY created_at, id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.InventoryEntry, 0, 64)
	for rows.Next() {
		var entry domain.InventoryEntry
		var createdAt string
		if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.MenuItemID, &entry.Quantity, &entry.UnitCost, &createdAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = parseTime(createdAt)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

const orderColumns = `id, tenant_id, placed_by, status, order_type, payment_method, delivery_fee, total,
	change_for, COALESCE(table_id,''), COALESCE(waiter_name,''), COALESCE(notes,''), created_at, updated_at`

func scanOrder(scan func(dest ...any) error) (domain.Order, error) {
	var order domain.Order
	var changeFor decimal.NullDecimal
	var createdAt, updatedAt string
	err := scan(&order.ID, &order.TenantID, &order.PlacedBy, &order.Status, &order.OrderType, &order.PaymentMethod,
		&order.DeliveryFee, &order.Total, &changeFor, &order.TableID, &order.WaiterName, &order.Notes,
		&createdAt, &updatedAt)
	if err != nil {
		return order, err
	}
	if changeFor.Valid {
		value := changeFor.Decimal
		order.ChangeFor = &value
	}
	order.CreatedAt = parseTime(createdAt)
	order.UpdatedAt = parseTime(updatedAt)
	return order, nil
}

func collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	defer rows.Close()

	orders := make([]domain.Order, 0, 16)
	for rows.Next() {
		order, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func queryOrders(ctx context.Context, q querier, tenantID string) ([]domain.Order, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE tenant_id = ?
		ORDER BY created_at, id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(orders))
	for i, order := range orders {
		index[order.ID] = i
	}

	itemRows, err := q.QueryContext(ctx, `
		SELECT oi.order_id, oi.menu_item_id, oi.name, oi.quantity, oi.unit_price, oi.unit_cost
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.tenant_id = ?
		ORDER BY oi.order_id, oi.line_no
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.MenuItemID, &item.Name, &item.Quantity, &item.UnitPrice, &item.UnitCost); err != nil {
			return nil, err
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	return orders, itemRows.Err()
}

func loadOrderItems(ctx context.Context, q querier, order *domain.Order) error {
	rows, err := q.QueryContext(ctx, `
		SELECT menu_item_id, name, quantity, unit_price, unit_cost
		FROM order_items
		WHERE order_id = ?
		ORDER BY line_no
	`, order.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	order.Items = make([]domain.OrderItem, 0, 8)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.MenuItemID, &item.Name, &item.Quantity, &item.UnitPrice, &item.UnitCost); err != nil {
			return err
		}
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

const expenseColumns = `id, tenant_id, category, description, amount, due_date, COALESCE(payment_date,''), created_at`

func scanExpense(scan func(dest ...any) error) (domain.Expense, error) {
	var expense domain.Expense
	var createdAt string
	err := scan(&expense.ID, &expense.TenantID, &expense.Category, &expense.Description, &expense.Amount,
		&expense.DueDate, &expense.PaymentDate, &createdAt)
	expense.CreatedAt = parseTime(createdAt)
	return expense, err
}

func queryExpenses(ctx context.Context, q querier, tenantID string) ([]domain.Expense, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE tenant_id = ?
		ORDER BY created_at, id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 64)
	for rows.Next() {
		expense, err := scanExpense(rows.Scan)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	return expenses, rows.Err()
}

const sessionColumns = `id, tenant_id, user_id, operator_name, status, starting_balance,
	total_sales_cash, total_sales_card, total_sales_pix, total_expenses, final_balance, opened_at, closed_at`

func scanSession(scan func(dest ...any) error) (domain.CashierSession, error) {
	var session domain.CashierSession
	var openedAt string
	var closedAt sql.NullString
	err := scan(&session.ID, &session.TenantID, &session.UserID, &session.OperatorName, &session.Status,
		&session.StartingBalance, &session.TotalSalesCash, &session.TotalSalesCard, &session.TotalSalesPix,
		&session.TotalExpenses, &session.FinalBalance, &openedAt, &closedAt)
	if err != nil {
		return session, err
	}
	session.OpenedAt = parseTime(openedAt)
	if closedAt.Valid {
		at := parseTime(closedAt.String)
		session.ClosedAt = &at
	}
	return session, nil
}

func querySessions(ctx context.Context, q querier, tenantID string) ([]domain.CashierSession, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM cashier_sessions
		WHERE tenant_id = ?
		ORDER BY opened_at, id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]domain.CashierSession, 0, 64)
	for rows.Next() {
		session, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *Store) GetSettings(ctx context.Context, tenantID string) (*domain.TenantSettings, error) {
	settings, err := scanSettings(s.db.QueryRowContext(ctx, `
		SELECT tenant_id, name, delivery_fee, service_charge, updated_at
		FROM tenant_settings
		WHERE tenant_id = ?
	`, tenantID).Scan)
	if errors.Is(err, store.ErrNotFound) {
		return &domain.TenantSettings{TenantID: tenantID}, nil
	}
	return settings, err
}

func (s *Store) UpsertSettings(ctx context.Context, settings domain.TenantSettings) (*domain.TenantSettings, error) {
	if strings.TrimSpace(settings.TenantID) == "" {
		return nil, store.ErrInvalidInput
	}
	if settings.UpdatedAt.IsZero() {
		settings.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenant_settings (tenant_id, name, delivery_fee, service_charge, updated_at)
		VALUES (?,?,?,?,?)
		ON CONFLICT (tenant_id)
		DO UPDATE SET name = excluded.name, delivery_fee = excluded.delivery_fee,
			service_charge = excluded.service_charge, updated_at = excluded.updated_at
	`, settings.TenantID, settings.Name, settings.DeliveryFee, settings.ServiceCharge, formatTime(settings.UpdatedAt))
	if err != nil {
		return nil, err
	}
	saved := settings
	return &saved, nil
}

func (s *Store) CreateMenuItem(ctx context.Context, item domain.MenuItem) (*domain.MenuItem, error) {
	if strings.TrimSpace(item.TenantID) == "" || strings.TrimSpace(item.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if item.ID == "" {
		item.ID = xid.New("menu")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO menu_items (id, tenant_id, name, category, price, cost, available, track_inventory, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)
	`, item.ID, item.TenantID, item.Name, item.Category, item.Price, item.Cost, item.Available, item.TrackInventory,
		formatTime(item.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	saved := item
	return &saved, nil
}

func (s *Store) GetMenuItems(ctx context.Context, tenantID string, ids []string) (map[string]domain.MenuItem, error) {
	result := make(map[string]domain.MenuItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, tenantID)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	items, err := queryMenuItems(ctx, s.db, `
		SELECT id, tenant_id, name, category, price, cost, available, track_inventory, created_at
		FROM menu_items
		WHERE tenant_id = ? AND id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		result[item.ID] = item
	}
	return result, nil
}

func (s *Store) CreateInventoryEntry(ctx context.Context, entry domain.InventoryEntry) (*domain.InventoryEntry, error) {
	if entry.Quantity < 1 {
		return nil, store.ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = xid.New("inv")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_entries (id, tenant_id, menu_item_id, quantity, unit_cost, created_at)
		SELECT ?, m.tenant_id, m.id, ?, ?, ?
		FROM menu_items m
		WHERE m.id = ? AND m.tenant_id = ?
	`, entry.ID, entry.Quantity, entry.UnitCost, formatTime(entry.CreatedAt), entry.MenuItemID, entry.TenantID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	saved := entry
	return &saved, nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if strings.TrimSpace(order.TenantID) == "" || len(order.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if order.ID == "" {
		order.ID = xid.New("order")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	order.UpdatedAt = order.CreatedAt
	if order.Status == "" {
		order.Status = domain.OrderStatusReceived
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, tenant_id, placed_by, status, order_type, payment_method,
			delivery_fee, total, change_for, table_id, waiter_name, notes, created_at, updated_at
		)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, order.ID, order.TenantID, order.PlacedBy, order.Status, order.OrderType, order.PaymentMethod,
		order.DeliveryFee, order.Total, nullDecimal(order.ChangeFor), nullIfEmpty(order.TableID),
		nullIfEmpty(order.WaiterName), nullIfEmpty(order.Notes), formatTime(order.CreatedAt), formatTime(order.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	for i, item := range order.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, line_no, menu_item_id, name, quantity, unit_price, unit_cost)
			VALUES (?,?,?,?,?,?,?)
		`, order.ID, i+1, item.MenuItemID, item.Name, item.Quantity, item.UnitPrice, item.UnitCost); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	saved := order
	return &saved, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, tenantID string, orderID string, status string) (*domain.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `
		UPDATE orders
		SET status = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND status NOT IN ('delivered','canceled')
		RETURNING `+orderColumns, status, formatTime(time.Now()), tenantID, orderID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.missingOrFinal(ctx, tenantID, orderID)
		}
		return nil, err
	}
	if err := loadOrderItems(ctx, s.db, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) missingOrFinal(ctx context.Context, tenantID string, orderID string) error {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM orders WHERE tenant_id = ? AND id = ?`, tenantID, orderID).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

func (s *Store) CloseTableOrders(ctx context.Context, tenantID string, tableID string, paymentMethod string) ([]domain.Order, error) {
	if strings.TrimSpace(tableID) == "" {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		UPDATE orders
		SET status = 'delivered', payment_method = ?, updated_at = ?
		WHERE tenant_id = ? AND table_id = ? AND status NOT IN ('delivered','canceled')
		RETURNING `+orderColumns, paymentMethod, formatTime(time.Now()), tenantID, tableID)
	if err != nil {
		return nil, err
	}
	closed, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}
	for i := range closed {
		if err := loadOrderItems(ctx, tx, &closed[i]); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return closed, nil
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if strings.TrimSpace(expense.TenantID) == "" || strings.TrimSpace(expense.DueDate) == "" {
		return nil, store.ErrInvalidInput
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, tenant_id, category, description, amount, due_date, payment_date, created_at)
		VALUES (?,?,?,?,?,?,?,?)
	`, expense.ID, expense.TenantID, expense.Category, expense.Description, expense.Amount,
		expense.DueDate, nullIfEmpty(expense.PaymentDate), formatTime(expense.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	saved := expense
	return &saved, nil
}

func (s *Store) PayExpense(ctx context.Context, tenantID string, expenseID string, paymentDate string) (*domain.Expense, error) {
	if strings.TrimSpace(paymentDate) == "" {
		return nil, store.ErrInvalidInput
	}

	expense, err := scanExpense(s.db.QueryRowContext(ctx, `
		UPDATE expenses
		SET payment_date = ?
		WHERE tenant_id = ? AND id = ?
		RETURNING `+expenseColumns, paymentDate, tenantID, expenseID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &expense, nil
}

func (s *Store) DeleteExpense(ctx context.Context, tenantID string, expenseID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE tenant_id = ? AND id = ?`, tenantID, expenseID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) OpenSession(ctx context.Context, session domain.CashierSession) (*domain.CashierSession, error) {
	if strings.TrimSpace(session.TenantID) == "" || strings.TrimSpace(session.UserID) == "" {
		return nil, store.ErrInvalidInput
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cashier_sessions (id, tenant_id, user_id, operator_name, status, starting_balance, opened_at)
		VALUES (?,?,?,?,?,?,?)
	`, session.ID, session.TenantID, session.UserID, session.OperatorName, session.Status,
		session.StartingBalance, formatTime(session.OpenedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	saved := session
	return &saved, nil
}

func (s *Store) GetOpenSession(ctx context.Context, tenantID string, userID string) (*domain.CashierSession, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM cashier_sessions
		WHERE tenant_id = ? AND user_id = ? AND status = 'open'
		ORDER BY opened_at DESC
		LIMIT 1
	`, tenantID, userID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (s *Store) CloseSession(ctx context.Context, tenantID string, sessionID string, closing domain.SessionClosing) (*domain.CashierSession, error) {
	if closing.ClosedAt.IsZero() {
		closing.ClosedAt = time.Now().UTC()
	}

	session, err := scanSession(s.db.QueryRowContext(ctx, `
		UPDATE cashier_sessions
		SET status = 'closed', total_sales_cash = ?, total_sales_card = ?, total_sales_pix = ?,
			total_expenses = ?, final_balance = ?, closed_at = ?
		WHERE tenant_id = ? AND id = ? AND status = 'open'
		RETURNING `+sessionColumns,
		closing.TotalSalesCash, closing.TotalSalesCard, closing.TotalSalesPix, closing.TotalExpenses,
		closing.FinalBalance, formatTime(closing.ClosedAt), tenantID, sessionID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, display_name, password, role, tenant_id, is_cashier, active, created_at)
		VALUES (?,?,?,?,?,?,1,?)
	`, user.Username, user.DisplayName, user.Password, user.Role, user.TenantID, user.IsCashier, formatTime(user.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, display_name, password, role, tenant_id, is_cashier, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		var createdAt string
		if err := rows.Scan(&user.Username, &user.DisplayName, &user.Password, &user.Role, &user.TenantID,
			&user.IsCashier, &user.Active, &createdAt); err != nil {
			return nil, err
		}
		user.CreatedAt = parseTime(createdAt)
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `UPDATE app_users SET password = ? WHERE username = ?`, password, username)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return time.Time{}
		}
	}
	return t.UTC()
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullDecimal(val *decimal.Decimal) any {
	if val == nil {
		return nil
	}
	return val.String()
}
