package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"cardapio/backend/internal/domain"
	"cardapio/backend/internal/store"
	"cardapio/backend/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// EnsureSchema creates missing tables and indexes. It is safe to run on every boot.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadSnapshot(ctx context.Context, tenantID string) (*domain.Snapshot, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	snap := &domain.Snapshot{TenantID: tenantID, LoadedAt: time.Now().UTC()}

	settings, err := scanSettings(tx.QueryRowContext(ctx, `
		SELECT tenant_id, name, delivery_fee, service_charge, updated_at
		FROM tenant_settings
		WHERE tenant_id = $1
	`, tenantID))
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
		WHERE tenant_id = $1
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

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanSettings(row *sql.Row) (*domain.TenantSettings, error) {
	var settings domain.TenantSettings
	err := row.Scan(&settings.TenantID, &settings.Name, &settings.DeliveryFee, &settings.ServiceCharge, &settings.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	settings.UpdatedAt = settings.UpdatedAt.UTC()
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
		if err := rows.Scan(&item.ID, &item.TenantID, &item.Name, &item.Category, &item.Price, &item.Cost,
			&item.Available, &item.TrackInventory, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.CreatedAt = item.CreatedAt.UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func queryInventoryEntries(ctx context.Context, q querier, tenantID string) ([]domain.InventoryEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, tenant_id, menu_item_id, quantity, unit_cost, created_at
		FROM inventory_entries
		WHERE tenant_id = $1
		ORDER BY created_at, id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.InventoryEntry, 0, 64)
	for rows.Next() {
		var entry domain.InventoryEntry
		if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.MenuItemID, &entry.Quantity, &entry.UnitCost, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

const orderColumns = `id, tenant_id, placed_by, status, order_type, payment_method, delivery_fee, total,
	change_for, COALESCE(table_id,''), COALESCE(waiter_name,''), COALESCE(notes,''), created_at, updated_at`

func scanOrder(scan func(dest ...any) error) (domain.Order, error) {
	var order domain.Order
	var changeFor decimal.NullDecimal
	err := scan(&order.ID, &order.TenantID, &order.PlacedBy, &order.Status, &order.OrderType, &order.PaymentMethod,
		&order.DeliveryFee, &order.Total, &changeFor, &order.TableID, &order.WaiterName, &order.Notes,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return order, err
	}
	if changeFor.Valid {
		value := changeFor.Decimal
		order.ChangeFor = &value
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, nil
}

func queryOrders(ctx context.Context, q querier, tenantID string) ([]domain.Order, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE tenant_id = $1
		ORDER BY created_at, id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, 256)
	index := make(map[string]int, 256)
	for rows.Next() {
		order, err := scanOrder(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		index[order.ID] = len(orders)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	itemRows, err := q.QueryContext(ctx, `
		SELECT oi.order_id, oi.menu_item_id, oi.name, oi.quantity, oi.unit_price, oi.unit_cost
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.tenant_id = $1
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
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

const expenseColumns = `id, tenant_id, category, description, amount, to_char(due_date, 'YYYY-MM-DD'),
	COALESCE(to_char(payment_date, 'YYYY-MM-DD'), ''), created_at`

func scanExpense(scan func(dest ...any) error) (domain.Expense, error) {
	var expense domain.Expense
	err := scan(&expense.ID, &expense.TenantID, &expense.Category, &expense.Description, &expense.Amount,
		&expense.DueDate, &expense.PaymentDate, &expense.CreatedAt)
	expense.CreatedAt = expense.CreatedAt.UTC()
	return expense, err
}

func queryExpenses(ctx context.Context, q querier, tenantID string) ([]domain.Expense, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE tenant_id = $1
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}

const sessionColumns = `id, tenant_id, user_id, operator_name, status, starting_balance,
	total_sales_cash, total_sales_card, total_sales_pix, total_expenses, final_balance, opened_at, closed_at`

func scanSession(scan func(dest ...any) error) (domain.CashierSession, error) {
	var session domain.CashierSession
	var closedAt sql.NullTime
	err := scan(&session.ID, &session.TenantID, &session.UserID, &session.OperatorName, &session.Status,
		&session.StartingBalance, &session.TotalSalesCash, &session.TotalSalesCard, &session.TotalSalesPix,
		&session.TotalExpenses, &session.FinalBalance, &session.OpenedAt, &closedAt)
	if err != nil {
		return session, err
	}
	session.OpenedAt = session.OpenedAt.UTC()
	if closedAt.Valid {
		at := closedAt.Time.UTC()
		session.ClosedAt = &at
	}
	return session, nil
}

func querySessions(ctx context.Context, q querier, tenantID string) ([]domain.CashierSession, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM cashier_sessions
		WHERE tenant_id = $1
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *Store) GetSettings(ctx context.Context, tenantID string) (*domain.TenantSettings, error) {
	settings, err := scanSettings(s.db.QueryRowContext(ctx, `
		SELECT tenant_id, name, delivery_fee, service_charge, updated_at
		FROM tenant_settings
		WHERE tenant_id = $1
	`, tenantID))
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
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (tenant_id)
		DO UPDATE SET name = EXCLUDED.name, delivery_fee = EXCLUDED.delivery_fee,
			service_charge = EXCLUDED.service_charge, updated_at = EXCLUDED.updated_at
	`, settings.TenantID, settings.Name, settings.DeliveryFee, settings.ServiceCharge, settings.UpdatedAt)
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
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, item.ID, item.TenantID, item.Name, item.Category, item.Price, item.Cost, item.Available, item.TrackInventory, item.CreatedAt)
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

	items, err := queryMenuItems(ctx, s.db, `
		SELECT id, tenant_id, name, category, price, cost, available, track_inventory, created_at
		FROM menu_items
		WHERE tenant_id = $1 AND id = ANY($2)
	`, tenantID, ids)
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
		SELECT $1, $2, m.id, $4, $5, $6
		FROM menu_items m
		WHERE m.id = $3 AND m.tenant_id = $2
	`, entry.ID, entry.TenantID, entry.MenuItemID, entry.Quantity, entry.UnitCost, entry.CreatedAt)
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

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, tenant_id, placed_by, status, order_type, payment_method,
			delivery_fee, total, change_for, table_id, waiter_name, notes, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, order.ID, order.TenantID, order.PlacedBy, order.Status, order.OrderType, order.PaymentMethod,
		order.DeliveryFee, order.Total, nullDecimal(order.ChangeFor), nullIfEmpty(order.TableID),
		nullIfEmpty(order.WaiterName), nullIfEmpty(order.Notes), order.CreatedAt, order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	for i, item := range order.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, line_no, menu_item_id, name, quantity, unit_price, unit_cost)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
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

func (s *Store) loadOrderItems(ctx context.Context, q querier, order *domain.Order) error {
	rows, err := q.QueryContext(ctx, `
		SELECT menu_item_id, name, quantity, unit_price, unit_cost
		FROM order_items
		WHERE order_id = $1
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

func (s *Store) UpdateOrderStatus(ctx context.Context, tenantID string, orderID string, status string) (*domain.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND status NOT IN ('delivered','canceled')
		RETURNING `+orderColumns, tenantID, orderID, status).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.missingOrFinal(ctx, tenantID, orderID)
		}
		return nil, err
	}
	if err := s.loadOrderItems(ctx, s.db, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// missingOrFinal tells apart an unknown order from one whose status can no
// longer change.
func (s *Store) missingOrFinal(ctx context.Context, tenantID string, orderID string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE tenant_id = $1 AND id = $2)`, tenantID, orderID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

func (s *Store) CloseTableOrders(ctx context.Context, tenantID string, tableID string, paymentMethod string) ([]domain.Order, error) {
	if strings.TrimSpace(tableID) == "" {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		UPDATE orders
		SET status = 'delivered', payment_method = $3, updated_at = now()
		WHERE tenant_id = $1 AND table_id = $2 AND status NOT IN ('delivered','canceled')
		RETURNING `+orderColumns, tenantID, tableID, paymentMethod)
	if err != nil {
		return nil, err
	}
	closed := make([]domain.Order, 0, 4)
	for rows.Next() {
		order, err := scanOrder(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, err
		}
		closed = append(closed, order)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range closed {
		if err := s.loadOrderItems(ctx, tx, &closed[i]); err != nil {
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
		VALUES ($1,$2,$3,$4,$5,$6::date,$7::date,$8)
	`, expense.ID, expense.TenantID, expense.Category, expense.Description, expense.Amount,
		expense.DueDate, nullIfEmpty(expense.PaymentDate), expense.CreatedAt)
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
		SET payment_date = $3::date
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+expenseColumns, tenantID, expenseID, paymentDate).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &expense, nil
}

func (s *Store) DeleteExpense(ctx context.Context, tenantID string, expenseID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE tenant_id = $1 AND id = $2`, tenantID, expenseID)
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
		INSERT INTO cashier_sessions (
			id, tenant_id, user_id, operator_name, status, starting_balance,
			total_sales_cash, total_sales_card, total_sales_pix, total_expenses, final_balance, opened_at, closed_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,0,0,0,0,0,$7,NULL)
	`, session.ID, session.TenantID, session.UserID, session.OperatorName, session.Status,
		session.StartingBalance, session.OpenedAt)
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
		WHERE tenant_id = $1 AND user_id = $2 AND status = 'open'
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
		SET status = 'closed', total_sales_cash = $3, total_sales_card = $4, total_sales_pix = $5,
			total_expenses = $6, final_balance = $7, closed_at = $8
		WHERE tenant_id = $1 AND id = $2 AND status = 'open'
		RETURNING `+sessionColumns,
		tenantID, sessionID, closing.TotalSalesCash, closing.TotalSalesCard, closing.TotalSalesPix,
		closing.TotalExpenses, closing.FinalBalance, closing.ClosedAt).Scan)
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
		INSERT INTO app_users (username, display_name, password, role, tenant_id, is_cashier, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,true,$7,now())
	`, user.Username, user.DisplayName, user.Password, user.Role, user.TenantID, user.IsCashier, user.CreatedAt)
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
		if err := rows.Scan(&user.Username, &user.DisplayName, &user.Password, &user.Role, &user.TenantID,
			&user.IsCashier, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
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
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
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
	return *val
}
