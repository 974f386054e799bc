package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	TenantID    string `json:"tenant_id,omitempty"`
	IsCashier   bool   `json:"is_cashier"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor is the authenticated caller attached to a request context.
type Actor struct {
	Username    string
	DisplayName string
	Role        string
	TenantID    string
	IsCashier   bool
}

func (a Actor) IsTenantAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleTenantAdmin
}

type UserAccount struct {
	Username    string
	DisplayName string
	Password    string
	Role        string
	TenantID    string
	IsCashier   bool
	Active      bool
	CreatedAt   time.Time
}

type StaffCreateRequest struct {
	Username    string `json:"username" validate:"required,min=4,max=64"`
	DisplayName string `json:"display_name" validate:"required,max=120"`
	Password    string `json:"password" validate:"required,min=6"`
	IsCashier   bool   `json:"is_cashier"`
}

type StaffUser struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	TenantID    string    `json:"tenant_id"`
	IsCashier   bool      `json:"is_cashier"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type TenantSettings struct {
	TenantID    string          `json:"tenant_id"`
	Name        string          `json:"name"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	// ServiceCharge is a percentage; zero means the restaurant does not charge one.
	ServiceCharge decimal.Decimal `json:"service_charge"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type SettingsUpdateRequest struct {
	Name          string          `json:"name" validate:"required,max=120"`
	DeliveryFee   decimal.Decimal `json:"delivery_fee"`
	ServiceCharge decimal.Decimal `json:"service_charge"`
}

type MenuItem struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenant_id"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	Price          decimal.Decimal `json:"price"`
	Cost           decimal.Decimal `json:"cost"`
	Available      bool            `json:"available"`
	TrackInventory bool            `json:"track_inventory"`
	CreatedAt      time.Time       `json:"created_at"`
}

type MenuItemCreateRequest struct {
	Name           string          `json:"name" validate:"required,max=120"`
	Category       string          `json:"category" validate:"required,max=60"`
	Price          decimal.Decimal `json:"price"`
	Cost           decimal.Decimal `json:"cost"`
	TrackInventory bool            `json:"track_inventory"`
}

type InventoryEntry struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	MenuItemID string          `json:"menu_item_id"`
	Quantity   int             `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	CreatedAt  time.Time       `json:"created_at"`
}

type InventoryEntryRequest struct {
	MenuItemID string          `json:"menu_item_id" validate:"required"`
	Quantity   int             `json:"quantity" validate:"required,gt=0"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
}

// OrderItem keeps the price and cost as they were when the order was placed.
type OrderItem struct {
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
}

type Order struct {
	ID            string           `json:"id"`
	TenantID      string           `json:"tenant_id"`
	PlacedBy      string           `json:"placed_by,omitempty"`
	Status        string           `json:"status"`
	OrderType     string           `json:"order_type"`
	PaymentMethod string           `json:"payment_method"`
	Items         []OrderItem      `json:"items"`
	DeliveryFee   decimal.Decimal  `json:"delivery_fee"`
	Total         decimal.Decimal  `json:"total"`
	ChangeFor     *decimal.Decimal `json:"change_for,omitempty"`
	TableID       string           `json:"table_id,omitempty"`
	WaiterName    string           `json:"waiter_name,omitempty"`
	Notes         string           `json:"notes,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type OrderLineRequest struct {
	MenuItemID string `json:"menu_item_id" validate:"required"`
	Quantity   int    `json:"quantity" validate:"required,gt=0"`
}

type OrderCreateRequest struct {
	OrderType     string             `json:"order_type" validate:"required,oneof=delivery dine_in"`
	PaymentMethod string             `json:"payment_method" validate:"required,oneof=pix card cash"`
	Items         []OrderLineRequest `json:"items" validate:"required,min=1,dive"`
	TableID       string             `json:"table_id,omitempty" validate:"required_if=OrderType dine_in"`
	ChangeFor     *decimal.Decimal   `json:"change_for,omitempty"`
	WaiterName    string             `json:"waiter_name,omitempty" validate:"max=120"`
	Notes         string             `json:"notes,omitempty" validate:"max=500"`
}

type OrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=received preparing out_for_delivery delivered canceled"`
}

type TableCloseRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=pix card cash"`
}

type TableCloseResponse struct {
	TableID string  `json:"table_id"`
	Orders  []Order `json:"orders"`
}

type Expense struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     string          `json:"due_date"`
	// PaymentDate is a YYYY-MM-DD business date; empty while unpaid.
	PaymentDate string    `json:"payment_date,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (e Expense) Paid() bool {
	return e.PaymentDate != ""
}

type ExpenseCreateRequest struct {
	Category    string          `json:"category" validate:"required,max=60"`
	Description string          `json:"description" validate:"required,max=240"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     string          `json:"due_date" validate:"required,datetime=2006-01-02"`
	PaymentDate string          `json:"payment_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type ExpensePayRequest struct {
	PaymentDate string `json:"payment_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type CashierSession struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenant_id"`
	UserID          string          `json:"user_id"`
	OperatorName    string          `json:"operator_name"`
	Status          string          `json:"status"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
	TotalSalesCash  decimal.Decimal `json:"total_sales_cash"`
	TotalSalesCard  decimal.Decimal `json:"total_sales_card"`
	TotalSalesPix   decimal.Decimal `json:"total_sales_pix"`
	TotalExpenses   decimal.Decimal `json:"total_expenses"`
	FinalBalance    decimal.Decimal `json:"final_balance"`
	OpenedAt        time.Time       `json:"opened_at"`
	ClosedAt        *time.Time      `json:"closed_at,omitempty"`
}

type SessionOpenRequest struct {
	StartingBalance decimal.Decimal `json:"starting_balance"`
	OperatorName    string          `json:"operator_name,omitempty" validate:"max=120"`
}

// SessionClosing carries the totals written onto a session when it closes.
type SessionClosing struct {
	TotalSalesCash decimal.Decimal
	TotalSalesCard decimal.Decimal
	TotalSalesPix  decimal.Decimal
	TotalExpenses  decimal.Decimal
	FinalBalance   decimal.Decimal
	ClosedAt       time.Time
}

type SessionResponse struct {
	Session CashierSession `json:"session"`
	Totals  ShiftTotals    `json:"totals"`
}

// Snapshot is the full set of rows for one tenant at LoadedAt. It is never
// mutated after construction; a refresh produces a new one.
type Snapshot struct {
	TenantID         string           `json:"tenant_id"`
	Revision         uint64           `json:"revision"`
	Fingerprint      string           `json:"fingerprint"`
	LoadedAt         time.Time        `json:"loaded_at"`
	Settings         TenantSettings   `json:"settings"`
	MenuItems        []MenuItem       `json:"menu_items"`
	InventoryEntries []InventoryEntry `json:"inventory_entries"`
	Orders           []Order          `json:"orders"`
	Expenses         []Expense        `json:"expenses"`
	Sessions         []CashierSession `json:"sessions"`
}

// DayBucket holds the raw per-date sums before balances are carried.
type DayBucket struct {
	Date      string
	Inflow    decimal.Decimal
	Outflow   decimal.Decimal
	Float     decimal.Decimal
	Cash      decimal.Decimal
	Card      decimal.Decimal
	Pix       decimal.Decimal
	Operators string
}

type DayRecord struct {
	Date            string          `json:"date"`
	Day             int             `json:"day"`
	PrevAccumulated decimal.Decimal `json:"prev_accumulated"`
	Float           decimal.Decimal `json:"float"`
	OpeningBalance  decimal.Decimal `json:"opening_balance"`
	Inflow          decimal.Decimal `json:"inflow"`
	Outflow         decimal.Decimal `json:"outflow"`
	FinalBalance    decimal.Decimal `json:"final_balance"`
	Cash            decimal.Decimal `json:"cash"`
	Card            decimal.Decimal `json:"card"`
	Pix             decimal.Decimal `json:"pix"`
	Operators       string          `json:"operators"`
	Empty           bool            `json:"empty"`
}

type MonthSummary struct {
	TotalInflow    decimal.Decimal `json:"total_inflow"`
	TotalOutflow   decimal.Decimal `json:"total_outflow"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}

type MonthView struct {
	TenantID  string       `json:"tenant_id"`
	Year      int          `json:"year"`
	Month     int          `json:"month"`
	TodayOnly bool         `json:"today_only"`
	Today     string       `json:"today"`
	Days      []DayRecord  `json:"days"`
	Summary   MonthSummary `json:"summary"`
	Revision  uint64       `json:"revision"`
}

type CashFlowHistory struct {
	TenantID string          `json:"tenant_id"`
	Days     []DayRecord     `json:"days"`
	Balance  decimal.Decimal `json:"balance"`
}

type ShiftTotals struct {
	Date          string          `json:"date"`
	SessionID     string          `json:"session_id,omitempty"`
	Cash          decimal.Decimal `json:"cash"`
	Card          decimal.Decimal `json:"card"`
	Pix           decimal.Decimal `json:"pix"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	DailyExpenses decimal.Decimal `json:"daily_expenses"`
	Float         decimal.Decimal `json:"float"`
	Final         decimal.Decimal `json:"final"`
}

type StockLevel struct {
	MenuItemID   string          `json:"menu_item_id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	TotalIn      int             `json:"total_in"`
	TotalSold    int             `json:"total_sold"`
	Stock        int             `json:"stock"`
	LastEntryAt  *time.Time      `json:"last_entry_at,omitempty"`
	LastUnitCost decimal.Decimal `json:"last_unit_cost"`
	Critical     bool            `json:"critical"`
	SoldValue    decimal.Decimal `json:"sold_value"`
	StockValue   decimal.Decimal `json:"stock_value"`
}

type InventoryReport struct {
	TenantID string       `json:"tenant_id"`
	Items    []StockLevel `json:"items"`
}

type SalesFilter struct {
	From      string
	To        string
	OrderType string
	Waiter    string
}

type ProductPerformance struct {
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Profit     decimal.Decimal `json:"profit"`
}

type WaiterPerformance struct {
	Name       string          `json:"name"`
	Orders     int             `json:"orders"`
	Items      int             `json:"items"`
	Revenue    decimal.Decimal `json:"revenue"`
	Commission decimal.Decimal `json:"commission"`
}

type SalesReport struct {
	TenantID      string               `json:"tenant_id"`
	From          string               `json:"from"`
	To            string               `json:"to"`
	OrderType     string               `json:"order_type"`
	Revenue       decimal.Decimal      `json:"revenue"`
	Profit        decimal.Decimal      `json:"profit"`
	OrderCount    int                  `json:"order_count"`
	ItemsPrepared int                  `json:"items_prepared"`
	AverageTicket decimal.Decimal      `json:"average_ticket"`
	TopProducts   []ProductPerformance `json:"top_products"`
	Waiters       []WaiterPerformance  `json:"waiters"`
}

const (
	RoleAdmin       = "admin"
	RoleTenantAdmin = "admin_restaurante"
	RoleStaff       = "staff"
	RoleCustomer    = "customer"
)

const (
	OrderStatusReceived       = "received"
	OrderStatusPreparing      = "preparing"
	OrderStatusOutForDelivery = "out_for_delivery"
	OrderStatusDelivered      = "delivered"
	OrderStatusCanceled       = "canceled"
)

const (
	PaymentPix  = "pix"
	PaymentCard = "card"
	PaymentCash = "cash"
)

const (
	OrderTypeDelivery = "delivery"
	OrderTypeDineIn   = "dine_in"
)

const (
	SessionStatusOpen   = "open"
	SessionStatusClosed = "closed"
)

// DefaultOperatorLabel is shown for days without any named cashier operator.
const DefaultOperatorLabel = "Sistema"

const DateLayout = "2006-01-02"
