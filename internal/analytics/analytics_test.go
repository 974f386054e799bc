package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cardapio/backend/internal/domain"
	"cardapio/backend/internal/ledger"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func orderOn(id string, day int, status string, orderType string, waiter string, items ...domain.OrderItem) domain.Order {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return domain.Order{
		ID:         id,
		Status:     status,
		OrderType:  orderType,
		WaiterName: waiter,
		Items:      items,
		Total:      total,
		CreatedAt:  time.Date(2026, time.March, day, 15, 0, 0, 0, time.UTC),
	}
}

func line(id string, qty int, price string, cost string) domain.OrderItem {
	return domain.OrderItem{MenuItemID: id, Name: "item " + id, Quantity: qty, UnitPrice: dec(price), UnitCost: dec(cost)}
}

func TestSalesSummarizesDeliveredOrders(t *testing.T) {
	snap := &domain.Snapshot{
		TenantID: "rest-1",
		Orders: []domain.Order{
			orderOn("o1", 2, domain.OrderStatusDelivered, domain.OrderTypeDineIn, "Carla", line("burger", 2, "30", "12")),
			orderOn("o2", 3, domain.OrderStatusDelivered, domain.OrderTypeDelivery, "", line("soda", 4, "6", "2"), line("burger", 1, "30", "12")),
			orderOn("o3", 3, domain.OrderStatusCanceled, domain.OrderTypeDineIn, "Carla", line("burger", 10, "30", "12")),
			orderOn("o4", 20, domain.OrderStatusDelivered, domain.OrderTypeDineIn, "Carla", line("burger", 1, "30", "12")),
		},
	}
	clock := ledger.NewClock(time.UTC)
	report := Sales(snap, domain.SalesFilter{From: "2026-03-01", To: "2026-03-10"}, clock)

	if report.OrderCount != 2 {
		t.Fatalf("expected 2 orders, got %d", report.OrderCount)
	}
	if !report.Revenue.Equal(dec("114")) {
		t.Fatalf("expected revenue 114, got %s", report.Revenue)
	}
	// burger 3 x 18 + soda 4 x 4
	if !report.Profit.Equal(dec("70")) {
		t.Fatalf("expected profit 70, got %s", report.Profit)
	}
	if !report.AverageTicket.Equal(dec("57")) {
		t.Fatalf("expected average ticket 57, got %s", report.AverageTicket)
	}
	if report.ItemsPrepared != 7 {
		t.Fatalf("expected 7 items, got %d", report.ItemsPrepared)
	}
	if len(report.TopProducts) != 2 || report.TopProducts[0].MenuItemID != "burger" {
		t.Fatalf("expected burger to lead top products, got %+v", report.TopProducts)
	}
	if len(report.Waiters) != 1 || report.Waiters[0].Name != "Carla" || report.Waiters[0].Orders != 1 {
		t.Fatalf("unexpected waiters: %+v", report.Waiters)
	}
	// no service charge configured: flat 10% of 60
	if !report.Waiters[0].Commission.Equal(dec("6")) {
		t.Fatalf("expected commission 6, got %s", report.Waiters[0].Commission)
	}
}

func TestSalesCommissionWithServiceCharge(t *testing.T) {
	snap := &domain.Snapshot{
		Settings: domain.TenantSettings{ServiceCharge: dec("10")},
		Orders: []domain.Order{
			orderOn("o1", 2, domain.OrderStatusDelivered, domain.OrderTypeDineIn, "Davi", line("fish", 1, "110", "40")),
		},
	}
	report := Sales(snap, domain.SalesFilter{}, ledger.NewClock(time.UTC))
	if !report.Waiters[0].Commission.Equal(dec("10")) {
		t.Fatalf("expected commission 10, got %s", report.Waiters[0].Commission)
	}
}

func TestSalesFiltersByTypeAndWaiter(t *testing.T) {
	snap := &domain.Snapshot{
		Orders: []domain.Order{
			orderOn("o1", 2, domain.OrderStatusDelivered, domain.OrderTypeDineIn, "Carla", line("a", 1, "10", "5")),
			orderOn("o2", 2, domain.OrderStatusDelivered, domain.OrderTypeDelivery, "Carla", line("a", 1, "10", "5")),
			orderOn("o3", 2, domain.OrderStatusDelivered, domain.OrderTypeDineIn, "Davi", line("a", 1, "10", "5")),
		},
	}
	clock := ledger.NewClock(time.UTC)
	cases := []struct {
		name   string
		filter domain.SalesFilter
		want   int
	}{
		{"all", domain.SalesFilter{OrderType: "all"}, 3},
		{"dine in", domain.SalesFilter{OrderType: domain.OrderTypeDineIn}, 2},
		{"waiter", domain.SalesFilter{Waiter: "Carla"}, 2},
		{"both", domain.SalesFilter{OrderType: domain.OrderTypeDineIn, Waiter: "Davi"}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sales(snap, tc.filter, clock).OrderCount; got != tc.want {
				t.Fatalf("expected %d orders, got %d", tc.want, got)
			}
		})
	}
}

func TestSalesKeepsTopFiveProducts(t *testing.T) {
	items := []domain.OrderItem{}
	for i, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		items = append(items, line(id, i+1, "10", "1"))
	}
	snap := &domain.Snapshot{
		Orders: []domain.Order{orderOn("o1", 2, domain.OrderStatusDelivered, domain.OrderTypeDineIn, "", items...)},
	}
	report := Sales(snap, domain.SalesFilter{}, ledger.NewClock(time.UTC))
	if len(report.TopProducts) != 5 {
		t.Fatalf("expected 5 products, got %d", len(report.TopProducts))
	}
	if report.TopProducts[0].MenuItemID != "g" {
		t.Fatalf("expected most profitable product first, got %s", report.TopProducts[0].MenuItemID)
	}
}

func TestStockDerivesFromEntriesAndSales(t *testing.T) {
	first := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	snap := &domain.Snapshot{
		MenuItems: []domain.MenuItem{
			{ID: "beer", Name: "Beer", Price: dec("12"), Cost: dec("5"), TrackInventory: true},
			{ID: "wine", Name: "Wine", Price: dec("80"), Cost: dec("30"), TrackInventory: true},
			{ID: "pasta", Name: "Pasta", Price: dec("45"), Cost: dec("15")},
		},
		InventoryEntries: []domain.InventoryEntry{
			{ID: "i1", MenuItemID: "beer", Quantity: 24, UnitCost: dec("4.50"), CreatedAt: first},
			{ID: "i2", MenuItemID: "beer", Quantity: 6, UnitCost: dec("4.80"), CreatedAt: first.Add(48 * time.Hour)},
		},
		Orders: []domain.Order{
			orderOn("o1", 4, domain.OrderStatusDelivered, domain.OrderTypeDineIn, "", line("beer", 20, "12", "5")),
			orderOn("o2", 4, domain.OrderStatusCanceled, domain.OrderTypeDineIn, "", line("beer", 5, "12", "5")),
			orderOn("o3", 4, domain.OrderStatusPreparing, domain.OrderTypeDineIn, "", line("beer", 3, "12", "5")),
		},
	}

	levels := Stock(snap)
	if len(levels) != 2 {
		t.Fatalf("expected 2 tracked items, got %d", len(levels))
	}
	beer := levels[0]
	if beer.MenuItemID != "beer" || beer.TotalIn != 30 || beer.TotalSold != 20 || beer.Stock != 10 {
		t.Fatalf("unexpected beer level: %+v", beer)
	}
	if !beer.LastUnitCost.Equal(dec("4.80")) {
		t.Fatalf("expected last unit cost 4.80, got %s", beer.LastUnitCost)
	}
	if beer.LastEntryAt == nil || !beer.LastEntryAt.Equal(first.Add(48*time.Hour)) {
		t.Fatalf("unexpected last entry date: %v", beer.LastEntryAt)
	}
	if beer.Critical {
		t.Fatalf("10 of 30 should not be critical")
	}
	if !beer.StockValue.Equal(dec("120")) || !beer.SoldValue.Equal(dec("240")) {
		t.Fatalf("unexpected values: stock=%s sold=%s", beer.StockValue, beer.SoldValue)
	}

	wine := levels[1]
	if wine.TotalIn != 0 || wine.Critical || !wine.LastUnitCost.Equal(dec("30")) {
		t.Fatalf("unexpected wine level: %+v", wine)
	}
}

func TestStockFlagsCriticalItems(t *testing.T) {
	snap := &domain.Snapshot{
		MenuItems:        []domain.MenuItem{{ID: "beer", Name: "Beer", Price: dec("12"), TrackInventory: true}},
		InventoryEntries: []domain.InventoryEntry{{ID: "i1", MenuItemID: "beer", Quantity: 10, CreatedAt: time.Now()}},
		Orders: []domain.Order{
			orderOn("o1", 4, domain.OrderStatusDelivered, domain.OrderTypeDineIn, "", line("beer", 8, "12", "5")),
		},
	}
	if levels := Stock(snap); !levels[0].Critical {
		t.Fatalf("expected 2 of 10 to be critical, got %+v", levels[0])
	}
}
