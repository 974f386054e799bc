package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"cardapio/backend/internal/domain"
	"cardapio/backend/internal/ledger"
)

const topProductLimit = 5

var (
	hundred              = decimal.NewFromInt(100)
	defaultServiceCharge = decimal.NewFromInt(10)
)

// Sales summarizes delivered orders whose business-local date falls within
// the filter's inclusive range.
func Sales(snapshot *domain.Snapshot, filter domain.SalesFilter, clock ledger.Clock) domain.SalesReport {
	report := domain.SalesReport{
		From:          filter.From,
		To:            filter.To,
		OrderType:     defaultString(filter.OrderType, "all"),
		Revenue:       decimal.Zero,
		Profit:        decimal.Zero,
		AverageTicket: decimal.Zero,
		TopProducts:   []domain.ProductPerformance{},
		Waiters:       []domain.WaiterPerformance{},
	}
	if snapshot == nil {
		return report
	}
	report.TenantID = snapshot.TenantID

	rate := commissionRate(snapshot.Settings.ServiceCharge)
	products := make(map[string]*domain.ProductPerformance)
	waiters := make(map[string]*domain.WaiterPerformance)

	for _, order := range snapshot.Orders {
		if !matches(order, filter, clock) {
			continue
		}
		report.OrderCount++
		report.Revenue = report.Revenue.Add(order.Total)

		orderItems := 0
		for _, item := range order.Items {
			profit := item.UnitPrice.Sub(item.UnitCost).Mul(decimal.NewFromInt(int64(item.Quantity)))
			report.Profit = report.Profit.Add(profit)
			report.ItemsPrepared += item.Quantity
			orderItems += item.Quantity

			perf, ok := products[item.MenuItemID]
			if !ok {
				perf = &domain.ProductPerformance{MenuItemID: item.MenuItemID, Name: item.Name, Profit: decimal.Zero}
				products[item.MenuItemID] = perf
			}
			perf.Quantity += item.Quantity
			perf.Profit = perf.Profit.Add(profit)
		}

		if order.WaiterName == "" {
			continue
		}
		waiter, ok := waiters[order.WaiterName]
		if !ok {
			waiter = &domain.WaiterPerformance{Name: order.WaiterName, Revenue: decimal.Zero, Commission: decimal.Zero}
			waiters[order.WaiterName] = waiter
		}
		waiter.Orders++
		waiter.Items += orderItems
		waiter.Revenue = waiter.Revenue.Add(order.Total)
		waiter.Commission = waiter.Commission.Add(order.Total.Mul(rate))
	}

	if report.OrderCount > 0 {
		report.AverageTicket = report.Revenue.Div(decimal.NewFromInt(int64(report.OrderCount))).Round(2)
	}

	for _, perf := range products {
		report.TopProducts = append(report.TopProducts, *perf)
	}
	sort.Slice(report.TopProducts, func(i, j int) bool {
		a, b := report.TopProducts[i], report.TopProducts[j]
		if !a.Profit.Equal(b.Profit) {
			return a.Profit.GreaterThan(b.Profit)
		}
		return a.Name < b.Name
	})
	if len(report.TopProducts) > topProductLimit {
		report.TopProducts = report.TopProducts[:topProductLimit]
	}

	for _, waiter := range waiters {
		waiter.Commission = waiter.Commission.Round(2)
		report.Waiters = append(report.Waiters, *waiter)
	}
	sort.Slice(report.Waiters, func(i, j int) bool {
		a, b := report.Waiters[i], report.Waiters[j]
		if a.Orders != b.Orders {
			return a.Orders > b.Orders
		}
		return a.Name < b.Name
	})

	return report
}

// commissionRate is the share of an order total owed to its waiter:
// rate / (1 + rate) for a configured service charge, otherwise a flat 10%.
func commissionRate(serviceCharge decimal.Decimal) decimal.Decimal {
	if !serviceCharge.IsPositive() {
		return defaultServiceCharge.Div(hundred)
	}
	rate := serviceCharge.Div(hundred)
	return rate.Div(decimal.NewFromInt(1).Add(rate))
}

func matches(order domain.Order, filter domain.SalesFilter, clock ledger.Clock) bool {
	if order.Status != domain.OrderStatusDelivered {
		return false
	}
	date := clock.DateOf(order.CreatedAt)
	if filter.From != "" && date < filter.From {
		return false
	}
	if filter.To != "" && date > filter.To {
		return false
	}
	if filter.OrderType != "" && filter.OrderType != "all" && order.OrderType != filter.OrderType {
		return false
	}
	if filter.Waiter != "" && filter.Waiter != "all" && order.WaiterName != filter.Waiter {
		return false
	}
	return true
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
