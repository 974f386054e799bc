package ledger

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"cardapio/backend/internal/domain"
)

// Aggregate groups delivered orders, paid expenses and cashier sessions into
// per-date buckets keyed by business-local date. Only dates with at least one
// contributing row are present.
func Aggregate(orders []domain.Order, expenses []domain.Expense, sessions []domain.CashierSession, clock Clock) map[string]domain.DayBucket {
	buckets := make(map[string]domain.DayBucket)
	bucket := func(date string) domain.DayBucket {
		if b, ok := buckets[date]; ok {
			return b
		}
		return domain.DayBucket{
			Date:    date,
			Inflow:  decimal.Zero,
			Outflow: decimal.Zero,
			Float:   decimal.Zero,
			Cash:    decimal.Zero,
			Card:    decimal.Zero,
			Pix:     decimal.Zero,
		}
	}

	for _, order := range orders {
		if order.Status != domain.OrderStatusDelivered {
			continue
		}
		date := clock.DateOf(order.CreatedAt)
		b := bucket(date)
		b.Inflow = b.Inflow.Add(order.Total)
		switch order.PaymentMethod {
		case domain.PaymentCash:
			b.Cash = b.Cash.Add(order.Total)
		case domain.PaymentCard:
			b.Card = b.Card.Add(order.Total)
		case domain.PaymentPix:
			b.Pix = b.Pix.Add(order.Total)
		}
		buckets[date] = b
	}

	for _, expense := range expenses {
		if !expense.Paid() {
			continue
		}
		date := normalizeDate(expense.PaymentDate)
		b := bucket(date)
		b.Outflow = b.Outflow.Add(expense.Amount)
		buckets[date] = b
	}

	operators := make(map[string][]string)
	for _, session := range sortedSessions(sessions) {
		date := clock.DateOf(session.OpenedAt)
		b := bucket(date)
		b.Float = b.Float.Add(session.StartingBalance)
		buckets[date] = b

		name := strings.TrimSpace(session.OperatorName)
		if name != "" && !slices.Contains(operators[date], name) {
			operators[date] = append(operators[date], name)
		}
	}

	for date, b := range buckets {
		b.Operators = domain.DefaultOperatorLabel
		if names := operators[date]; len(names) > 0 {
			b.Operators = strings.Join(names, ", ")
		}
		buckets[date] = b
	}
	return buckets
}

// sortedSessions orders sessions by opening time so operator labels do not
// depend on the order rows were fetched in.
func sortedSessions(sessions []domain.CashierSession) []domain.CashierSession {
	sorted := slices.Clone(sessions)
	slices.SortStableFunc(sorted, func(a, b domain.CashierSession) int {
		if c := a.OpenedAt.Compare(b.OpenedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return sorted
}

// normalizeDate trims timestamps stored as full ISO strings down to the date part.
func normalizeDate(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > len(domain.DateLayout) {
		return value[:len(domain.DateLayout)]
	}
	return value
}
