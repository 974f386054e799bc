package ledger

import (
	"slices"
	"strconv"

	"github.com/shopspring/decimal"

	"cardapio/backend/internal/domain"
)

// Reconcile walks the buckets in ascending date order and carries each day's
// final balance into the next day's opening balance. Balances are never
// clamped; a negative final balance is reported as is.
func Reconcile(buckets map[string]domain.DayBucket) []domain.DayRecord {
	dates := make([]string, 0, len(buckets))
	for date := range buckets {
		dates = append(dates, date)
	}
	slices.Sort(dates)

	running := decimal.Zero
	history := make([]domain.DayRecord, 0, len(dates))
	for _, date := range dates {
		b := buckets[date]
		opening := running.Add(b.Float)
		final := opening.Add(b.Inflow).Sub(b.Outflow)
		history = append(history, domain.DayRecord{
			Date:            date,
			Day:             dayOfMonth(date),
			PrevAccumulated: running,
			Float:           b.Float,
			OpeningBalance:  opening,
			Inflow:          b.Inflow,
			Outflow:         b.Outflow,
			FinalBalance:    final,
			Cash:            b.Cash,
			Card:            b.Card,
			Pix:             b.Pix,
			Operators:       b.Operators,
		})
		running = final
	}
	return history
}

// History aggregates and reconciles a snapshot in one step.
func History(snapshot *domain.Snapshot, clock Clock) []domain.DayRecord {
	if snapshot == nil {
		return []domain.DayRecord{}
	}
	return Reconcile(Aggregate(snapshot.Orders, snapshot.Expenses, snapshot.Sessions, clock))
}

// Balance is the accumulated balance after the last active day.
func Balance(history []domain.DayRecord) decimal.Decimal {
	if len(history) == 0 {
		return decimal.Zero
	}
	return history[len(history)-1].FinalBalance
}

func dayOfMonth(date string) int {
	if len(date) < len(domain.DateLayout) {
		return 0
	}
	day, err := strconv.Atoi(date[8:10])
	if err != nil {
		return 0
	}
	return day
}
