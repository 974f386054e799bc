package ledger

import (
	"github.com/shopspring/decimal"

	"cardapio/backend/internal/domain"
)

// ShiftTotals computes today's cash, card and PIX takings from delivered
// orders, today's paid expenses and the open session's float. It is computed
// independently of the historical reconciliation.
func ShiftTotals(orders []domain.Order, expenses []domain.Expense, open *domain.CashierSession, clock Clock) domain.ShiftTotals {
	today := clock.Today()
	totals := domain.ShiftTotals{
		Date:          today,
		Cash:          decimal.Zero,
		Card:          decimal.Zero,
		Pix:           decimal.Zero,
		DailyExpenses: decimal.Zero,
		Float:         decimal.Zero,
	}

	for _, order := range orders {
		if order.Status != domain.OrderStatusDelivered || clock.DateOf(order.CreatedAt) != today {
			continue
		}
		switch order.PaymentMethod {
		case domain.PaymentCash:
			totals.Cash = totals.Cash.Add(order.Total)
		case domain.PaymentCard:
			totals.Card = totals.Card.Add(order.Total)
		case domain.PaymentPix:
			totals.Pix = totals.Pix.Add(order.Total)
		}
	}

	for _, expense := range expenses {
		if expense.Paid() && normalizeDate(expense.PaymentDate) == today {
			totals.DailyExpenses = totals.DailyExpenses.Add(expense.Amount)
		}
	}

	if open != nil && open.Status == domain.SessionStatusOpen {
		totals.SessionID = open.ID
		totals.Float = open.StartingBalance
	}

	totals.TotalSales = totals.Cash.Add(totals.Card).Add(totals.Pix)
	totals.Final = totals.Float.Add(totals.TotalSales).Sub(totals.DailyExpenses)
	return totals
}

// Closing turns shift totals into the fields persisted on a closing session.
func Closing(totals domain.ShiftTotals, clock Clock) domain.SessionClosing {
	return domain.SessionClosing{
		TotalSalesCash: totals.Cash,
		TotalSalesCard: totals.Card,
		TotalSalesPix:  totals.Pix,
		TotalExpenses:  totals.DailyExpenses,
		FinalBalance:   totals.Final,
		ClosedAt:       clock.now().UTC(),
	}
}
