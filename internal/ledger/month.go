package ledger

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"cardapio/backend/internal/domain"
)

// Month projects the reconciled history onto one calendar month. Days without
// activity carry the nearest earlier final balance flat and are marked empty.
// Days are returned most recent first; with todayOnly only the entry matching
// the clock's current date is kept.
func Month(history []domain.DayRecord, year int, month time.Month, todayOnly bool, clock Clock) domain.MonthView {
	daysInMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	days := make([]domain.DayRecord, 0, daysInMonth)

	carried := decimal.Zero
	next := 0
	for d := 1; d <= daysInMonth; d++ {
		date := fmt.Sprintf("%04d-%02d-%02d", year, int(month), d)
		for next < len(history) && history[next].Date < date {
			carried = history[next].FinalBalance
			next++
		}
		if next < len(history) && history[next].Date == date {
			days = append(days, history[next])
			continue
		}
		days = append(days, emptyDay(date, d, carried))
	}

	today := clock.Today()
	if todayOnly {
		filtered := make([]domain.DayRecord, 0, 1)
		for _, day := range days {
			if day.Date == today {
				filtered = append(filtered, day)
			}
		}
		days = filtered
	} else {
		slices.Reverse(days)
	}

	return domain.MonthView{
		Year:      year,
		Month:     int(month),
		TodayOnly: todayOnly,
		Today:     today,
		Days:      days,
		Summary:   Summarize(days),
	}
}

// Summarize totals inflow and outflow over the non-empty days; the closing
// balance is the first (most recent) displayed day's final balance.
func Summarize(days []domain.DayRecord) domain.MonthSummary {
	summary := domain.MonthSummary{
		TotalInflow:    decimal.Zero,
		TotalOutflow:   decimal.Zero,
		ClosingBalance: decimal.Zero,
	}
	for _, day := range days {
		if day.Empty {
			continue
		}
		summary.TotalInflow = summary.TotalInflow.Add(day.Inflow)
		summary.TotalOutflow = summary.TotalOutflow.Add(day.Outflow)
	}
	if len(days) > 0 {
		summary.ClosingBalance = days[0].FinalBalance
	}
	return summary
}

func emptyDay(date string, day int, carried decimal.Decimal) domain.DayRecord {
	return domain.DayRecord{
		Date:            date,
		Day:             day,
		PrevAccumulated: carried,
		Float:           decimal.Zero,
		OpeningBalance:  carried,
		Inflow:          decimal.Zero,
		Outflow:         decimal.Zero,
		FinalBalance:    carried,
		Cash:            decimal.Zero,
		Card:            decimal.Zero,
		Pix:             decimal.Zero,
		Operators:       domain.DefaultOperatorLabel,
		Empty:           true,
	}
}
