package ledger

import (
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cardapio/backend/internal/domain"
)

var brt = time.FixedZone("BRT", -3*60*60)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func at(date string, hour int) time.Time {
	day, err := time.ParseInLocation(domain.DateLayout, date, brt)
	if err != nil {
		panic(err)
	}
	return day.Add(time.Duration(hour) * time.Hour)
}

func deliveredOrder(id string, date string, total string, method string) domain.Order {
	return domain.Order{
		ID:            id,
		Status:        domain.OrderStatusDelivered,
		PaymentMethod: method,
		Total:         dec(total),
		CreatedAt:     at(date, 12),
	}
}

func session(id string, operator string, date string, float string) domain.CashierSession {
	return domain.CashierSession{
		ID:              id,
		OperatorName:    operator,
		Status:          domain.SessionStatusClosed,
		StartingBalance: dec(float),
		OpenedAt:        at(date, 9),
	}
}

func paidExpense(id string, due string, paid string, amount string) domain.Expense {
	return domain.Expense{ID: id, Amount: dec(amount), DueDate: due, PaymentDate: paid}
}

func scenarioSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Orders:   []domain.Order{deliveredOrder("o1", "2026-01-01", "50", domain.PaymentCash)},
		Expenses: []domain.Expense{paidExpense("e1", "2026-01-02", "2026-01-02", "30")},
		Sessions: []domain.CashierSession{session("s1", "Ana", "2026-01-01", "100")},
	}
}

func findDay(t *testing.T, days []domain.DayRecord, date string) domain.DayRecord {
	t.Helper()
	for _, day := range days {
		if day.Date == date {
			return day
		}
	}
	t.Fatalf("day %s not found", date)
	return domain.DayRecord{}
}

func assertAmount(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: expected %s, got %s", label, want, got.String())
	}
}

func TestScenarioCarriesBalanceIntoEmptyDay(t *testing.T) {
	clock := FixedClock(brt, at("2026-01-20", 10))
	history := History(scenarioSnapshot(), clock)
	if len(history) != 2 {
		t.Fatalf("expected 2 active days, got %d", len(history))
	}

	day1 := findDay(t, history, "2026-01-01")
	assertAmount(t, "day 1 opening", day1.OpeningBalance, "100")
	assertAmount(t, "day 1 final", day1.FinalBalance, "150")

	day2 := findDay(t, history, "2026-01-02")
	assertAmount(t, "day 2 prev", day2.PrevAccumulated, "150")
	assertAmount(t, "day 2 opening", day2.OpeningBalance, "150")
	assertAmount(t, "day 2 final", day2.FinalBalance, "120")

	view := Month(history, 2026, time.January, false, clock)
	day3 := findDay(t, view.Days, "2026-01-03")
	if !day3.Empty {
		t.Fatalf("expected day 3 to be an empty placeholder")
	}
	assertAmount(t, "day 3 opening", day3.OpeningBalance, "120")
	assertAmount(t, "day 3 final", day3.FinalBalance, "120")
	assertAmount(t, "day 3 prev", day3.PrevAccumulated, "120")
}

func TestConservationAcrossDays(t *testing.T) {
	snap := &domain.Snapshot{
		Orders: []domain.Order{
			deliveredOrder("o1", "2026-02-01", "80.50", domain.PaymentPix),
			deliveredOrder("o2", "2026-02-03", "19.90", domain.PaymentCard),
			deliveredOrder("o3", "2026-02-10", "42", domain.PaymentCash),
		},
		Expenses: []domain.Expense{
			paidExpense("e1", "2026-02-01", "2026-02-05", "200"),
			paidExpense("e2", "2026-02-08", "2026-02-10", "12.35"),
			{ID: "e3", Amount: dec("999"), DueDate: "2026-02-11"},
		},
		Sessions: []domain.CashierSession{
			session("s1", "Ana", "2026-02-01", "50"),
			session("s2", "Bruno", "2026-02-10", "25"),
		},
	}
	history := History(snap, NewClock(brt))

	// floats 75 + inflow 142.40 - outflow 212.35
	assertAmount(t, "accumulated balance", Balance(history), "5.05")

	for i := 1; i < len(history); i++ {
		prev, cur := history[i-1], history[i]
		if prev.Date >= cur.Date {
			t.Fatalf("history not ascending: %s then %s", prev.Date, cur.Date)
		}
		if !cur.PrevAccumulated.Equal(prev.FinalBalance) {
			t.Fatalf("%s prev accumulated %s does not match %s final %s", cur.Date, cur.PrevAccumulated, prev.Date, prev.FinalBalance)
		}
		if !cur.OpeningBalance.Equal(prev.FinalBalance.Add(cur.Float)) {
			t.Fatalf("%s opening %s is not previous final plus float", cur.Date, cur.OpeningBalance)
		}
	}

	for _, filter := range []bool{false, true} {
		view := Month(history, 2026, time.March, filter, FixedClock(brt, at("2026-03-15", 8)))
		assertAmount(t, "march closing balance", view.Summary.ClosingBalance, "5.05")
	}
}

func TestNegativeBalanceIsNotClamped(t *testing.T) {
	snap := &domain.Snapshot{
		Expenses: []domain.Expense{paidExpense("e1", "2026-03-01", "2026-03-02", "70")},
		Sessions: []domain.CashierSession{session("s1", "", "2026-03-01", "20")},
	}
	history := History(snap, NewClock(brt))
	assertAmount(t, "final", Balance(history), "-50")
}

func TestReconcileIsIdempotentAndOrderIndependent(t *testing.T) {
	snap := &domain.Snapshot{
		Orders: []domain.Order{
			deliveredOrder("o1", "2026-04-01", "10", domain.PaymentCash),
			deliveredOrder("o2", "2026-04-01", "15.25", domain.PaymentPix),
			deliveredOrder("o3", "2026-04-02", "7", domain.PaymentCard),
		},
		Expenses: []domain.Expense{
			paidExpense("e1", "2026-04-01", "2026-04-02", "3.10"),
			paidExpense("e2", "2026-04-01", "2026-04-01", "1"),
		},
		Sessions: []domain.CashierSession{
			session("s1", "Bruno", "2026-04-01", "30"),
			session("s2", "Ana", "2026-04-01", "20"),
		},
	}
	clock := NewClock(brt)
	first := History(snap, clock)
	second := History(snap, clock)

	reversed := &domain.Snapshot{
		Orders:   slices.Clone(snap.Orders),
		Expenses: slices.Clone(snap.Expenses),
		Sessions: slices.Clone(snap.Sessions),
	}
	slices.Reverse(reversed.Orders)
	slices.Reverse(reversed.Expenses)
	slices.Reverse(reversed.Sessions)
	third := History(reversed, clock)

	for _, other := range [][]domain.DayRecord{second, third} {
		if len(other) != len(first) {
			t.Fatalf("expected %d days, got %d", len(first), len(other))
		}
		for i := range first {
			a, b := first[i], other[i]
			if a.Date != b.Date || a.Operators != b.Operators ||
				!a.FinalBalance.Equal(b.FinalBalance) ||
				!a.OpeningBalance.Equal(b.OpeningBalance) ||
				!a.Inflow.Equal(b.Inflow) || !a.Outflow.Equal(b.Outflow) {
				t.Fatalf("day %d differs between runs: %+v vs %+v", i, a, b)
			}
		}
	}
}

func TestExpenseCountsOnPaymentDate(t *testing.T) {
	snap := &domain.Snapshot{
		Expenses: []domain.Expense{paidExpense("e1", "2026-01-10", "2026-01-15", "45")},
	}
	buckets := Aggregate(snap.Orders, snap.Expenses, snap.Sessions, NewClock(brt))
	if _, ok := buckets["2026-01-10"]; ok {
		t.Fatalf("expected no bucket on the due date")
	}
	b, ok := buckets["2026-01-15"]
	if !ok {
		t.Fatalf("expected a bucket on the payment date")
	}
	assertAmount(t, "outflow", b.Outflow, "45")
}

func TestUnpaidExpenseIsIgnored(t *testing.T) {
	snap := &domain.Snapshot{
		Expenses: []domain.Expense{{ID: "e1", Amount: dec("45"), DueDate: "2026-01-10"}},
	}
	if buckets := Aggregate(snap.Orders, snap.Expenses, snap.Sessions, NewClock(brt)); len(buckets) != 0 {
		t.Fatalf("expected no buckets, got %d", len(buckets))
	}
}

func TestOnlyDeliveredOrdersContributeInflow(t *testing.T) {
	statuses := []string{
		domain.OrderStatusReceived,
		domain.OrderStatusPreparing,
		domain.OrderStatusOutForDelivery,
		domain.OrderStatusCanceled,
	}
	for _, status := range statuses {
		t.Run(status, func(t *testing.T) {
			order := deliveredOrder("o1", "2026-01-05", "500", domain.PaymentPix)
			order.Status = status
			buckets := Aggregate([]domain.Order{order}, nil, nil, NewClock(brt))
			if len(buckets) != 0 {
				t.Fatalf("expected %s order to contribute nothing, got %d buckets", status, len(buckets))
			}
		})
	}
}

func TestAggregateSplitsPaymentMethods(t *testing.T) {
	orders := []domain.Order{
		deliveredOrder("o1", "2026-01-05", "10", domain.PaymentCash),
		deliveredOrder("o2", "2026-01-05", "20", domain.PaymentCard),
		deliveredOrder("o3", "2026-01-05", "30", domain.PaymentPix),
	}
	b := Aggregate(orders, nil, nil, NewClock(brt))["2026-01-05"]
	assertAmount(t, "inflow", b.Inflow, "60")
	assertAmount(t, "cash", b.Cash, "10")
	assertAmount(t, "card", b.Card, "20")
	assertAmount(t, "pix", b.Pix, "30")
	if b.Operators != domain.DefaultOperatorLabel {
		t.Fatalf("expected default operator label, got %q", b.Operators)
	}
}

func TestAggregateUsesBusinessTimezone(t *testing.T) {
	// 01:30 UTC on the 2nd is still the evening of the 1st in Brasilia.
	order := deliveredOrder("o1", "2026-01-01", "25", domain.PaymentCash)
	order.CreatedAt = time.Date(2026, time.January, 2, 1, 30, 0, 0, time.UTC)

	local := Aggregate([]domain.Order{order}, nil, nil, NewClock(brt))
	if _, ok := local["2026-01-01"]; !ok {
		t.Fatalf("expected order on 2026-01-01 in business timezone, got %v", keys(local))
	}

	utc := Aggregate([]domain.Order{order}, nil, nil, NewClock(time.UTC))
	if _, ok := utc["2026-01-02"]; !ok {
		t.Fatalf("expected order on 2026-01-02 in UTC, got %v", keys(utc))
	}
}

func TestOperatorLabelDeduplicatesNames(t *testing.T) {
	sessions := []domain.CashierSession{
		session("s3", "Ana", "2026-01-07", "5"),
		session("s1", "Bruno", "2026-01-07", "10"),
		session("s2", "", "2026-01-07", "0"),
	}
	sessions[0].OpenedAt = at("2026-01-07", 8)
	sessions[1].OpenedAt = at("2026-01-07", 9)
	sessions[2].OpenedAt = at("2026-01-07", 10)
	sessions = append(sessions, session("s4", "Ana", "2026-01-07", "1"))

	b := Aggregate(nil, nil, sessions, NewClock(brt))["2026-01-07"]
	if b.Operators != "Ana, Bruno" {
		t.Fatalf("expected \"Ana, Bruno\", got %q", b.Operators)
	}
	assertAmount(t, "float", b.Float, "16")
}

func TestMonthViewIsDescendingAndBackfilled(t *testing.T) {
	clock := FixedClock(brt, at("2026-01-20", 10))
	view := Month(History(scenarioSnapshot(), clock), 2026, time.January, false, clock)

	if len(view.Days) != 31 {
		t.Fatalf("expected 31 days, got %d", len(view.Days))
	}
	if view.Days[0].Date != "2026-01-31" || view.Days[30].Date != "2026-01-01" {
		t.Fatalf("expected descending order, got first=%s last=%s", view.Days[0].Date, view.Days[30].Date)
	}
	assertAmount(t, "summary inflow", view.Summary.TotalInflow, "50")
	assertAmount(t, "summary outflow", view.Summary.TotalOutflow, "30")
	assertAmount(t, "summary closing", view.Summary.ClosingBalance, "120")
}

func TestMonthBeforeAnyHistoryCarriesZero(t *testing.T) {
	clock := FixedClock(brt, at("2026-01-20", 10))
	view := Month(History(scenarioSnapshot(), clock), 2025, time.December, false, clock)
	for _, day := range view.Days {
		if !day.Empty || !day.FinalBalance.IsZero() || !day.OpeningBalance.IsZero() {
			t.Fatalf("expected zero placeholder for %s, got %+v", day.Date, day)
		}
	}
	assertAmount(t, "closing", view.Summary.ClosingBalance, "0")
}

func TestTodayOnlyKeepsHistoryBalance(t *testing.T) {
	clock := FixedClock(brt, at("2026-01-03", 10))
	view := Month(History(scenarioSnapshot(), clock), 2026, time.January, true, clock)

	if len(view.Days) != 1 {
		t.Fatalf("expected a single day, got %d", len(view.Days))
	}
	today := view.Days[0]
	if today.Date != "2026-01-03" || !today.Empty {
		t.Fatalf("expected empty placeholder for 2026-01-03, got %+v", today)
	}
	assertAmount(t, "today final", today.FinalBalance, "120")
	assertAmount(t, "summary closing", view.Summary.ClosingBalance, "120")
	assertAmount(t, "summary inflow", view.Summary.TotalInflow, "0")
}

func TestTodayOnlyWithActiveDay(t *testing.T) {
	clock := FixedClock(brt, at("2026-01-02", 18))
	view := Month(History(scenarioSnapshot(), clock), 2026, time.January, true, clock)
	if len(view.Days) != 1 || view.Days[0].Empty {
		t.Fatalf("expected the active day, got %+v", view.Days)
	}
	assertAmount(t, "summary outflow", view.Summary.TotalOutflow, "30")
	assertAmount(t, "summary closing", view.Summary.ClosingBalance, "120")
}

func TestTodayOnlyOutsideSelectedMonthIsEmpty(t *testing.T) {
	clock := FixedClock(brt, at("2026-02-10", 10))
	view := Month(History(scenarioSnapshot(), clock), 2026, time.January, true, clock)
	if len(view.Days) != 0 {
		t.Fatalf("expected no days, got %d", len(view.Days))
	}
	assertAmount(t, "summary closing", view.Summary.ClosingBalance, "0")
}

func TestShiftTotalsUseTodayOnly(t *testing.T) {
	clock := FixedClock(brt, at("2026-05-04", 15))
	canceled := deliveredOrder("o5", "2026-05-04", "99", domain.PaymentCash)
	canceled.Status = domain.OrderStatusCanceled
	orders := []domain.Order{
		deliveredOrder("o1", "2026-05-04", "40", domain.PaymentCash),
		deliveredOrder("o2", "2026-05-04", "25.50", domain.PaymentCard),
		deliveredOrder("o3", "2026-05-04", "10", domain.PaymentPix),
		deliveredOrder("o4", "2026-05-03", "300", domain.PaymentCash),
		canceled,
	}
	expenses := []domain.Expense{
		paidExpense("e1", "2026-05-01", "2026-05-04", "15"),
		paidExpense("e2", "2026-05-04", "2026-05-03", "70"),
	}
	open := session("s1", "Ana", "2026-05-04", "100")
	open.Status = domain.SessionStatusOpen

	totals := ShiftTotals(orders, expenses, &open, clock)
	assertAmount(t, "cash", totals.Cash, "40")
	assertAmount(t, "card", totals.Card, "25.50")
	assertAmount(t, "pix", totals.Pix, "10")
	assertAmount(t, "daily expenses", totals.DailyExpenses, "15")
	assertAmount(t, "float", totals.Float, "100")
	assertAmount(t, "final", totals.Final, "160.50")
	if totals.SessionID != "s1" || totals.Date != "2026-05-04" {
		t.Fatalf("unexpected session/date: %+v", totals)
	}

	closing := Closing(totals, clock)
	assertAmount(t, "closing final", closing.FinalBalance, "160.50")
	if !closing.ClosedAt.Equal(at("2026-05-04", 15)) {
		t.Fatalf("expected closing time from clock, got %s", closing.ClosedAt)
	}
}

func TestShiftTotalsWithoutOpenSession(t *testing.T) {
	clock := FixedClock(brt, at("2026-05-04", 15))
	totals := ShiftTotals(nil, []domain.Expense{paidExpense("e1", "2026-05-04", "2026-05-04", "5")}, nil, clock)
	assertAmount(t, "float", totals.Float, "0")
	assertAmount(t, "final", totals.Final, "-5")
}

func keys(m map[string]domain.DayBucket) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
