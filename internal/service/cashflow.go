package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"cardapio/backend/internal/domain"
	"cardapio/backend/internal/ledger"
	"cardapio/backend/internal/logging"
	"cardapio/backend/internal/store"
)

// CashFlowMonth reconciles the tenant's full history and returns one row per
// day of the requested month, most recent first.
func (s *Service) CashFlowMonth(ctx context.Context, year int, month int, todayOnly bool) (domain.MonthView, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.MonthView{}, err
	}
	if year < 2000 || year > 9999 || month < 1 || month > 12 {
		return domain.MonthView{}, fmt.Errorf("%w: year/month out of range", store.ErrInvalidInput)
	}

	tenantID := s.tenantFor(ctx)
	snap, err := s.Refresh(ctx, tenantID)
	if err != nil {
		return domain.MonthView{}, err
	}

	key := fmt.Sprintf("%s:%s:%04d-%02d:%t:%s", tenantID, snap.Fingerprint, year, month, todayOnly, s.clock.Today())
	cached, hit, err := s.reports.Get(ctx, key)
	if err != nil {
		logging.Warn("service", "report cache read failed", logrus.Fields{"tenant_id": tenantID, "error": err.Error()})
	}
	if hit && cached != nil {
		cached.Revision = snap.Revision
		return *cached, nil
	}

	history := ledger.History(snap, s.clock)
	view := ledger.Month(history, year, time.Month(month), todayOnly, s.clock)
	view.TenantID = tenantID
	view.Revision = snap.Revision

	if err := s.reports.Set(ctx, key, &view, s.reportTTL); err != nil {
		logging.Warn("service", "report cache write failed", logrus.Fields{"tenant_id": tenantID, "error": err.Error()})
	}
	return view, nil
}

// CashFlowHistory returns every active day in ascending order with the
// tenant's current accumulated balance.
func (s *Service) CashFlowHistory(ctx context.Context) (domain.CashFlowHistory, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.CashFlowHistory{}, err
	}

	tenantID := s.tenantFor(ctx)
	snap, err := s.Refresh(ctx, tenantID)
	if err != nil {
		return domain.CashFlowHistory{}, err
	}
	history := ledger.History(snap, s.clock)
	return domain.CashFlowHistory{
		TenantID: tenantID,
		Days:     history,
		Balance:  ledger.Balance(history),
	}, nil
}

func (s *Service) openSessionOf(ctx context.Context, tenantID string, actor domain.Actor) (*domain.CashierSession, error) {
	session, err := s.repo.GetOpenSession(ctx, tenantID, actor.Username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return session, err
}

// ShiftTotals reports today's takings for the calling operator. Without an
// open session the float is zero.
func (s *Service) ShiftTotals(ctx context.Context) (domain.ShiftTotals, error) {
	actor, err := requireCashier(ctx)
	if err != nil {
		return domain.ShiftTotals{}, err
	}

	tenantID := s.tenantFor(ctx)
	open, err := s.openSessionOf(ctx, tenantID, actor)
	if err != nil {
		return domain.ShiftTotals{}, err
	}
	snap, err := s.Refresh(ctx, tenantID)
	if err != nil {
		return domain.ShiftTotals{}, err
	}
	return ledger.ShiftTotals(snap.Orders, snap.Expenses, open, s.clock), nil
}

func (s *Service) CurrentSession(ctx context.Context) (domain.SessionResponse, error) {
	actor, err := requireCashier(ctx)
	if err != nil {
		return domain.SessionResponse{}, err
	}

	tenantID := s.tenantFor(ctx)
	open, err := s.openSessionOf(ctx, tenantID, actor)
	if err != nil {
		return domain.SessionResponse{}, err
	}
	if open == nil {
		return domain.SessionResponse{}, fmt.Errorf("%w: no open cashier session", store.ErrNotFound)
	}
	snap, err := s.Refresh(ctx, tenantID)
	if err != nil {
		return domain.SessionResponse{}, err
	}
	return domain.SessionResponse{
		Session: *open,
		Totals:  ledger.ShiftTotals(snap.Orders, snap.Expenses, open, s.clock),
	}, nil
}

func (s *Service) OpenSession(ctx context.Context, req domain.SessionOpenRequest) (domain.SessionResponse, error) {
	actor, err := requireCashier(ctx)
	if err != nil {
		return domain.SessionResponse{}, err
	}
	if err := s.validateRequest(req); err != nil {
		return domain.SessionResponse{}, err
	}
	if req.StartingBalance.IsNegative() {
		return domain.SessionResponse{}, fmt.Errorf("%w: starting_balance must not be negative", store.ErrInvalidInput)
	}

	tenantID := s.tenantFor(ctx)
	operator := strings.TrimSpace(req.OperatorName)
	if operator == "" {
		operator = defaultString(actor.DisplayName, actor.Username)
	}

	saved, err := s.repo.OpenSession(ctx, domain.CashierSession{
		TenantID:        tenantID,
		UserID:          actor.Username,
		OperatorName:    operator,
		StartingBalance: req.StartingBalance,
		OpenedAt:        s.clock.Instant(),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.SessionResponse{}, fmt.Errorf("%w: cashier session already open", store.ErrConflict)
		}
		return domain.SessionResponse{}, err
	}
	s.logAudit(ctx, tenantID, "session_open", saved.ID, "starting_balance="+saved.StartingBalance.StringFixed(2))

	snap, err := s.Refresh(ctx, tenantID)
	if err != nil {
		return domain.SessionResponse{}, err
	}
	return domain.SessionResponse{
		Session: *saved,
		Totals:  ledger.ShiftTotals(snap.Orders, snap.Expenses, saved, s.clock),
	}, nil
}

// CloseSession snapshots today's totals into the caller's open session.
func (s *Service) CloseSession(ctx context.Context) (domain.SessionResponse, error) {
	actor, err := requireCashier(ctx)
	if err != nil {
		return domain.SessionResponse{}, err
	}

	tenantID := s.tenantFor(ctx)
	open, err := s.openSessionOf(ctx, tenantID, actor)
	if err != nil {
		return domain.SessionResponse{}, err
	}
	if open == nil {
		return domain.SessionResponse{}, fmt.Errorf("%w: no open cashier session", store.ErrNotFound)
	}

	snap, err := s.Refresh(ctx, tenantID)
	if err != nil {
		return domain.SessionResponse{}, err
	}
	totals := ledger.ShiftTotals(snap.Orders, snap.Expenses, open, s.clock)
	closed, err := s.repo.CloseSession(ctx, tenantID, open.ID, ledger.Closing(totals, s.clock))
	if err != nil {
		logging.LogError("service", "CloseSession", "persist closing totals", map[string]string{"session_id": open.ID}, err)
		return domain.SessionResponse{}, err
	}
	s.logAudit(ctx, tenantID, "session_close", closed.ID, "final_balance="+closed.FinalBalance.StringFixed(2))

	return domain.SessionResponse{Session: *closed, Totals: totals}, nil
}
