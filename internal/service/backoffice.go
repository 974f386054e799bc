package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"cardapio/backend/internal/analytics"
	"cardapio/backend/internal/domain"
	"cardapio/backend/internal/store"
)

var maxServiceCharge = decimal.NewFromInt(100)

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Expense{}, err
	}
	req.Category = strings.TrimSpace(req.Category)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validateRequest(req); err != nil {
		return domain.Expense{}, err
	}
	if !req.Amount.IsPositive() {
		return domain.Expense{}, fmt.Errorf("%w: amount must be positive", store.ErrInvalidInput)
	}

	tenantID := s.tenantFor(ctx)
	saved, err := s.repo.CreateExpense(ctx, domain.Expense{
		TenantID:    tenantID,
		Category:    req.Category,
		Description: req.Description,
		Amount:      req.Amount,
		DueDate:     req.DueDate,
		PaymentDate: req.PaymentDate,
		CreatedAt:   s.clock.Instant(),
	})
	if err != nil {
		return domain.Expense{}, err
	}
	s.logAudit(ctx, tenantID, "expense_create", saved.ID, "amount="+saved.Amount.StringFixed(2))
	return *saved, nil
}

// PayExpense marks the expense paid on the given date, or today when omitted.
// Paying again moves the outflow to the new date.
func (s *Service) PayExpense(ctx context.Context, expenseID string, req domain.ExpensePayRequest) (domain.Expense, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Expense{}, err
	}
	if err := s.validateRequest(req); err != nil {
		return domain.Expense{}, err
	}
	paymentDate := defaultString(req.PaymentDate, s.clock.Today())

	tenantID := s.tenantFor(ctx)
	saved, err := s.repo.PayExpense(ctx, tenantID, strings.TrimSpace(expenseID), paymentDate)
	if err != nil {
		return domain.Expense{}, err
	}
	s.logAudit(ctx, tenantID, "expense_pay", saved.ID, "payment_date="+paymentDate)
	return *saved, nil
}

func (s *Service) DeleteExpense(ctx context.Context, expenseID string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}

	tenantID := s.tenantFor(ctx)
	if err := s.repo.DeleteExpense(ctx, tenantID, strings.TrimSpace(expenseID)); err != nil {
		return err
	}
	s.logAudit(ctx, tenantID, "expense_delete", expenseID, "")
	return nil
}

func (s *Service) CreateMenuItem(ctx context.Context, req domain.MenuItemCreateRequest) (domain.MenuItem, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.MenuItem{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	if err := s.validateRequest(req); err != nil {
		return domain.MenuItem{}, err
	}
	if !req.Price.IsPositive() || req.Cost.IsNegative() {
		return domain.MenuItem{}, fmt.Errorf("%w: price must be positive and cost not negative", store.ErrInvalidInput)
	}

	tenantID := s.tenantFor(ctx)
	saved, err := s.repo.CreateMenuItem(ctx, domain.MenuItem{
		TenantID:       tenantID,
		Name:           req.Name,
		Category:       req.Category,
		Price:          req.Price,
		Cost:           req.Cost,
		Available:      true,
		TrackInventory: req.TrackInventory,
		CreatedAt:      s.clock.Instant(),
	})
	if err != nil {
		return domain.MenuItem{}, err
	}
	s.logAudit(ctx, tenantID, "menu_item_create", saved.ID, fmt.Sprintf("name=%s,price=%s", saved.Name, saved.Price.StringFixed(2)))
	return *saved, nil
}

func (s *Service) CreateInventoryEntry(ctx context.Context, req domain.InventoryEntryRequest) (domain.InventoryEntry, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.InventoryEntry{}, err
	}
	if err := s.validateRequest(req); err != nil {
		return domain.InventoryEntry{}, err
	}
	if req.UnitCost.IsNegative() {
		return domain.InventoryEntry{}, fmt.Errorf("%w: unit_cost must not be negative", store.ErrInvalidInput)
	}

	tenantID := s.tenantFor(ctx)
	saved, err := s.repo.CreateInventoryEntry(ctx, domain.InventoryEntry{
		TenantID:   tenantID,
		MenuItemID: strings.TrimSpace(req.MenuItemID),
		Quantity:   req.Quantity,
		UnitCost:   req.UnitCost,
		CreatedAt:  s.clock.Instant(),
	})
	if err != nil {
		return domain.InventoryEntry{}, err
	}
	s.logAudit(ctx, tenantID, "inventory_entry", saved.ID, fmt.Sprintf("item=%s,qty=%d", saved.MenuItemID, saved.Quantity))
	return *saved, nil
}

func (s *Service) Inventory(ctx context.Context) (domain.InventoryReport, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.InventoryReport{}, err
	}

	tenantID := s.tenantFor(ctx)
	snap, err := s.Refresh(ctx, tenantID)
	if err != nil {
		return domain.InventoryReport{}, err
	}
	return domain.InventoryReport{TenantID: tenantID, Items: analytics.Stock(snap)}, nil
}

func (s *Service) SalesAnalytics(ctx context.Context, filter domain.SalesFilter) (domain.SalesReport, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.SalesReport{}, err
	}
	for _, date := range []string{filter.From, filter.To} {
		if date == "" {
			continue
		}
		if _, err := s.clock.ParseDate(date); err != nil {
			return domain.SalesReport{}, fmt.Errorf("%w: dates must be YYYY-MM-DD", store.ErrInvalidInput)
		}
	}
	if filter.From != "" && filter.To != "" && filter.From > filter.To {
		return domain.SalesReport{}, fmt.Errorf("%w: from is after to", store.ErrInvalidInput)
	}
	switch filter.OrderType {
	case "", "all", domain.OrderTypeDelivery, domain.OrderTypeDineIn:
	default:
		return domain.SalesReport{}, fmt.Errorf("%w: unknown order_type %s", store.ErrInvalidInput, filter.OrderType)
	}

	snap, err := s.Refresh(ctx, s.tenantFor(ctx))
	if err != nil {
		return domain.SalesReport{}, err
	}
	return analytics.Sales(snap, filter, s.clock), nil
}

func (s *Service) Settings(ctx context.Context) (domain.TenantSettings, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.TenantSettings{}, err
	}
	settings, err := s.repo.GetSettings(ctx, s.tenantFor(ctx))
	if err != nil {
		return domain.TenantSettings{}, err
	}
	return *settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.SettingsUpdateRequest) (domain.TenantSettings, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.TenantSettings{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validateRequest(req); err != nil {
		return domain.TenantSettings{}, err
	}
	if req.DeliveryFee.IsNegative() || req.ServiceCharge.IsNegative() || req.ServiceCharge.GreaterThan(maxServiceCharge) {
		return domain.TenantSettings{}, fmt.Errorf("%w: delivery_fee and service_charge out of range", store.ErrInvalidInput)
	}

	tenantID := s.tenantFor(ctx)
	saved, err := s.repo.UpsertSettings(ctx, domain.TenantSettings{
		TenantID:      tenantID,
		Name:          req.Name,
		DeliveryFee:   req.DeliveryFee,
		ServiceCharge: req.ServiceCharge,
		UpdatedAt:     s.clock.Instant(),
	})
	if err != nil {
		return domain.TenantSettings{}, err
	}
	s.logAudit(ctx, tenantID, "settings_update", tenantID, fmt.Sprintf("delivery_fee=%s,service_charge=%s", saved.DeliveryFee.StringFixed(2), saved.ServiceCharge.StringFixed(2)))
	return *saved, nil
}
