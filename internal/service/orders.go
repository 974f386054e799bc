package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"cardapio/backend/internal/domain"
	"cardapio/backend/internal/store"
)

// CreateOrder prices the lines from the menu, never from the client, and adds
// the tenant's delivery fee to delivery orders.
func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.Order, error) {
	actor, err := requireStaff(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	req.TableID = strings.TrimSpace(req.TableID)
	req.WaiterName = strings.TrimSpace(req.WaiterName)
	req.Notes = strings.TrimSpace(req.Notes)
	if err := s.validateRequest(req); err != nil {
		return domain.Order{}, err
	}

	tenantID := s.tenantFor(ctx)
	menu, err := s.repo.GetMenuItems(ctx, tenantID, uniqueMenuItemIDs(req.Items))
	if err != nil {
		return domain.Order{}, err
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	subtotal := decimal.Zero
	for _, line := range req.Items {
		item, ok := menu[line.MenuItemID]
		if !ok {
			return domain.Order{}, fmt.Errorf("%w: unknown menu item %s", store.ErrInvalidInput, line.MenuItemID)
		}
		if !item.Available {
			return domain.Order{}, fmt.Errorf("%w: menu item %s is unavailable", store.ErrInvalidInput, item.Name)
		}
		items = append(items, domain.OrderItem{
			MenuItemID: item.ID,
			Name:       item.Name,
			Quantity:   line.Quantity,
			UnitPrice:  item.Price,
			UnitCost:   item.Cost,
		})
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	order := domain.Order{
		TenantID:      tenantID,
		PlacedBy:      actor.Username,
		Status:        domain.OrderStatusReceived,
		OrderType:     req.OrderType,
		PaymentMethod: req.PaymentMethod,
		Items:         items,
		DeliveryFee:   decimal.Zero,
		Notes:         req.Notes,
		CreatedAt:     s.clock.Instant(),
	}

	switch req.OrderType {
	case domain.OrderTypeDelivery:
		settings, err := s.repo.GetSettings(ctx, tenantID)
		if err != nil {
			return domain.Order{}, err
		}
		order.DeliveryFee = settings.DeliveryFee
	case domain.OrderTypeDineIn:
		order.TableID = req.TableID
		order.WaiterName = defaultString(req.WaiterName, defaultString(actor.DisplayName, actor.Username))
	}
	order.Total = subtotal.Add(order.DeliveryFee)

	if req.ChangeFor != nil {
		if req.OrderType != domain.OrderTypeDelivery || req.PaymentMethod != domain.PaymentCash {
			return domain.Order{}, fmt.Errorf("%w: change_for is only accepted on cash delivery orders", store.ErrInvalidInput)
		}
		if req.ChangeFor.LessThan(order.Total) {
			return domain.Order{}, fmt.Errorf("%w: change_for must cover the order total", store.ErrInvalidInput)
		}
		changeFor := *req.ChangeFor
		order.ChangeFor = &changeFor
	}

	saved, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}
	s.logAudit(ctx, tenantID, "order_create", saved.ID, fmt.Sprintf("type=%s,total=%s", saved.OrderType, saved.Total.StringFixed(2)))
	return *saved, nil
}

// UpdateOrderStatus moves an order along its lifecycle. Delivered and
// canceled orders are final.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, req domain.OrderStatusRequest) (domain.Order, error) {
	if _, err := requireStaff(ctx); err != nil {
		return domain.Order{}, err
	}
	if err := s.validateRequest(req); err != nil {
		return domain.Order{}, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, store.ErrInvalidInput
	}

	tenantID := s.tenantFor(ctx)
	snap, err := s.Refresh(ctx, tenantID)
	if err != nil {
		return domain.Order{}, err
	}
	var current *domain.Order
	for i := range snap.Orders {
		if snap.Orders[i].ID == orderID {
			current = &snap.Orders[i]
			break
		}
	}
	if current == nil {
		return domain.Order{}, store.ErrNotFound
	}
	if current.Status == req.Status {
		return *current, nil
	}
	if isFinalStatus(current.Status) {
		return domain.Order{}, fmt.Errorf("%w: order is already %s", store.ErrConflict, current.Status)
	}

	saved, err := s.repo.UpdateOrderStatus(ctx, tenantID, orderID, req.Status)
	if err != nil {
		return domain.Order{}, err
	}
	s.logAudit(ctx, tenantID, "order_status", saved.ID, current.Status+"->"+saved.Status)
	return *saved, nil
}

// CloseTable settles every open order of a dine-in table with one payment method.
func (s *Service) CloseTable(ctx context.Context, tableID string, req domain.TableCloseRequest) (domain.TableCloseResponse, error) {
	if _, err := requireStaff(ctx); err != nil {
		return domain.TableCloseResponse{}, err
	}
	if err := s.validateRequest(req); err != nil {
		return domain.TableCloseResponse{}, err
	}
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return domain.TableCloseResponse{}, store.ErrInvalidInput
	}

	tenantID := s.tenantFor(ctx)
	closed, err := s.repo.CloseTableOrders(ctx, tenantID, tableID, req.PaymentMethod)
	if err != nil {
		return domain.TableCloseResponse{}, err
	}
	if len(closed) == 0 {
		return domain.TableCloseResponse{}, fmt.Errorf("%w: table %s has no open orders", store.ErrNotFound, tableID)
	}
	s.logAudit(ctx, tenantID, "table_close", tableID, fmt.Sprintf("orders=%d,method=%s", len(closed), req.PaymentMethod))
	return domain.TableCloseResponse{TableID: tableID, Orders: closed}, nil
}

func isFinalStatus(status string) bool {
	return status == domain.OrderStatusDelivered || status == domain.OrderStatusCanceled
}

func uniqueMenuItemIDs(lines []domain.OrderLineRequest) []string {
	set := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if line.MenuItemID == "" {
			continue
		}
		set[line.MenuItemID] = struct{}{}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
