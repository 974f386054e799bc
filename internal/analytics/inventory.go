package analytics

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"cardapio/backend/internal/domain"
)

// criticalShare is the fraction of everything received below which stock is flagged.
var criticalShare = decimal.NewFromFloat(0.2)

// Stock derives stock levels for menu items that track inventory: units
// received through entries minus units sold in delivered orders.
func Stock(snapshot *domain.Snapshot) []domain.StockLevel {
	levels := []domain.StockLevel{}
	if snapshot == nil {
		return levels
	}

	entriesByItem := make(map[string][]domain.InventoryEntry)
	for _, entry := range snapshot.InventoryEntries {
		entriesByItem[entry.MenuItemID] = append(entriesByItem[entry.MenuItemID], entry)
	}

	sold := make(map[string]int)
	for _, order := range snapshot.Orders {
		if order.Status != domain.OrderStatusDelivered {
			continue
		}
		for _, item := range order.Items {
			sold[item.MenuItemID] += item.Quantity
		}
	}

	for _, item := range snapshot.MenuItems {
		if !item.TrackInventory {
			continue
		}
		level := domain.StockLevel{
			MenuItemID:   item.ID,
			Name:         item.Name,
			Category:     item.Category,
			TotalSold:    sold[item.ID],
			LastUnitCost: item.Cost,
		}

		var latest *domain.InventoryEntry
		for i := range entriesByItem[item.ID] {
			entry := entriesByItem[item.ID][i]
			level.TotalIn += entry.Quantity
			if latest == nil || entry.CreatedAt.After(latest.CreatedAt) {
				latest = &entry
			}
		}
		if latest != nil {
			lastEntry := latest.CreatedAt
			level.LastEntryAt = &lastEntry
			if latest.UnitCost.IsPositive() {
				level.LastUnitCost = latest.UnitCost
			}
		}

		level.Stock = level.TotalIn - level.TotalSold
		threshold := decimal.NewFromInt(int64(level.TotalIn)).Mul(criticalShare)
		level.Critical = level.TotalIn > 0 && decimal.NewFromInt(int64(level.Stock)).LessThanOrEqual(threshold)
		level.SoldValue = item.Price.Mul(decimal.NewFromInt(int64(level.TotalSold)))
		level.StockValue = item.Price.Mul(decimal.NewFromInt(int64(level.Stock)))
		levels = append(levels, level)
	}

	sort.Slice(levels, func(i, j int) bool {
		return strings.ToLower(levels[i].Name) < strings.ToLower(levels[j].Name)
	})
	return levels
}
