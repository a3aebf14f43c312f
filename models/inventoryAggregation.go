package models

import (
	"context"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"
)

// aggregateVariantInventories sums the per-warehouse balances of a parent's
// variants. Self-referencing rows (single products) and zero totals are
// omitted; last_updated keeps the most recent variant timestamp per warehouse.
func aggregateVariantInventories(variants []*Product) []WarehouseInventory {
	totals := make(map[int]int)
	updated := make(map[int]time.Time)

	for _, variant := range variants {
		if variant.IsSelfReferencing() {
			continue
		}
		for i := range variant.WarehouseInventories {
			entry := &variant.WarehouseInventories[i]
			totals[entry.WarehouseId] += entry.Quantity
			if entry.LastUpdated.After(updated[entry.WarehouseId]) {
				updated[entry.WarehouseId] = entry.LastUpdated
			}
		}
	}

	warehouseIds := make([]int, 0, len(totals))
	for warehouseId := range totals {
		warehouseIds = append(warehouseIds, warehouseId)
	}
	sort.Ints(warehouseIds)

	var result []WarehouseInventory
	for _, warehouseId := range warehouseIds {
		if totals[warehouseId] == 0 {
			continue
		}
		lastUpdated := updated[warehouseId]
		if lastUpdated.IsZero() {
			lastUpdated = time.Now()
		}
		result = append(result, WarehouseInventory{
			WarehouseId: warehouseId,
			Quantity:    totals[warehouseId],
			LastUpdated: lastUpdated,
		})
	}
	return result
}

// RebuildParentInventory recomputes a parent product's ledger from its
// non-deleted variants and replaces the stored rows, inside the caller's tx.
func RebuildParentInventory(ctx context.Context, tx *gorm.DB, companyId string, parentProductId int) error {

	// a missing parent is a no-op; legacy or imported variants may carry a
	// dangling parent pointer and must still transfer
	var parent Product
	if err := tx.WithContext(ctx).
		Where("company_id = ?", companyId).
		First(&parent, parentProductId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	// only variable parents aggregate; a single owns its own ledger
	if parent.ProductType != ProductTypeVariable {
		return nil
	}

	var variants []*Product
	if err := tx.WithContext(ctx).
		Where("company_id = ? AND parent_product_id = ? AND id <> ?", companyId, parentProductId, parentProductId).
		Preload("WarehouseInventories").
		Find(&variants).Error; err != nil {
		return err
	}

	aggregated := aggregateVariantInventories(variants)

	if err := tx.WithContext(ctx).
		Where("product_id = ?", parentProductId).
		Delete(&WarehouseInventory{}).Error; err != nil {
		return err
	}
	for i := range aggregated {
		aggregated[i].ProductId = parentProductId
		if err := tx.WithContext(ctx).Create(&aggregated[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// RebuildAllParentInventories recomputes every variable parent's ledger for a
// company. Used by the ops rebuild tool.
func RebuildAllParentInventories(ctx context.Context, tx *gorm.DB, companyId string) (int, error) {
	var parentIds []int
	if err := tx.WithContext(ctx).Model(&Product{}).
		Where("company_id = ? AND product_type = ?", companyId, ProductTypeVariable).
		Pluck("id", &parentIds).Error; err != nil {
		return 0, err
	}

	rebuilt := 0
	for _, parentId := range parentIds {
		if err := RebuildParentInventory(ctx, tx, companyId, parentId); err != nil {
			return rebuilt, err
		}
		rebuilt++
	}
	return rebuilt, nil
}
