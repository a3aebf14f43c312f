package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID              int             `gorm:"primary_key" json:"id"`
	CompanyId       string          `gorm:"size:64;index;not null" json:"company_id"`
	Name            string          `gorm:"size:255;not null" json:"name" binding:"required"`
	Sku             string          `gorm:"size:100" json:"sku"`
	Description     string          `gorm:"type:text" json:"description"`
	ProductType     ProductType     `gorm:"type:enum('S','V');default:S" json:"product_type"`
	ParentProductId *int            `gorm:"index" json:"parent_product_id"`
	SalesPrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sales_price"`
	PurchasePrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_price"`
	IsActive        *bool           `gorm:"not null;default:true" json:"is_active"`

	WarehouseInventories []WarehouseInventory `gorm:"foreignKey:ProductId" json:"warehouse_inventory"`

	CreatedBy string         `gorm:"size:100" json:"created_by"`
	UpdatedBy string         `gorm:"size:100" json:"updated_by"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// WarehouseInventory is one per-warehouse balance row of a product's ledger.
// (product_id, warehouse_id) is unique; quantity never goes below zero.
type WarehouseInventory struct {
	ID          int       `gorm:"primary_key" json:"id"`
	ProductId   int       `gorm:"index:idx_product_warehouse,unique,priority:1;not null" json:"product_id"`
	WarehouseId int       `gorm:"index:idx_product_warehouse,unique,priority:2;not null" json:"warehouse_id"`
	Quantity    int       `gorm:"not null;default:0" json:"quantity"`
	LastUpdated time.Time `gorm:"not null" json:"last_updated"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProductInventory struct {
	WarehouseId int `json:"warehouse_id" binding:"required"`
	Quantity    int `json:"quantity"`
}

type NewProduct struct {
	Name            string                `json:"name" binding:"required"`
	Sku             string                `json:"sku"`
	Description     string                `json:"description"`
	ProductType     ProductType           `json:"product_type"`
	ParentProductId *int                  `json:"parent_product_id"`
	SalesPrice      decimal.Decimal       `json:"sales_price"`
	PurchasePrice   decimal.Decimal       `json:"purchase_price"`
	Inventories     []NewProductInventory `json:"warehouse_inventory"`
}

// ErrWarehouseEntryNotFound is returned by ledger reads/decreases when the
// product has no balance row for the warehouse.
var ErrWarehouseEntryNotFound = errors.New("no inventory entry for warehouse")

/* ledger operations (in-memory, persisted by the caller) */

// WarehouseQuantity returns the balance for a warehouse, zero when absent.
func (p *Product) WarehouseQuantity(warehouseId int) int {
	for i := range p.WarehouseInventories {
		if p.WarehouseInventories[i].WarehouseId == warehouseId {
			return p.WarehouseInventories[i].Quantity
		}
	}
	return 0
}

// SetWarehouseQuantity upserts the balance row for a warehouse.
func (p *Product) SetWarehouseQuantity(warehouseId int, quantity int) error {
	if quantity < 0 {
		return errors.New("quantity cannot be negative")
	}
	now := time.Now()
	for i := range p.WarehouseInventories {
		if p.WarehouseInventories[i].WarehouseId == warehouseId {
			p.WarehouseInventories[i].Quantity = quantity
			p.WarehouseInventories[i].LastUpdated = now
			return nil
		}
	}
	p.WarehouseInventories = append(p.WarehouseInventories, WarehouseInventory{
		ProductId:   p.ID,
		WarehouseId: warehouseId,
		Quantity:    quantity,
		LastUpdated: now,
	})
	return nil
}

// IncreaseWarehouseQuantity adds to the balance, creating the row when absent.
func (p *Product) IncreaseWarehouseQuantity(warehouseId int, quantity int) error {
	if quantity <= 0 {
		return errors.New("quantity must be greater than zero")
	}
	return p.SetWarehouseQuantity(warehouseId, p.WarehouseQuantity(warehouseId)+quantity)
}

// DecreaseWarehouseQuantity subtracts from the balance. It never lets the
// balance go negative; the caller gets the available amount back in the error.
func (p *Product) DecreaseWarehouseQuantity(warehouseId int, quantity int) error {
	if quantity <= 0 {
		return errors.New("quantity must be greater than zero")
	}
	for i := range p.WarehouseInventories {
		if p.WarehouseInventories[i].WarehouseId == warehouseId {
			available := p.WarehouseInventories[i].Quantity
			if available < quantity {
				return &InsufficientQuantityError{Available: available, Requested: quantity}
			}
			p.WarehouseInventories[i].Quantity = available - quantity
			p.WarehouseInventories[i].LastUpdated = time.Now()
			return nil
		}
	}
	return ErrWarehouseEntryNotFound
}

// TotalQuantity sums the balances across all warehouses.
func (p *Product) TotalQuantity() int {
	total := 0
	for i := range p.WarehouseInventories {
		total += p.WarehouseInventories[i].Quantity
	}
	return total
}

// IsInStock reports whether the warehouse holds at least the required quantity.
func (p *Product) IsInStock(warehouseId int, requiredQty int) bool {
	return p.WarehouseQuantity(warehouseId) >= requiredQty
}

// IsSelfReferencing reports whether the parent pointer is the row itself
// (the two-phase create convention for single products).
func (p *Product) IsSelfReferencing() bool {
	return p.ParentProductId != nil && *p.ParentProductId == p.ID
}

// saveWarehouseInventories persists the in-memory ledger inside the caller's tx.
func (p *Product) saveWarehouseInventories(tx *gorm.DB) error {
	for i := range p.WarehouseInventories {
		entry := &p.WarehouseInventories[i]
		entry.ProductId = p.ID
		if entry.LastUpdated.IsZero() {
			entry.LastUpdated = time.Now()
		}
		if err := tx.Save(entry).Error; err != nil {
			return err
		}
	}
	return nil
}

/* CRUD */

func (input *NewProduct) validate(ctx context.Context, companyId string, id int) error {
	if len(strings.TrimSpace(input.Sku)) > 0 {
		if err := utils.ValidateUnique[Product](ctx, companyId, "sku", input.Sku, id); err != nil {
			return err
		}
	}
	if input.ParentProductId != nil && *input.ParentProductId != 0 {
		if err := utils.ValidateResourceId[Product](ctx, companyId, *input.ParentProductId); err != nil {
			return errors.New("parent product not found")
		}
	}
	for _, entry := range input.Inventories {
		if entry.Quantity < 0 {
			return errors.New("inventory quantity cannot be negative")
		}
		if err := utils.ValidateResourceId[Warehouse](ctx, companyId, entry.WarehouseId); err != nil {
			return errors.New("warehouse not found")
		}
	}
	return nil
}

// CreateProduct inserts the product, then sets the parent pointer in a second
// step inside the same transaction. Single products point at themselves;
// variants point at the given parent.
func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	db := config.GetDB()

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	if err := input.validate(ctx, companyId, 0); err != nil {
		return nil, err
	}

	productType := input.ProductType
	if productType == "" {
		productType = ProductTypeSingle
	}

	username, _ := utils.GetUsernameFromContext(ctx)

	product := Product{
		CompanyId:     companyId,
		Name:          input.Name,
		Sku:           input.Sku,
		Description:   input.Description,
		ProductType:   productType,
		SalesPrice:    input.SalesPrice,
		PurchasePrice: input.PurchasePrice,
		IsActive:      utils.NewTrue(),
		CreatedBy:     username,
	}
	for _, entry := range input.Inventories {
		product.WarehouseInventories = append(product.WarehouseInventories, WarehouseInventory{
			WarehouseId: entry.WarehouseId,
			Quantity:    entry.Quantity,
			LastUpdated: time.Now(),
		})
	}

	tx := db.Begin()

	if err := tx.WithContext(ctx).Create(&product).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// second phase: the parent pointer needs the generated id. Standalone
	// products point at themselves; variants point at the given parent.
	parentId := product.ID
	if input.ParentProductId != nil && *input.ParentProductId != 0 {
		parentId = *input.ParentProductId
	}
	if err := tx.WithContext(ctx).Model(&Product{}).Where("id = ?", product.ID).
		UpdateColumn("parent_product_id", parentId).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	product.ParentProductId = &parentId

	if parentId != product.ID {
		if err := RebuildParentInventory(ctx, tx, companyId, parentId); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := PublishToStorefront(ctx, tx, companyId, time.Now(), product.ID,
		SyncReferenceTypeProduct, &product, nil, PubSubMessageActionCreate); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := RemoveRedisBoth(product); err != nil {
		return nil, err
	}

	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {
	db := config.GetDB()

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	if err := input.validate(ctx, companyId, id); err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[Product](ctx, companyId, id, "WarehouseInventories")
	if err != nil {
		return nil, &NotFoundError{Resource: "product"}
	}
	oldProduct := *product

	username, _ := utils.GetUsernameFromContext(ctx)

	tx := db.Begin()

	if err := tx.WithContext(ctx).Model(product).Updates(map[string]interface{}{
		"Name":          input.Name,
		"Sku":           input.Sku,
		"Description":   input.Description,
		"SalesPrice":    input.SalesPrice,
		"PurchasePrice": input.PurchasePrice,
		"UpdatedBy":     username,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// explicit inventory list replaces the stored ledger
	if input.Inventories != nil {
		for _, entry := range input.Inventories {
			if err := product.SetWarehouseQuantity(entry.WarehouseId, entry.Quantity); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
		if err := product.saveWarehouseInventories(tx.WithContext(ctx)); err != nil {
			tx.Rollback()
			return nil, err
		}
		if product.ParentProductId != nil && *product.ParentProductId != product.ID {
			if err := RebuildParentInventory(ctx, tx, companyId, *product.ParentProductId); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}

	if err := PublishToStorefront(ctx, tx, companyId, time.Now(), product.ID,
		SyncReferenceTypeProduct, product, &oldProduct, PubSubMessageActionUpdate); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := RemoveRedisBoth(*product); err != nil {
		return nil, err
	}

	return product, nil
}

func DeleteProduct(ctx context.Context, id int) (*Product, error) {
	db := config.GetDB()

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	product, err := utils.FetchModel[Product](ctx, companyId, id, "WarehouseInventories")
	if err != nil {
		return nil, &NotFoundError{Resource: "product"}
	}

	// a parent with live variants cannot be removed
	var variantCount int64
	if err := db.WithContext(ctx).Model(&Product{}).
		Where("parent_product_id = ? AND id <> ?", id, id).
		Count(&variantCount).Error; err != nil {
		return nil, err
	}
	if variantCount > 0 {
		return nil, errors.New("product has variants")
	}

	tx := db.Begin()

	if err := tx.WithContext(ctx).Delete(product).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// deleted variants leave their parent's aggregate
	if product.ParentProductId != nil && *product.ParentProductId != product.ID {
		if err := RebuildParentInventory(ctx, tx, companyId, *product.ParentProductId); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := PublishToStorefront(ctx, tx, companyId, time.Now(), product.ID,
		SyncReferenceTypeProduct, nil, product, PubSubMessageActionDelete); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := RemoveRedisBoth(*product); err != nil {
		return nil, err
	}

	return product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return GetResource[Product](ctx, id, "WarehouseInventories")
}

func ListProduct(ctx context.Context, name *string) ([]*Product, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	db := config.GetDB()
	var results []*Product

	dbCtx := db.WithContext(ctx).Where("company_id = ?", companyId).
		Preload("WarehouseInventories")
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	// db query
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveProduct(ctx context.Context, id int, isActive bool) (*Product, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	return ToggleActiveModel[Product](ctx, companyId, id, isActive)
}
