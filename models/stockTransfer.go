package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"regexp"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockTransfer is the append-only audit row for one warehouse-to-warehouse
// movement. Balance snapshots are captured around the mutation so the log can
// be replayed and reconciled.
type StockTransfer struct {
	ID              int    `gorm:"primary_key" json:"id"`
	CompanyId       string `gorm:"size:64;index;not null" json:"company_id"`
	ReferenceCode   string `gorm:"size:100;uniqueIndex;not null" json:"reference_code"`
	ProductId       int    `gorm:"index;not null" json:"product_id"`
	FromWarehouseId int    `gorm:"index;not null" json:"from_warehouse_id"`
	ToWarehouseId   int    `gorm:"index;not null" json:"to_warehouse_id"`
	Quantity        int    `gorm:"not null" json:"quantity"`

	SourceBalanceBefore      int `gorm:"not null;default:0" json:"source_balance_before"`
	SourceBalanceAfter       int `gorm:"not null;default:0" json:"source_balance_after"`
	DestinationBalanceBefore int `gorm:"not null;default:0" json:"destination_balance_before"`
	DestinationBalanceAfter  int `gorm:"not null;default:0" json:"destination_balance_after"`

	TransferDate  time.Time      `gorm:"index;not null" json:"transfer_date"`
	Status        TransferStatus `gorm:"type:enum('Pending','Completed','Failed');default:'Pending'" json:"status"`
	FailureReason *string        `gorm:"type:text" json:"failure_reason"`
	Notes         string         `gorm:"type:text" json:"notes"`

	CreatedBy string         `gorm:"size:100" json:"created_by"`
	UpdatedBy string         `gorm:"size:100" json:"updated_by"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`

	// display names, populated by the loaders for list responses
	ProductName       string `gorm:"-" json:"product_name,omitempty"`
	FromWarehouseName string `gorm:"-" json:"from_warehouse_name,omitempty"`
	ToWarehouseName   string `gorm:"-" json:"to_warehouse_name,omitempty"`
}

// NewStockTransfer is the transfer request. Clients send snake_case or
// camelCase keys; quantity may arrive as a number or a string.
type NewStockTransfer struct {
	ProductId       int
	FromWarehouseId int
	ToWarehouseId   int
	Quantity        string
	Notes           string
}

func (input *NewStockTransfer) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	pickInt := func(keys ...string) int {
		for _, key := range keys {
			if v, ok := raw[key]; ok {
				var n int
				if err := json.Unmarshal(v, &n); err == nil {
					return n
				}
				var s string
				if err := json.Unmarshal(v, &s); err == nil {
					if parsed, perr := utils.ParsePositiveInt(s); perr == nil {
						return parsed
					}
				}
			}
		}
		return 0
	}
	pickString := func(keys ...string) string {
		for _, key := range keys {
			if v, ok := raw[key]; ok {
				var s string
				if err := json.Unmarshal(v, &s); err == nil {
					return s
				}
				// number tolerated, kept raw for later parsing
				return strings.Trim(string(v), `"`)
			}
		}
		return ""
	}

	input.ProductId = pickInt("product_id", "productId")
	input.FromWarehouseId = pickInt("from_warehouse_id", "fromWarehouseId")
	input.ToWarehouseId = pickInt("to_warehouse_id", "toWarehouseId")
	input.Quantity = pickString("quantity")
	input.Notes = pickString("notes")
	return nil
}

// StockTransferResult is what the API returns on success: the audit row plus
// the product with its post-transfer ledger.
type StockTransferResult struct {
	Transfer *StockTransfer `json:"transfer"`
	Product  *Product       `json:"product"`
}

var transferReferencePattern = regexp.MustCompile(`^ST-\d+-\d{4}$`)

// GenerateTransferReferenceCode builds ST-<epoch-ms>-<4-digit-random>.
func GenerateTransferReferenceCode() string {
	return fmt.Sprintf("ST-%d-%04d", time.Now().UnixMilli(), rand.Intn(10000))
}

func IsValidTransferReferenceCode(code string) bool {
	return transferReferencePattern.MatchString(code)
}

// syntactic checks, collected rather than short-circuited
func (input *NewStockTransfer) validate() (int, ValidationErrors) {
	var errs ValidationErrors

	if input.ProductId <= 0 {
		errs = append(errs, "product is required")
	}
	if input.FromWarehouseId <= 0 {
		errs = append(errs, "source warehouse is required")
	}
	if input.ToWarehouseId <= 0 {
		errs = append(errs, "destination warehouse is required")
	}
	qty, err := utils.ParsePositiveInt(input.Quantity)
	if err != nil {
		errs = append(errs, "quantity must be a positive whole number")
	}
	if input.FromWarehouseId > 0 && input.FromWarehouseId == input.ToWarehouseId {
		errs = append(errs, "source and destination warehouses must be different")
	}
	return qty, errs
}

// TransferStock moves quantity between two warehouses of one product,
// atomically: ledger rows are locked FOR UPDATE inside one transaction while a
// per-product redis lock serializes concurrent transfer requests.
func TransferStock(ctx context.Context, input *NewStockTransfer) (*StockTransferResult, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	qty, validationErrs := input.validate()
	if len(validationErrs) > 0 {
		return nil, validationErrs
	}

	// existence checks before taking any lock
	if err := utils.ValidateResourceId[Product](ctx, companyId, input.ProductId); err != nil {
		return nil, &NotFoundError{Resource: "product"}
	}
	fromWarehouse, err := utils.FetchModel[Warehouse](ctx, companyId, input.FromWarehouseId)
	if err != nil {
		return nil, &NotFoundError{Resource: "source warehouse"}
	}
	if _, err := utils.FetchModel[Warehouse](ctx, companyId, input.ToWarehouseId); err != nil {
		return nil, &NotFoundError{Resource: "destination warehouse"}
	}

	// serialize transfers of the same product
	lockKey := fmt.Sprintf("stockTransferLock:%s:%d", companyId, input.ProductId)
	lock, err := utils.ObtainResourceLock(ctx, lockKey, "StockTransfer", "TransferStock")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	username, _ := utils.GetUsernameFromContext(ctx)
	debug := strings.EqualFold(strings.TrimSpace(os.Getenv("DEBUG_STOCK_TRANSFER")), "true")

	tx := db.Begin()

	// row locks close the check-then-mutate window against writers that do
	// not hold the redis lock
	var product Product
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company_id = ?", companyId).
		First(&product, input.ProductId).Error; err != nil {
		tx.Rollback()
		return nil, &NotFoundError{Resource: "product"}
	}

	// a variable parent's ledger is derived from its variants; moving stock
	// on it directly would be overwritten by the next rebuild
	if product.ProductType == ProductTypeVariable {
		tx.Rollback()
		return nil, ValidationErrors{"cannot transfer stock on a variable parent product"}
	}

	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", product.ID).
		Find(&product.WarehouseInventories).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	sourceBefore := product.WarehouseQuantity(input.FromWarehouseId)
	destBefore := product.WarehouseQuantity(input.ToWarehouseId)

	if sourceBefore < qty {
		tx.Rollback()
		return nil, &InsufficientQuantityError{
			WarehouseName: fromWarehouse.Name,
			Available:     sourceBefore,
			Requested:     qty,
		}
	}

	if debug {
		logger.WithFields(logrus.Fields{
			"field":             "TransferStock",
			"company_id":        companyId,
			"product_id":        product.ID,
			"from_warehouse_id": input.FromWarehouseId,
			"to_warehouse_id":   input.ToWarehouseId,
			"quantity":          qty,
			"source_before":     sourceBefore,
			"dest_before":       destBefore,
		}).Info("begin stock transfer")
	}

	transfer, err := applyTransfer(ctx, tx, &product, companyId, input, qty, sourceBefore, destBefore, username)
	if err != nil {
		tx.Rollback()
		config.LogError(logger, "StockTransfer", "TransferStock", "mutation failed; rollback", input, err)
		recordFailedTransfer(ctx, companyId, input, qty, username, err)
		return nil, &InternalError{Err: err}
	}

	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "StockTransfer", "TransferStock", "commit failed", input, err)
		recordFailedTransfer(ctx, companyId, input, qty, username, err)
		return nil, &InternalError{Err: err}
	}

	if err := RemoveRedisBoth(product); err != nil {
		return nil, err
	}

	return &StockTransferResult{Transfer: transfer, Product: &product}, nil
}

// applyTransfer runs the mutation sequence inside the open transaction:
// decrease source, increase destination, persist ledger, rebuild parent
// aggregate, insert the Completed audit row, write the outbox event.
func applyTransfer(ctx context.Context, tx *gorm.DB, product *Product, companyId string,
	input *NewStockTransfer, qty int, sourceBefore int, destBefore int, username string) (*StockTransfer, error) {

	if err := product.DecreaseWarehouseQuantity(input.FromWarehouseId, qty); err != nil {
		return nil, err
	}
	if err := product.IncreaseWarehouseQuantity(input.ToWarehouseId, qty); err != nil {
		return nil, err
	}
	if err := product.saveWarehouseInventories(tx.WithContext(ctx)); err != nil {
		return nil, err
	}

	if product.ParentProductId != nil && *product.ParentProductId != product.ID {
		if err := RebuildParentInventory(ctx, tx, companyId, *product.ParentProductId); err != nil {
			return nil, err
		}
	}

	transfer := StockTransfer{
		CompanyId:                companyId,
		ProductId:                product.ID,
		FromWarehouseId:          input.FromWarehouseId,
		ToWarehouseId:            input.ToWarehouseId,
		Quantity:                 qty,
		SourceBalanceBefore:      sourceBefore,
		SourceBalanceAfter:       sourceBefore - qty,
		DestinationBalanceBefore: destBefore,
		DestinationBalanceAfter:  destBefore + qty,
		Status:                   TransferStatusCompleted,
		Notes:                    input.Notes,
		CreatedBy:                username,
	}
	if err := createStockTransferTx(ctx, tx, &transfer); err != nil {
		return nil, err
	}

	if err := PublishToStorefront(ctx, tx, companyId, transfer.TransferDate, transfer.ID,
		SyncReferenceTypeStockTransfer, &transfer, nil, PubSubMessageActionCreate); err != nil {
		return nil, err
	}

	return &transfer, nil
}

// recordFailedTransfer writes a best-effort Failed audit row outside the
// rolled-back transaction so operators can see what was attempted.
func recordFailedTransfer(ctx context.Context, companyId string, input *NewStockTransfer, qty int, username string, cause error) {
	db := config.GetDB()
	logger := config.GetLogger()

	reason := cause.Error()
	failed := StockTransfer{
		CompanyId:       companyId,
		ProductId:       input.ProductId,
		FromWarehouseId: input.FromWarehouseId,
		ToWarehouseId:   input.ToWarehouseId,
		Quantity:        qty,
		Status:          TransferStatusFailed,
		FailureReason:   &reason,
		Notes:           input.Notes,
		CreatedBy:       username,
	}
	if err := createStockTransferTx(ctx, db, &failed); err != nil {
		config.LogError(logger, "StockTransfer", "recordFailedTransfer", "could not persist failed transfer record", input, err)
	}
}

// createStockTransferTx inserts an audit row, backfilling the reference code
// and transfer date when absent. Rows are never updated after insert.
func createStockTransferTx(ctx context.Context, tx *gorm.DB, transfer *StockTransfer) error {
	if transfer.ReferenceCode == "" {
		transfer.ReferenceCode = GenerateTransferReferenceCode()
	}
	if transfer.TransferDate.IsZero() {
		transfer.TransferDate = time.Now()
	}
	return tx.WithContext(ctx).Create(transfer).Error
}

// CreateStockTransfer appends a transfer record directly (migration/import path).
func CreateStockTransfer(ctx context.Context, transfer *StockTransfer) (*StockTransfer, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	transfer.CompanyId = companyId
	if err := createStockTransferTx(ctx, config.GetDB(), transfer); err != nil {
		return nil, err
	}
	return transfer, nil
}

// StockTransferFilters narrows the transfer log; zero values mean "any".
type StockTransferFilters struct {
	ProductId       int `form:"product_id" json:"product_id"`
	FromWarehouseId int `form:"from_warehouse_id" json:"from_warehouse_id"`
	ToWarehouseId   int `form:"to_warehouse_id" json:"to_warehouse_id"`
}

// PaginateStockTransfer lists the company's transfer log newest-first with
// offset pagination. Limit is clamped to MaxPageLimit.
func PaginateStockTransfer(ctx context.Context, filters StockTransferFilters, page int, limit int) (*OffsetPage[StockTransfer], error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&StockTransfer{}).
		Where("company_id = ?", companyId)
	if filters.ProductId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", filters.ProductId)
	}
	if filters.FromWarehouseId > 0 {
		dbCtx = dbCtx.Where("from_warehouse_id = ?", filters.FromWarehouseId)
	}
	if filters.ToWarehouseId > 0 {
		dbCtx = dbCtx.Where("to_warehouse_id = ?", filters.ToWarehouseId)
	}

	return FetchOffsetPage[StockTransfer](dbCtx, page, limit, "created_at DESC, id DESC")
}
