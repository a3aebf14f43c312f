package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
)

// End-to-end transfer engine coverage against real MySQL + Redis:
// conservation of stock, insufficient/validation rejections without mutation,
// parent aggregation, and the paginated transfer log.
func TestStockTransferLifecycle(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "backoffice_test")
	t.Setenv("DEBUG_STOCK_TRANSFER", "true")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	// History hooks require user info in context.
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUsernameInContext(ctx, "test@local")

	company, err := models.CreateCompany(ctx, &models.NewCompany{
		Name:  "Transfer Test Co",
		Email: "owner@transfer.test",
	})
	if err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}
	ctx = utils.SetCompanyIdInContext(ctx, company.ID.String())

	main, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "Main Warehouse"})
	if err != nil {
		t.Fatalf("CreateWarehouse main: %v", err)
	}
	annex, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "Annex Warehouse"})
	if err != nil {
		t.Fatalf("CreateWarehouse annex: %v", err)
	}

	stapler, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Stapler",
		Sku:  "STAPLER-001",
		Inventories: []models.NewProductInventory{
			{WarehouseId: main.ID, Quantity: 25},
		},
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if stapler.ParentProductId == nil || *stapler.ParentProductId != stapler.ID {
		t.Fatalf("single product must self-reference after create, got %v", stapler.ParentProductId)
	}

	// 1) Successful transfer conserves total stock and snapshots balances.
	result, err := models.TransferStock(ctx, &models.NewStockTransfer{
		ProductId:       stapler.ID,
		FromWarehouseId: main.ID,
		ToWarehouseId:   annex.ID,
		Quantity:        "10",
		Notes:           "restock annex",
	})
	if err != nil {
		t.Fatalf("TransferStock: %v", err)
	}
	if got := result.Product.WarehouseQuantity(main.ID); got != 15 {
		t.Fatalf("main balance after transfer: expected 15, got %d", got)
	}
	if got := result.Product.WarehouseQuantity(annex.ID); got != 10 {
		t.Fatalf("annex balance after transfer: expected 10, got %d", got)
	}
	if got := result.Product.TotalQuantity(); got != 25 {
		t.Fatalf("total stock must be conserved: expected 25, got %d", got)
	}
	tr := result.Transfer
	if tr.Status != models.TransferStatusCompleted {
		t.Fatalf("expected Completed status, got %s", tr.Status)
	}
	if !models.IsValidTransferReferenceCode(tr.ReferenceCode) {
		t.Fatalf("invalid reference code %q", tr.ReferenceCode)
	}
	if tr.SourceBalanceBefore != 25 || tr.SourceBalanceAfter != 15 {
		t.Fatalf("source snapshots: expected 25->15, got %d->%d", tr.SourceBalanceBefore, tr.SourceBalanceAfter)
	}
	if tr.DestinationBalanceBefore != 0 || tr.DestinationBalanceAfter != 10 {
		t.Fatalf("destination snapshots: expected 0->10, got %d->%d", tr.DestinationBalanceBefore, tr.DestinationBalanceAfter)
	}

	// the outbox row is written in the same transaction
	db := config.GetDB()
	var outboxCount int64
	if err := db.Model(&models.PubSubMessageRecord{}).
		Where("company_id = ? AND reference_type = ? AND reference_id = ?",
			company.ID.String(), models.SyncReferenceTypeStockTransfer, tr.ID).
		Count(&outboxCount).Error; err != nil {
		t.Fatalf("count outbox rows: %v", err)
	}
	if outboxCount != 1 {
		t.Fatalf("expected one outbox row for the transfer, got %d", outboxCount)
	}

	// 2) Insufficient stock is rejected without mutating either ledger
	//    and without writing any audit row.
	_, err = models.TransferStock(ctx, &models.NewStockTransfer{
		ProductId:       stapler.ID,
		FromWarehouseId: main.ID,
		ToWarehouseId:   annex.ID,
		Quantity:        "100",
	})
	var insufficient *models.InsufficientQuantityError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientQuantityError, got %v", err)
	}
	if insufficient.WarehouseName != "Main Warehouse" {
		t.Fatalf("error must name the source warehouse, got %q", insufficient.WarehouseName)
	}
	if insufficient.Available != 15 {
		t.Fatalf("expected available 15, got %d", insufficient.Available)
	}
	after, err := models.GetProduct(ctx, stapler.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if after.WarehouseQuantity(main.ID) != 15 || after.WarehouseQuantity(annex.ID) != 10 {
		t.Fatalf("rejected transfer must not mutate: got main=%d annex=%d",
			after.WarehouseQuantity(main.ID), after.WarehouseQuantity(annex.ID))
	}
	var rejectedCount int64
	if err := db.Model(&models.StockTransfer{}).
		Where("company_id = ? AND product_id = ? AND status != ?",
			company.ID.String(), stapler.ID, models.TransferStatusCompleted).
		Count(&rejectedCount).Error; err != nil {
		t.Fatalf("count non-completed transfers: %v", err)
	}
	if rejectedCount != 0 {
		t.Fatalf("rejected transfer must not write an audit row, found %d", rejectedCount)
	}

	// 3) Same-warehouse transfers fail validation, nothing is written.
	_, err = models.TransferStock(ctx, &models.NewStockTransfer{
		ProductId:       stapler.ID,
		FromWarehouseId: main.ID,
		ToWarehouseId:   main.ID,
		Quantity:        "5",
	})
	var validationErrs models.ValidationErrors
	if !errors.As(err, &validationErrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}

	// 4) Zero and negative quantities fail validation.
	for _, qty := range []string{"0", "-5", "2.5", "abc"} {
		_, err = models.TransferStock(ctx, &models.NewStockTransfer{
			ProductId:       stapler.ID,
			FromWarehouseId: main.ID,
			ToWarehouseId:   annex.ID,
			Quantity:        qty,
		})
		if !errors.As(err, &validationErrs) {
			t.Fatalf("quantity %q: expected ValidationErrors, got %v", qty, err)
		}
	}

	// 5) Unknown product / warehouse ids come back as not-found.
	_, err = models.TransferStock(ctx, &models.NewStockTransfer{
		ProductId:       999999,
		FromWarehouseId: main.ID,
		ToWarehouseId:   annex.ID,
		Quantity:        "1",
	})
	var notFound *models.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	// 6) Variant transfers rebuild the variable parent's aggregated ledger.
	shirt, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:        "Shirt",
		Sku:         "SHIRT-000",
		ProductType: models.ProductTypeVariable,
	})
	if err != nil {
		t.Fatalf("CreateProduct parent: %v", err)
	}
	small, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:            "Shirt S",
		Sku:             "SHIRT-S",
		ParentProductId: &shirt.ID,
		Inventories: []models.NewProductInventory{
			{WarehouseId: main.ID, Quantity: 8},
		},
	})
	if err != nil {
		t.Fatalf("CreateProduct variant S: %v", err)
	}
	if _, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:            "Shirt L",
		Sku:             "SHIRT-L",
		ParentProductId: &shirt.ID,
		Inventories: []models.NewProductInventory{
			{WarehouseId: main.ID, Quantity: 4},
			{WarehouseId: annex.ID, Quantity: 2},
		},
	}); err != nil {
		t.Fatalf("CreateProduct variant L: %v", err)
	}

	if _, err := models.TransferStock(ctx, &models.NewStockTransfer{
		ProductId:       small.ID,
		FromWarehouseId: main.ID,
		ToWarehouseId:   annex.ID,
		Quantity:        "3",
	}); err != nil {
		t.Fatalf("TransferStock variant: %v", err)
	}

	parent, err := models.GetProduct(ctx, shirt.ID)
	if err != nil {
		t.Fatalf("GetProduct parent: %v", err)
	}
	// S: main 5, annex 3; L: main 4, annex 2 -> parent main 9, annex 5
	if got := parent.WarehouseQuantity(main.ID); got != 9 {
		t.Fatalf("parent main balance: expected 9, got %d", got)
	}
	if got := parent.WarehouseQuantity(annex.ID); got != 5 {
		t.Fatalf("parent annex balance: expected 5, got %d", got)
	}
	if got := parent.TotalQuantity(); got != 14 {
		t.Fatalf("parent total: expected 14, got %d", got)
	}

	// 7) Transfer log pagination: newest-first, metadata, limit clamp.
	// small holds 5 in main after the variant transfer, enough for the seeds.
	for i := 0; i < 4; i++ {
		if _, err := models.TransferStock(ctx, &models.NewStockTransfer{
			ProductId:       small.ID,
			FromWarehouseId: main.ID,
			ToWarehouseId:   annex.ID,
			Quantity:        "1",
		}); err != nil {
			t.Fatalf("TransferStock log seed %d: %v", i, err)
		}
	}

	page1, err := models.PaginateStockTransfer(ctx,
		models.StockTransferFilters{ProductId: small.ID}, 1, 2)
	if err != nil {
		t.Fatalf("PaginateStockTransfer: %v", err)
	}
	// 1 initial variant transfer + 4 seeds
	if page1.Pagination.Total != 5 {
		t.Fatalf("expected total 5 for variant product, got %d", page1.Pagination.Total)
	}
	if len(page1.Records) != 2 {
		t.Fatalf("expected 2 records on page 1, got %d", len(page1.Records))
	}
	if !page1.Pagination.HasNextPage || page1.Pagination.HasPrevPage {
		t.Fatalf("page 1 metadata wrong: %+v", page1.Pagination)
	}
	// newest first
	if page1.Records[0].ID < page1.Records[1].ID {
		t.Fatalf("expected newest-first ordering, got ids %d, %d", page1.Records[0].ID, page1.Records[1].ID)
	}

	page3, err := models.PaginateStockTransfer(ctx,
		models.StockTransferFilters{ProductId: small.ID}, 3, 2)
	if err != nil {
		t.Fatalf("PaginateStockTransfer page 3: %v", err)
	}
	if len(page3.Records) != 1 {
		t.Fatalf("expected 1 record on page 3, got %d", len(page3.Records))
	}
	if page3.Pagination.HasNextPage || !page3.Pagination.HasPrevPage {
		t.Fatalf("page 3 metadata wrong: %+v", page3.Pagination)
	}

	clamped, err := models.PaginateStockTransfer(ctx, models.StockTransferFilters{}, 1, 1000)
	if err != nil {
		t.Fatalf("PaginateStockTransfer clamp: %v", err)
	}
	if clamped.Pagination.Limit != models.MaxPageLimit {
		t.Fatalf("expected limit clamped to %d, got %d", models.MaxPageLimit, clamped.Pagination.Limit)
	}

	// 8) Audit rows are immutable history: re-reading the first transfer shows
	//    the original snapshots untouched by later activity.
	var firstAgain models.StockTransfer
	if err := db.Where("id = ?", tr.ID).First(&firstAgain).Error; err != nil {
		t.Fatalf("reload first transfer: %v", err)
	}
	if firstAgain.SourceBalanceBefore != 25 || firstAgain.SourceBalanceAfter != 15 {
		t.Fatalf("audit row mutated: %+v", firstAgain)
	}

	// 9) A variable parent is never a direct transfer target: its ledger is
	//    derived, so the engine must reject it outright.
	_, err = models.TransferStock(ctx, &models.NewStockTransfer{
		ProductId:       shirt.ID,
		FromWarehouseId: main.ID,
		ToWarehouseId:   annex.ID,
		Quantity:        "1",
	})
	if !errors.As(err, &validationErrs) {
		t.Fatalf("expected ValidationErrors for variable parent target, got %v", err)
	}
	if !strings.Contains(validationErrs.Error(), "variable parent") {
		t.Fatalf("unexpected rejection message: %v", validationErrs)
	}
	parentAfter, err := models.GetProduct(ctx, shirt.ID)
	if err != nil {
		t.Fatalf("GetProduct parent after rejection: %v", err)
	}
	// S: main 1, annex 7 after the log seeds; L: main 4, annex 2
	if parentAfter.WarehouseQuantity(main.ID) != 5 || parentAfter.WarehouseQuantity(annex.ID) != 9 {
		t.Fatalf("rejected parent transfer must not touch the aggregate: main=%d annex=%d",
			parentAfter.WarehouseQuantity(main.ID), parentAfter.WarehouseQuantity(annex.ID))
	}
	var parentRows int64
	if err := db.Model(&models.StockTransfer{}).
		Where("company_id = ? AND product_id = ?", company.ID.String(), shirt.ID).
		Count(&parentRows).Error; err != nil {
		t.Fatalf("count parent transfers: %v", err)
	}
	if parentRows != 0 {
		t.Fatalf("rejected parent transfer must not write an audit row, found %d", parentRows)
	}

	// 10) A dangling parent pointer (imported/legacy data) does not block the
	//     variant's transfer; the rebuild is a no-op when the parent is gone.
	ghost, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:        "Ghost Parent",
		Sku:         "GHOST-000",
		ProductType: models.ProductTypeVariable,
	})
	if err != nil {
		t.Fatalf("CreateProduct ghost parent: %v", err)
	}
	orphan, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:            "Ghost S",
		Sku:             "GHOST-S",
		ParentProductId: &ghost.ID,
		Inventories: []models.NewProductInventory{
			{WarehouseId: main.ID, Quantity: 6},
		},
	})
	if err != nil {
		t.Fatalf("CreateProduct orphan variant: %v", err)
	}
	if err := db.WithContext(ctx).Delete(&models.Product{}, ghost.ID).Error; err != nil {
		t.Fatalf("soft-delete ghost parent: %v", err)
	}
	orphanResult, err := models.TransferStock(ctx, &models.NewStockTransfer{
		ProductId:       orphan.ID,
		FromWarehouseId: main.ID,
		ToWarehouseId:   annex.ID,
		Quantity:        "2",
	})
	if err != nil {
		t.Fatalf("transfer on variant with missing parent must succeed, got %v", err)
	}
	if orphanResult.Product.WarehouseQuantity(main.ID) != 4 || orphanResult.Product.WarehouseQuantity(annex.ID) != 2 {
		t.Fatalf("orphan variant balances wrong: main=%d annex=%d",
			orphanResult.Product.WarehouseQuantity(main.ID), orphanResult.Product.WarehouseQuantity(annex.ID))
	}

	// 11) With strict immutability on, the audit log rejects edits and deletes.
	t.Setenv("STRICT_TRANSFER_IMMUTABLE", "true")
	err = db.WithContext(ctx).Model(&models.StockTransfer{}).
		Where("id = ?", tr.ID).Update("notes", "edited").Error
	if !errors.Is(err, config.ErrTransferRecordImmutable) {
		t.Fatalf("expected immutability error on update, got %v", err)
	}
	err = db.WithContext(ctx).Delete(&models.StockTransfer{}, tr.ID).Error
	if !errors.Is(err, config.ErrTransferRecordImmutable) {
		t.Fatalf("expected immutability error on delete, got %v", err)
	}
	var untouched models.StockTransfer
	if err := db.Where("id = ?", tr.ID).First(&untouched).Error; err != nil {
		t.Fatalf("reload guarded transfer: %v", err)
	}
	if untouched.Notes != tr.Notes {
		t.Fatalf("guarded row was edited: %q", untouched.Notes)
	}
}

// Concurrent transfers of the same product must conserve total stock and
// never drive a warehouse negative; the per-product lock and the row locks
// serialize the balance check against the mutation.
func TestConcurrentTransfersConserveStock(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "backoffice_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUsernameInContext(ctx, "test@local")

	company, err := models.CreateCompany(ctx, &models.NewCompany{
		Name:  "Concurrency Test Co",
		Email: "owner@concurrency.test",
	})
	if err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}
	ctx = utils.SetCompanyIdInContext(ctx, company.ID.String())

	main, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "Main Warehouse"})
	if err != nil {
		t.Fatalf("CreateWarehouse main: %v", err)
	}
	annex, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "Annex Warehouse"})
	if err != nil {
		t.Fatalf("CreateWarehouse annex: %v", err)
	}

	const seed = 100
	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Counter",
		Sku:  "COUNTER-001",
		Inventories: []models.NewProductInventory{
			{WarehouseId: main.ID, Quantity: seed},
		},
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	// 10 workers moving 10 each exactly drains main into annex; any lost or
	// doubled update shows up in the final balances.
	const workers = 10
	const each = 10
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := models.TransferStock(ctx, &models.NewStockTransfer{
				ProductId:       product.ID,
				FromWarehouseId: main.ID,
				ToWarehouseId:   annex.ID,
				Quantity:        fmt.Sprint(each),
			})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("concurrent TransferStock: %v", err)
		}
	}

	after, err := models.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got := after.WarehouseQuantity(main.ID); got != 0 {
		t.Fatalf("main balance after concurrent drain: expected 0, got %d", got)
	}
	if got := after.WarehouseQuantity(annex.ID); got != seed {
		t.Fatalf("annex balance after concurrent drain: expected %d, got %d", seed, got)
	}
	if got := after.TotalQuantity(); got != seed {
		t.Fatalf("total stock must be conserved: expected %d, got %d", seed, got)
	}
	for _, entry := range after.WarehouseInventories {
		if entry.Quantity < 0 {
			t.Fatalf("negative balance in warehouse %d: %d", entry.WarehouseId, entry.Quantity)
		}
	}

	var completed int64
	if err := config.GetDB().Model(&models.StockTransfer{}).
		Where("company_id = ? AND product_id = ? AND status = ?",
			company.ID.String(), product.ID, models.TransferStatusCompleted).
		Count(&completed).Error; err != nil {
		t.Fatalf("count completed transfers: %v", err)
	}
	if completed != workers {
		t.Fatalf("expected %d completed audit rows, got %d", workers, completed)
	}
}
