// parent-inventory-rebuild recomputes the aggregated warehouse ledger of
// variable products from their variants. Run it after bulk imports or when a
// parent ledger is suspected stale.
//
// Usage:
//   go run ./cmd/parent-inventory-rebuild --company-id <uuid> [--product-id N]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"gorm.io/gorm"
)

func main() {
	companyID := flag.String("company-id", "", "Required: company id (uuid)")
	productID := flag.Int("product-id", 0, "Optional: rebuild a single variable product")
	flag.Parse()

	if strings.TrimSpace(*companyID) == "" {
		fmt.Fprintln(os.Stderr, "--company-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := context.Background()
	ctx = utils.SetCompanyIdInContext(ctx, *companyID)
	ctx = utils.SetUserNameInContext(ctx, "ParentInventoryRebuild")

	if *productID > 0 {
		fmt.Printf("Rebuilding parent inventory company=%s product=%d\n", *companyID, *productID)
		if err := db.Transaction(func(tx *gorm.DB) error {
			return models.RebuildParentInventory(ctx, tx, *companyID, *productID)
		}); err != nil {
			fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Printf("Rebuilding all parent inventories company=%s\n", *companyID)
		var rebuilt int
		if err := db.Transaction(func(tx *gorm.DB) error {
			n, err := models.RebuildAllParentInventories(ctx, tx, *companyID)
			rebuilt = n
			return err
		}); err != nil {
			fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Rebuilt %d parent products\n", rebuilt)
	}

	fmt.Println("parent inventory rebuild complete")
}
