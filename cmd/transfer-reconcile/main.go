// transfer-reconcile replays the completed transfer log per product/warehouse
// and reports rows whose balance snapshots are inconsistent:
//   - source_balance_after != source_balance_before - quantity
//   - destination_balance_after != destination_balance_before + quantity
//   - malformed reference codes
//
// Usage:
//   go run ./cmd/transfer-reconcile --company-id <uuid> [--product-id N]
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
)

func main() {
	companyID := flag.String("company-id", "", "Required: company id (uuid)")
	productID := flag.Int("product-id", 0, "Optional: restrict to one product")
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

	q := db.Model(&models.StockTransfer{}).
		Where("company_id = ? AND status = ?", *companyID, models.TransferStatusCompleted).
		Order("id ASC")
	if *productID > 0 {
		q = q.Where("product_id = ?", *productID)
	}

	var transfers []models.StockTransfer
	if err := q.Find(&transfers).Error; err != nil {
		fmt.Fprintf(os.Stderr, "load transfers: %v\n", err)
		os.Exit(1)
	}

	bad := 0
	for _, t := range transfers {
		var problems []string
		if t.SourceBalanceAfter != t.SourceBalanceBefore-t.Quantity {
			problems = append(problems, fmt.Sprintf("source balance mismatch: %d -> %d, moved %d",
				t.SourceBalanceBefore, t.SourceBalanceAfter, t.Quantity))
		}
		if t.DestinationBalanceAfter != t.DestinationBalanceBefore+t.Quantity {
			problems = append(problems, fmt.Sprintf("destination balance mismatch: %d -> %d, moved %d",
				t.DestinationBalanceBefore, t.DestinationBalanceAfter, t.Quantity))
		}
		if t.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("non-positive quantity %d", t.Quantity))
		}
		if !models.IsValidTransferReferenceCode(t.ReferenceCode) {
			problems = append(problems, fmt.Sprintf("malformed reference code %q", t.ReferenceCode))
		}
		if len(problems) > 0 {
			bad++
			fmt.Printf("transfer id=%d ref=%s product=%d %d->%d:\n", t.ID, t.ReferenceCode, t.ProductId, t.FromWarehouseId, t.ToWarehouseId)
			for _, p := range problems {
				fmt.Printf("  - %s\n", p)
			}
		}
	}

	fmt.Printf("checked %d completed transfers, %d inconsistent\n", len(transfers), bad)
	if bad > 0 {
		os.Exit(2)
	}
}
