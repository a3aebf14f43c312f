package reports

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/xuri/excelize/v2"
)

type StockTransferReportRow struct {
	ReferenceCode     string    `json:"referenceCode"`
	TransferDate      time.Time `json:"transferDate"`
	ProductName       string    `json:"productName"`
	ProductSku        string    `json:"productSku"`
	FromWarehouseName string    `json:"fromWarehouseName"`
	ToWarehouseName   string    `json:"toWarehouseName"`
	Quantity          int       `json:"quantity"`
	Status            string    `json:"status"`
	Notes             string    `json:"notes"`
	CreatedBy         string    `json:"createdBy"`
}

func GetStockTransferReport(ctx context.Context, filters models.StockTransferFilters) ([]*StockTransferReportRow, error) {

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	sql := `
SELECT
    st.reference_code,
    st.transfer_date,
    p.name AS product_name,
    p.sku AS product_sku,
    wf.name AS from_warehouse_name,
    wt.name AS to_warehouse_name,
    st.quantity,
    st.status,
    st.notes,
    st.created_by
FROM stock_transfers st
    LEFT JOIN products p ON p.id = st.product_id
    LEFT JOIN warehouses wf ON wf.id = st.from_warehouse_id
    LEFT JOIN warehouses wt ON wt.id = st.to_warehouse_id
WHERE st.company_id = @companyId
  AND st.deleted_at IS NULL
  AND (@productId = 0 OR st.product_id = @productId)
  AND (@fromWarehouseId = 0 OR st.from_warehouse_id = @fromWarehouseId)
  AND (@toWarehouseId = 0 OR st.to_warehouse_id = @toWarehouseId)
ORDER BY st.created_at DESC, st.id DESC;
`

	var records []*StockTransferReportRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql,
		map[string]interface{}{
			"companyId":       companyId,
			"productId":       filters.ProductId,
			"fromWarehouseId": filters.FromWarehouseId,
			"toWarehouseId":   filters.ToWarehouseId,
		}).Scan(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

// ExportStockTransferExcel streams the transfer log as an xlsx attachment.
func ExportStockTransferExcel(w http.ResponseWriter, data []*StockTransferReportRow) {

	f := excelize.NewFile()
	_, err := f.NewSheet("Sheet1")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Add headers
	f.SetCellValue("Sheet1", "A1", "ReferenceCode")
	f.SetCellValue("Sheet1", "B1", "TransferDate")
	f.SetCellValue("Sheet1", "C1", "Product")
	f.SetCellValue("Sheet1", "D1", "Sku")
	f.SetCellValue("Sheet1", "E1", "FromWarehouse")
	f.SetCellValue("Sheet1", "F1", "ToWarehouse")
	f.SetCellValue("Sheet1", "G1", "Quantity")
	f.SetCellValue("Sheet1", "H1", "Status")
	f.SetCellValue("Sheet1", "I1", "Notes")
	f.SetCellValue("Sheet1", "J1", "CreatedBy")

	// Add data
	for i, d := range data {
		row := fmt.Sprint(i + 2)
		f.SetCellValue("Sheet1", "A"+row, d.ReferenceCode)
		f.SetCellValue("Sheet1", "B"+row, d.TransferDate.Format("2006-01-02 15:04:05"))
		f.SetCellValue("Sheet1", "C"+row, d.ProductName)
		f.SetCellValue("Sheet1", "D"+row, d.ProductSku)
		f.SetCellValue("Sheet1", "E"+row, d.FromWarehouseName)
		f.SetCellValue("Sheet1", "F"+row, d.ToWarehouseName)
		f.SetCellValue("Sheet1", "G"+row, d.Quantity)
		f.SetCellValue("Sheet1", "H"+row, d.Status)
		f.SetCellValue("Sheet1", "I"+row, d.Notes)
		f.SetCellValue("Sheet1", "J"+row, d.CreatedBy)
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=stock-transfers.xlsx")
	if err := f.Write(w); err != nil {
		http.Error(w, "Failed to write file", http.StatusInternalServerError)
	}
}
