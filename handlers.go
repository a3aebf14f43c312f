package main

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/middlewares"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/models/reports"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// apiResponse is the envelope every JSON endpoint answers with.
type apiResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
}

func respondError(c *gin.Context, err error) {
	var validationErrs models.ValidationErrors
	if errors.As(err, &validationErrs) {
		c.JSON(http.StatusBadRequest, apiResponse{
			Success: false,
			Message: "validation failed",
			Errors:  validationErrs.Messages(),
		})
		return
	}

	var notFound *models.NotFoundError
	if errors.As(err, &notFound) {
		c.JSON(http.StatusBadRequest, apiResponse{
			Success: false,
			Message: notFound.Error(),
			Errors:  []string{notFound.Error()},
		})
		return
	}

	var insufficient *models.InsufficientQuantityError
	if errors.As(err, &insufficient) {
		c.JSON(http.StatusBadRequest, apiResponse{
			Success: false,
			Message: insufficient.Error(),
			Errors:  []string{insufficient.Error()},
		})
		return
	}

	var internal *models.InternalError
	if errors.As(err, &internal) {
		c.JSON(http.StatusInternalServerError, apiResponse{
			Success: false,
			Message: internal.Error(),
		})
		return
	}

	c.JSON(http.StatusBadRequest, apiResponse{
		Success: false,
		Message: err.Error(),
		Errors:  []string{err.Error()},
	})
}

// respondBindError maps gin binding failures: field-level validator errors are
// returned as a field->message map, anything else as a generic 400.
func respondBindError(c *gin.Context, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		c.JSON(http.StatusBadRequest, apiResponse{
			Success: false,
			Message: "validation failed",
			Data:    utils.ProcessValidationErrors(err),
		})
		return
	}
	c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: "invalid request body"})
}

func requireCompany(c *gin.Context) bool {
	companyId, ok := utils.GetCompanyIdFromContext(c.Request.Context())
	if !ok || companyId == "" {
		c.JSON(http.StatusUnauthorized, apiResponse{Success: false, Message: "unauthorized"})
		return false
	}
	return true
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: "username and password are required"})
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, apiResponse{Success: false, Message: "invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, apiResponse{Success: true, Message: "login successful", Data: info})
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := models.Logout(c.Request.Context()); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, apiResponse{Success: true, Message: "logged out"})
	}
}

func stockTransferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCompany(c) {
			return
		}
		var input models.NewStockTransfer
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, apiResponse{
				Success: false,
				Message: "invalid request body",
				Errors:  []string{"request body must be a JSON object"},
			})
			return
		}

		result, err := models.TransferStock(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, apiResponse{
			Success: true,
			Message: "stock transferred successfully",
			Data:    result,
		})
	}
}

func listStockTransfersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCompany(c) {
			return
		}
		var filters models.StockTransferFilters
		if err := c.ShouldBindQuery(&filters); err != nil {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: "invalid filters"})
			return
		}
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(models.DefaultPageLimit)))

		result, err := models.PaginateStockTransfer(c.Request.Context(), filters, page, limit)
		if err != nil {
			respondError(c, err)
			return
		}

		// display names via the request-scoped loaders
		ctx := c.Request.Context()
		for _, t := range result.Records {
			if p, err := middlewares.GetProduct(ctx, t.ProductId); err == nil && p != nil {
				t.ProductName = p.Name
			}
			if w, err := middlewares.GetWarehouse(ctx, t.FromWarehouseId); err == nil && w != nil {
				t.FromWarehouseName = w.Name
			}
			if w, err := middlewares.GetWarehouse(ctx, t.ToWarehouseId); err == nil && w != nil {
				t.ToWarehouseName = w.Name
			}
		}

		c.JSON(http.StatusOK, apiResponse{Success: true, Message: "ok", Data: result})
	}
}

func exportStockTransfersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCompany(c) {
			return
		}
		var filters models.StockTransferFilters
		if err := c.ShouldBindQuery(&filters); err != nil {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: "invalid filters"})
			return
		}
		rows, err := reports.GetStockTransferReport(c.Request.Context(), filters)
		if err != nil {
			respondError(c, err)
			return
		}
		reports.ExportStockTransferExcel(c.Writer, rows)
	}
}

const adminStockTransferPath = "/admin/products/stock-transfer"

// adminStockTransferHandler serves the back-office form post. Outcomes are
// flashed back onto the stock-transfer form via query params, keeping the
// selected product in view.
func adminStockTransferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCompany(c) {
			return
		}
		input := models.NewStockTransfer{
			Quantity: c.PostForm("quantity"),
			Notes:    c.PostForm("notes"),
		}
		input.ProductId, _ = strconv.Atoi(c.PostForm("product_id"))
		input.FromWarehouseId, _ = strconv.Atoi(c.PostForm("from_warehouse_id"))
		input.ToWarehouseId, _ = strconv.Atoi(c.PostForm("to_warehouse_id"))

		redirect := url.Values{}
		if input.ProductId > 0 {
			redirect.Set("product_id", strconv.Itoa(input.ProductId))
		}

		result, err := models.TransferStock(c.Request.Context(), &input)
		if err != nil {
			var validationErrs models.ValidationErrors
			if errors.As(err, &validationErrs) {
				for _, msg := range validationErrs.Messages() {
					redirect.Add("flash_error", msg)
				}
			} else {
				redirect.Add("flash_error", err.Error())
			}
			c.Redirect(http.StatusFound, adminStockTransferPath+"?"+redirect.Encode())
			return
		}

		redirect.Set("flash_success", "stock transferred: "+result.Transfer.ReferenceCode)
		c.Redirect(http.StatusFound, adminStockTransferPath+"?"+redirect.Encode())
	}
}

/* warehouse CRUD */

func createWarehouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCompany(c) {
			return
		}
		var input models.NewWarehouse
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		warehouse, err := models.CreateWarehouse(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, apiResponse{Success: true, Message: "warehouse created", Data: warehouse})
	}
}

func updateWarehouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCompany(c) {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: "invalid warehouse id"})
			return
		}
		var input models.NewWarehouse
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		warehouse, err := models.UpdateWarehouse(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, apiResponse{Success: true, Message: "warehouse updated", Data: warehouse})
	}
}

func deleteWarehouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCompany(c) {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: "invalid warehouse id"})
			return
		}
		warehouse, err := models.DeleteWarehouse(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, apiResponse{Success: true, Message: "warehouse deleted", Data: warehouse})
	}
}

func getWarehouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCompany(c) {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: "invalid warehouse id"})
			return
		}
		warehouse, err := models.GetWarehouse(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, apiResponse{Success: true, Message: "ok", Data: warehouse})
	}
}

func listWarehousesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCompany(c) {
			return
		}
		var name *string
		if v := c.Query("name"); v != "" {
			name = &v
		}
		warehouses, err := models.ListWarehouse(c.Request.Context(), name)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, apiResponse{Success: true, Message: "ok", Data: warehouses})
	}
}

func toggleActiveWarehouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCompany(c) {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: "invalid warehouse id"})
			return
		}
		var req struct {
			IsActive bool `json:"is_active"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: "is_active is required"})
			return
		}
		warehouse, err := models.ToggleActiveWarehouse(c.Request.Context(), id, req.IsActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, apiResponse{Success: true, Message: "ok", Data: warehouse})
	}
}

/* product CRUD */

func createProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCompany(c) {
			return
		}
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, apiResponse{Success: true, Message: "product created", Data: product})
	}
}

func updateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCompany(c) {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: "invalid product id"})
			return
		}
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		product, err := models.UpdateProduct(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, apiResponse{Success: true, Message: "product updated", Data: product})
	}
}

func deleteProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCompany(c) {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: "invalid product id"})
			return
		}
		product, err := models.DeleteProduct(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, apiResponse{Success: true, Message: "product deleted", Data: product})
	}
}

func getProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCompany(c) {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: "invalid product id"})
			return
		}
		product, err := models.GetProduct(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, apiResponse{Success: true, Message: "ok", Data: product})
	}
}

func listProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCompany(c) {
			return
		}
		var name *string
		if v := c.Query("name"); v != "" {
			name = &v
		}
		products, err := models.ListProduct(c.Request.Context(), name)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, apiResponse{Success: true, Message: "ok", Data: products})
	}
}

func toggleActiveProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCompany(c) {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: "invalid product id"})
			return
		}
		var req struct {
			IsActive bool `json:"is_active"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: "is_active is required"})
			return
		}
		product, err := models.ToggleActiveProduct(c.Request.Context(), id, req.IsActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, apiResponse{Success: true, Message: "ok", Data: product})
	}
}

type outboxReplayRequest struct {
	CompanyId string `json:"company_id"`
	RecordId  int    `json:"record_id"`
}

// outboxReplayHandler re-queues a DEAD/FAILED outbox record (admin only).
func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		claim := middlewares.CtxValue(c.Request.Context())
		if claim == nil || claim.Role != string(models.UserRoleAdmin) {
			c.JSON(http.StatusUnauthorized, apiResponse{Success: false, Message: "unauthorized"})
			return
		}

		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: "invalid request"})
			return
		}
		if req.CompanyId == "" || req.RecordId <= 0 {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: "company_id and record_id are required"})
			return
		}

		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, apiResponse{Success: false, Message: "db is nil"})
			return
		}
		now := time.Now().UTC()
		if err := db.WithContext(c.Request.Context()).
			Model(&models.PubSubMessageRecord{}).
			Where("id = ? AND company_id = ?", req.RecordId, req.CompanyId).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusFailed,
				"next_attempt_at":    &now,
				"locked_at":          nil,
				"locked_by":          nil,
				"last_publish_error": nil,
			}).Error; err != nil {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: err.Error()})
			return
		}

		c.JSON(http.StatusOK, apiResponse{Success: true, Message: "outbox record re-queued"})
	}
}
