package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/gin-gonic/gin"
)

func postStockTransferForm(t *testing.T, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := utils.SetCompanyIdInContext(c.Request.Context(), "test-company")
		c.Request = c.Request.WithContext(ctx)
	})
	r.POST(adminStockTransferPath, adminStockTransferHandler())

	req := httptest.NewRequest(http.MethodPost, adminStockTransferPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminStockTransferRedirectsBackToForm(t *testing.T) {
	form := url.Values{}
	form.Set("product_id", "7")
	form.Set("from_warehouse_id", "1")
	form.Set("to_warehouse_id", "1")
	form.Set("quantity", "5")

	w := postStockTransferForm(t, form)
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad redirect location: %v", err)
	}
	if loc.Path != adminStockTransferPath {
		t.Fatalf("expected redirect to %s, got %s", adminStockTransferPath, loc.Path)
	}
	q := loc.Query()
	if q.Get("product_id") != "7" {
		t.Fatalf("product_id must be retained, got %q", q.Get("product_id"))
	}
	if got := q.Get("flash_error"); !strings.Contains(got, "source and destination warehouses must be different") {
		t.Fatalf("expected same-warehouse flash error, got %q", got)
	}
}

func TestAdminStockTransferFlashesEveryValidationError(t *testing.T) {
	// everything invalid: all four messages must flash
	w := postStockTransferForm(t, url.Values{})
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad redirect location: %v", err)
	}
	if loc.Path != adminStockTransferPath {
		t.Fatalf("expected redirect to %s, got %s", adminStockTransferPath, loc.Path)
	}
	flashes := loc.Query()["flash_error"]
	if len(flashes) != 4 {
		t.Fatalf("expected 4 flash errors, got %d: %v", len(flashes), flashes)
	}
}
