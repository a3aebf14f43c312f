// seed-admin bootstraps a development environment: a company, an admin
// console user (username: backofficeAdmin) and a default warehouse.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"gorm.io/gorm"
)

const (
	adminUsername = "backofficeAdmin"
	adminPassword = "B@ck0fficeAdmin"
	adminName     = "Backoffice Admin"

	companyName          = "Backoffice Dev"
	companyEmail         = "dev@backoffice.local"
	defaultWarehouseName = "Main Warehouse"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	// Reuse the first company if one exists; otherwise create the dev company.
	var company models.Company
	err := db.WithContext(ctx).Model(&models.Company{}).First(&company).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup company: %v\n", err)
			os.Exit(1)
		}
		created, cerr := models.CreateCompany(ctx, &models.NewCompany{
			Name:  companyName,
			Email: companyEmail,
		})
		if cerr != nil {
			fmt.Fprintf(os.Stderr, "failed to create company: %v\n", cerr)
			os.Exit(1)
		}
		company = *created
		fmt.Printf("Created company %q (id=%s)\n", company.Name, company.ID)
	}

	// History hooks require company + user info in context.
	ctx = utils.SetCompanyIdInContext(ctx, company.ID.String())
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Seed")
	ctx = utils.SetUsernameInContext(ctx, adminUsername)
	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	hashed, err := utils.HashPassword(adminPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Username:  adminUsername,
			Name:      adminName,
			Password:  hashedStr,
			IsActive:  utils.NewTrue(),
			Role:      models.UserRoleAdmin,
			CompanyId: company.ID.String(),
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q (role=Admin)\n", adminUsername)
	} else {
		if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).Updates(map[string]any{
			"password":   hashedStr,
			"name":       adminName,
			"is_active":  utils.NewTrue(),
			"company_id": company.ID.String(),
			"role":       models.UserRoleAdmin,
		}).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
			os.Exit(1)
		}
		_ = existing.RemoveInstanceRedis()
		// the password changed; drop any sessions issued under the old one
		if err := models.RevokeUserSessions(adminUsername); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not revoke existing sessions: %v\n", err)
		}
		fmt.Printf("Updated admin user: username=%q (role=Admin)\n", adminUsername)
	}

	var warehouseCount int64
	if err := db.WithContext(ctx).Model(&models.Warehouse{}).
		Where("company_id = ?", company.ID.String()).Count(&warehouseCount).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to count warehouses: %v\n", err)
		os.Exit(1)
	}
	if warehouseCount == 0 {
		warehouse, werr := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: defaultWarehouseName})
		if werr != nil {
			fmt.Fprintf(os.Stderr, "failed to create default warehouse: %v\n", werr)
			os.Exit(1)
		}
		fmt.Printf("Created default warehouse %q (id=%d)\n", warehouse.Name, warehouse.ID)
	}

	fmt.Println("seed complete")
}
