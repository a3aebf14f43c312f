package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
)

// FetchModel loads one row by id, scoped to the given company.
// Returns ErrorRecordNotFound when no matching row exists.
func FetchModel[T any](ctx context.Context, companyId string, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("company_id = ?", companyId)
	for _, field := range associations {
		dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}
