package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type warehouseReader struct {
	db *gorm.DB
}

func (r *warehouseReader) getWarehouses(ctx context.Context, ids []int) []*dataloader.Result[*models.Warehouse] {
	var results []models.Warehouse
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Warehouse](len(ids), err)
	}

	return generateLoaderResults(results, ids)
}

func GetWarehouse(ctx context.Context, id int) (*models.Warehouse, error) {
	loaders := For(ctx)
	return loaders.warehouseLoader.Load(ctx, id)()
}

func GetWarehouses(ctx context.Context, ids []int) ([]*models.Warehouse, []error) {
	loaders := For(ctx)
	return loaders.warehouseLoader.LoadMany(ctx, ids)()
}
