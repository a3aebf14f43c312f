package models

import (
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
)

type Identifier interface {
	GetId() int
}

// interface for dataloader result
type Data interface {
	Identifier
	GetDefault(int) Data
}

// key
func (p Product) GetId() int {
	return p.ID
}

func (p Product) GetDefault(id int) Data {
	return Product{
		ID:        id,
		IsActive:  utils.NewFalse(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func (w Warehouse) GetId() int {
	return w.ID
}

func (w Warehouse) GetDefault(id int) Data {
	return Warehouse{
		ID:        id,
		IsActive:  utils.NewFalse(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func (t StockTransfer) GetId() int {
	return t.ID
}

func (t StockTransfer) GetDefault(id int) Data {
	return StockTransfer{
		ID:        id,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

/* tenancy accessors for cached reads */

func (p Product) GetCompanyId() string {
	return p.CompanyId
}

func (w Warehouse) GetCompanyId() string {
	return w.CompanyId
}

func (t StockTransfer) GetCompanyId() string {
	return t.CompanyId
}
