package models

import (
	"gorm.io/gorm"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 200
)

// Pagination is the metadata block returned alongside every paged list.
type Pagination struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

type OffsetPage[T any] struct {
	Records    []*T       `json:"records"`
	Pagination Pagination `json:"pagination"`
}

// FetchOffsetPage runs a count plus a windowed query over the prepared
// statement. Page numbers start at 1; limit is clamped to MaxPageLimit.
func FetchOffsetPage[T any](dbCtx *gorm.DB, page int, limit int, order string) (*OffsetPage[T], error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	var total int64
	if err := dbCtx.Count(&total).Error; err != nil {
		return nil, err
	}

	var records []*T
	if err := dbCtx.Order(order).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}

	return &OffsetPage[T]{
		Records: records,
		Pagination: Pagination{
			Page:        page,
			Limit:       limit,
			Total:       total,
			HasNextPage: int64(page*limit) < total,
			HasPrevPage: page > 1,
		},
	}, nil
}
