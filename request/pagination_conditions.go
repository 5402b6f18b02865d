package request

import (
	"fmt"
	"gorm.io/gorm"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

var sortColumn = regexp.MustCompile(`^[a-z_]+(\.[a-z_]+)?$`)

type PaginationConditions struct {
	Limit         *int       `form:"limit"`         // Pagination limit
	Offset        *int       `form:"offset"`        // Pagination offset (optional when using ID-based)
	SortBy        *string    `form:"sortBy"`        // Field to sort by
	Order         *string    `form:"order"`         // ASC or DESC
	GreaterThanID *uint      `form:"greaterThanID"` // For ID-based pagination
	LessThanID    *uint      `form:"lessThanID"`    // For reverse ID-based pagination
	CreatedAfter  *time.Time `form:"createdAfter"`
	CreatedBefore *time.Time `form:"createdBefore"`
	UpdatedAfter  *time.Time `form:"updatedAfter"`
	UpdatedBefore *time.Time `form:"updatedBefore"`
}

// EffectiveLimit clamps the requested limit to [1, MaxLimit].
func (p PaginationConditions) EffectiveLimit() int {
	if p.Limit == nil || *p.Limit <= 0 {
		return DefaultLimit
	}
	if *p.Limit > MaxLimit {
		return MaxLimit
	}
	return *p.Limit
}

func (p PaginationConditions) EffectiveOffset() int {
	if p.Offset == nil || *p.Offset < 0 {
		return 0
	}
	return *p.Offset
}

// ApplyFilterConditions applies the id and timestamp bounds. They narrow the result set,
// so they belong to the count query as well.
func ApplyFilterConditions(query *gorm.DB, conditions PaginationConditions) *gorm.DB {
	if conditions.GreaterThanID != nil {
		query = query.Where("id > ?", *conditions.GreaterThanID)
	}
	if conditions.LessThanID != nil {
		query = query.Where("id < ?", *conditions.LessThanID)
	}
	if conditions.CreatedAfter != nil {
		query = query.Where("created_at > ?", *conditions.CreatedAfter)
	}
	if conditions.CreatedBefore != nil {
		query = query.Where("created_at < ?", *conditions.CreatedBefore)
	}
	if conditions.UpdatedAfter != nil {
		query = query.Where("updated_at > ?", *conditions.UpdatedAfter)
	}
	if conditions.UpdatedBefore != nil {
		query = query.Where("updated_at < ?", *conditions.UpdatedBefore)
	}
	return query
}

// ApplyPaginationConditions applies ordering, offset and limit.
func ApplyPaginationConditions(query *gorm.DB, conditions PaginationConditions) *gorm.DB {
	sortBy := "id"
	if conditions.SortBy != nil && sortColumn.MatchString(*conditions.SortBy) {
		sortBy = *conditions.SortBy
	}
	order := "DESC"
	if conditions.Order != nil && strings.EqualFold(*conditions.Order, "asc") {
		order = "ASC"
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, order))

	if offset := conditions.EffectiveOffset(); offset > 0 {
		query = query.Offset(offset)
	}
	return query.Limit(conditions.EffectiveLimit())
}
