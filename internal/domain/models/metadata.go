package models

import (
	"errors"
	"math"
	"strings"

	"slices"

	"github.com/nomadride/surge-engine/pkg/validator"
)

// Filters represents pagination and sorting options for list endpoints.
// It encapsulates the requested page number, number of items per page,
// the requested sort expression, and a safelist of allowed sort keys.
type Filters struct {
	Page         int
	PageSize     int
	Sort         string
	SortSafelist []string
}

func NewFilters(page int, pageSize int, sort string, sortSafelist []string) (Filters, error) {
	if len(sortSafelist) == 0 {
		return Filters{}, errors.New("length of sortSafeList must be greater than 0")
	}
	return Filters{
		Page:         page,
		PageSize:     pageSize,
		Sort:         sort,
		SortSafelist: sortSafelist,
	}, nil
}

func (f Filters) Validate(v *validator.Validator) {
	v.Check(f.Page > 0, "page", "must be greater than zero")
	v.Check(f.Page <= 10_000_000, "page", "must be a maximum of 10 million")
	v.Check(f.PageSize > 0, "page_size", "must be greater than zero")
	v.Check(f.PageSize <= 100, "page_size", "must be a maximum of 100")
	v.Check(validator.PermittedValue(f.Sort, f.SortSafelist...), "sort", "invalid sort value")
}

// SortColumn extracts the column name from the Sort field by stripping the
// leading hyphen, falling back to the first safelist entry for unknown values.
func (f Filters) SortColumn() string {
	if slices.Contains(f.SortSafelist, f.Sort) {
		return strings.TrimPrefix(f.Sort, "-")
	}
	return f.SortSafelist[0]
}

// SortDirection returns "ASC" or "DESC" depending on the prefix character of
// the Sort field.
func (f Filters) SortDirection() string {
	if strings.HasPrefix(f.Sort, "-") {
		return "DESC"
	}
	return "ASC"
}

func (f Filters) Limit() int {
	return f.PageSize
}

func (f Filters) Offset() int {
	return (f.Page - 1) * f.PageSize
}

type Metadata struct {
	CurrentPage  int `json:"current_page"`
	PageSize     int `json:"page_size"`
	FirstPage    int `json:"first_page"`
	LastPage     int `json:"last_page"`
	TotalRecords int `json:"total_records"`
}

// CalculateMetadata computes pagination metadata given the total number of
// records, current page, and page size.
func CalculateMetadata(totalRecords, page, pageSize int) Metadata {
	if totalRecords == 0 {
		return Metadata{
			CurrentPage: page,
			PageSize:    pageSize,
		}
	}
	return Metadata{
		CurrentPage:  page,
		PageSize:     pageSize,
		FirstPage:    1,
		LastPage:     int(math.Ceil(float64(totalRecords) / float64(pageSize))),
		TotalRecords: totalRecords,
	}
}
