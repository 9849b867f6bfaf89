// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"math"
	"strconv"
)

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Page size bounds shared by every paginated listing.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageMeta is the pagination block attached to list responses.
//
// TotalPages is never below 1, so an empty result still reports page 1 of 1.
type PageMeta struct {
	Total       int64 `json:"total"`
	Limit       int   `json:"limit"`
	Page        int   `json:"page"`
	TotalPages  int   `json:"total_pages"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

// ClampPage bounds page to >= 1 and limit to [1, MaxPageSize], substituting
// DefaultPageSize for a non-positive limit.
func ClampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

// Offset returns the row offset of the first item on page. Offsets past
// math.MaxInt saturate at the last whole page that fits, which is past any
// real table and so selects nothing.
func Offset(page, limit int) int {
	page, limit = ClampPage(page, limit)
	if page-1 > math.MaxInt/limit {
		return math.MaxInt / limit * limit
	}
	return (page - 1) * limit
}

// NewPageMeta computes pagination metadata for the given page, limit and
// total item count. page and limit are clamped first.
func NewPageMeta(page, limit int, total int64) PageMeta {
	page, limit = ClampPage(page, limit)
	if total < 0 {
		total = 0
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	if totalPages < 1 {
		totalPages = 1
	}
	return PageMeta{
		Total:       total,
		Limit:       limit,
		Page:        page,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}
