package handlers

import (
	"strconv"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

const maxPageSize = 100

// parsePaginationParams returns a zero page, meaning no paging, when neither
// parameter is present.
func parsePaginationParams(pageStr, limitStr string) (models.Page, error) {
	if pageStr == "" && limitStr == "" {
		return models.Page{}, nil
	}

	page := int64(1)
	limit := int64(20)

	if pageStr != "" {
		p, err := strconv.ParseInt(pageStr, 10, 64)
		if err != nil || p < 1 {
			return models.Page{}, apperr.BadRequestf("page must be a positive integer")
		}
		page = p
	}

	if limitStr != "" {
		l, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil || l < 1 || l > maxPageSize {
			return models.Page{}, apperr.BadRequestf("limit must be between 1 and %d", maxPageSize)
		}
		limit = l
	}

	return models.Page{Number: page, Size: limit}, nil
}
