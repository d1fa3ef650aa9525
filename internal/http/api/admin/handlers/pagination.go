package handlers

import "github.com/gin-gonic/gin"

// pageQuery defines the paging parameters shared by list endpoints.
type pageQuery struct {
	Page  int `form:"page,default=1"`   // Page number.
	Limit int `form:"limit,default=20"` // Page size.
}

// normalize clamps paging parameters to sane bounds.
func (q *pageQuery) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}
}

// offset returns the row offset for the current page.
func (q *pageQuery) offset() int {
	return (q.Page - 1) * q.Limit
}

// paginationMeta builds the pagination block for list responses.
func paginationMeta(q *pageQuery, total int64) gin.H {
	totalPages := total / int64(q.Limit)
	if total%int64(q.Limit) != 0 {
		totalPages++
	}
	return gin.H{
		"page":        q.Page,
		"limit":       q.Limit,
		"total":       total,
		"total_pages": totalPages,
	}
}
