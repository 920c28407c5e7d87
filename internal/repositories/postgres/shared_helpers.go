package postgres

import (
	"strings"

	"github.com/smartpresence/attendance-service/internal/models"
	"gorm.io/gorm"
)

// SharedHelpers contains common query building used by several repositories
type SharedHelpers struct{}

func NewSharedHelpers() *SharedHelpers {
	return &SharedHelpers{}
}

// ApplyPaginationAndSort applies pagination and sorting with SQL injection protection.
// sortBy must be a key of allowed; otherwise defaultSort is used.
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, allowed map[string]string, defaultSort, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	column, ok := allowed[sortBy]
	if !ok {
		column = allowed[defaultSort]
	}

	// Validate and set sort order
	if strings.EqualFold(sortOrder, "asc") {
		sortOrder = "ASC"
	} else {
		sortOrder = "DESC"
	}

	query = query.Order(column + " " + sortOrder)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	return query
}

// ApplyDateRange restricts column to the inclusive [from, to] range; empty bounds are open
func (h *SharedHelpers) ApplyDateRange(query *gorm.DB, column, from, to string) *gorm.DB {
	if from != "" {
		query = query.Where(column+" >= ?", from)
	}
	if to != "" {
		query = query.Where(column+" <= ?", to)
	}
	return query
}

// LikePattern escapes LIKE wildcards in q and wraps it for a contains match
func (h *SharedHelpers) LikePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(q)) + "%"
}

// statusRow is the scan target of GROUP BY status queries
type statusRow struct {
	Status models.AttendanceStatus
	Count  int64
}

func addStatus(counts *models.StatusCounts, status models.AttendanceStatus, n int64) {
	switch status {
	case models.StatusPresent:
		counts.Present += n
	case models.StatusLate:
		counts.Late += n
	case models.StatusAbsent:
		counts.Absent += n
	case models.StatusExcused:
		counts.Excused += n
	}
}
