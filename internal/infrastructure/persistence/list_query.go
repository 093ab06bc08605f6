package persistence

import (
	"strings"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sortColumns whitelists the columns a list endpoint may order by. Anything
// else falls back to created_at, so user input never reaches ORDER BY.
type sortColumns map[string]bool

var purchaseOrderSort = sortColumns{
	"created_at": true, "updated_at": true, "number": true, "status": true,
	"priority": true, "total_cents": true, "expected_date": true,
	"submitted_at": true, "approved_at": true,
}

var shipmentSort = sortColumns{
	"created_at": true, "updated_at": true, "number": true, "status": true,
	"mode": true, "etd": true, "eta": true, "ship_date": true,
	"delivered_date": true, "actual_total_cents": true, "estimated_total_cents": true,
}

// column returns the whitelisted column for name, or created_at
func (s sortColumns) column(name string) string {
	if name = strings.TrimSpace(name); s[name] {
		return name
	}
	return "created_at"
}

// apply pages and orders query. id breaks ties so that pages never overlap.
func (s sortColumns) apply(query *gorm.DB, f shared.Filter) *gorm.DB {
	if f.PageSize > 0 {
		query = query.Offset(f.Offset()).Limit(f.PageSize)
	}
	desc := !strings.EqualFold(strings.TrimSpace(f.OrderDir), "asc")
	return query.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: s.column(f.OrderBy)}, Desc: desc},
		{Column: clause.Column{Name: "id"}, Desc: desc},
	}})
}
