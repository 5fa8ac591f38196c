package query

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApplyFilters adds the WHERE conditions of p to db.
func ApplyFilters(db *gorm.DB, p Params) *gorm.DB {
	for _, f := range p.Filters {
		col := clause.Column{Table: clause.CurrentTable, Name: f.Field.Column}
		switch f.Op {
		case OpIn:
			db = db.Where(clause.IN{Column: col, Values: f.Values})
		case OpGte:
			db = db.Where(clause.Gte{Column: col, Value: f.Values[0]})
		case OpGt:
			db = db.Where(clause.Gt{Column: col, Value: f.Values[0]})
		case OpLte:
			db = db.Where(clause.Lte{Column: col, Value: f.Values[0]})
		case OpLt:
			db = db.Where(clause.Lt{Column: col, Value: f.Values[0]})
		default:
			db = db.Where(clause.Eq{Column: col, Value: f.Values[0]})
		}
	}
	return db
}

// ApplySort adds the ORDER BY clauses of p to db.
func ApplySort(db *gorm.DB, p Params) *gorm.DB {
	for _, s := range p.Sort {
		db = db.Order(clause.OrderByColumn{
			Column: clause.Column{Table: clause.CurrentTable, Name: s.Field.Column},
			Desc:   s.Desc,
		})
	}
	return db
}

// Apply adds filters, ordering and the page window to db.
func Apply(db *gorm.DB, p Params) *gorm.DB {
	db = ApplySort(ApplyFilters(db, p), p)
	return db.Limit(p.Limit()).Offset(p.Offset())
}
