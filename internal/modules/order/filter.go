package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListFilter is the parameter object for order listings. Each optional field
// contributes one fixed predicate clause; nothing here is built from raw
// request strings.
type ListFilter struct {
	UserID   *uuid.UUID
	Status   Status
	Search   string // matches the order number
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	Limit    int
}

func (f ListFilter) normalized() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	return f
}

// build composes the WHERE clause from the set predicates. Placeholders are
// numbered in field order so args line up positionally.
func (f ListFilter) build() (string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Search != "" {
		add("order_number ILIKE $%d", "%"+f.Search+"%")
	}
	if f.DateFrom != nil {
		add("created_at >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("created_at < $%d", *f.DateTo)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (f ListFilter) offset() int {
	return (f.Page - 1) * f.Limit
}
