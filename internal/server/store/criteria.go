package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Criteria is a typed filter over synchronizable records. Build it with Where
// and the predicate constructors below.
type Criteria struct {
	ownerID       string
	updatedAfter  *time.Time
	ids           []string
	onlyDeleted   bool
	deletedBefore *time.Time
}

// Predicate narrows a Criteria.
type Predicate func(*Criteria)

// Where composes predicates into a Criteria.
func Where(preds ...Predicate) Criteria {
	var c Criteria
	for _, p := range preds {
		p(&c)
	}
	return c
}

// OwnedBy restricts records to those owned by userID. Items are owned through
// their collection.
func OwnedBy(userID string) Predicate {
	return func(c *Criteria) {
		c.ownerID = userID
	}
}

// UpdatedAfter keeps records with updatedAt strictly greater than t.
func UpdatedAfter(t time.Time) Predicate {
	return func(c *Criteria) {
		c.updatedAfter = &t
	}
}

// WithIDs restricts records to the given ids.
func WithIDs(ids ...string) Predicate {
	return func(c *Criteria) {
		c.ids = append(c.ids, ids...)
	}
}

// OnlyDeleted keeps tombstones only.
func OnlyDeleted() Predicate {
	return func(c *Criteria) {
		c.onlyDeleted = true
	}
}

// DeletedBefore keeps tombstones whose deletion (or last update, when no
// deletion time was recorded) happened before t. Implies OnlyDeleted.
func DeletedBefore(t time.Time) Predicate {
	return func(c *Criteria) {
		c.onlyDeleted = true
		c.deletedBefore = &t
	}
}

// columns names the table columns a Criteria is evaluated against.
type columns struct {
	owner     string
	id        string
	updatedAt string
	isDeleted string
	deletedAt string
}

func prefixed(alias string) columns {
	return columns{
		owner:     alias + ".user_id",
		id:        alias + ".id",
		updatedAt: alias + ".updated_at",
		isDeleted: alias + ".is_deleted",
		deletedAt: alias + ".deleted_at",
	}
}

// where renders the criteria as a WHERE clause with '?' placeholders.
func (c Criteria) where(cols columns) (string, []any) {
	var clauses []string
	var args []any

	if c.ownerID != "" {
		clauses = append(clauses, cols.owner+" = ?")
		args = append(args, c.ownerID)
	}
	if c.updatedAfter != nil {
		clauses = append(clauses, cols.updatedAt+" > ?")
		args = append(args, NewTimestamp(*c.updatedAfter))
	}
	if len(c.ids) > 0 {
		clauses = append(clauses, cols.id+" IN (?)")
		args = append(args, c.ids)
	}
	if c.onlyDeleted {
		clauses = append(clauses, cols.isDeleted+" = ?")
		args = append(args, true)
	}
	if c.deletedBefore != nil {
		clauses = append(clauses, fmt.Sprintf("COALESCE(%s, %s) < ?", cols.deletedAt, cols.updatedAt))
		args = append(args, NewTimestamp(*c.deletedBefore))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// bind expands IN lists and rebinds placeholders for the connected driver.
func bind(q sqlx.ExtContext, query string, args []any) (string, []any, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, fmt.Errorf("expand query: %w", err)
	}
	return q.Rebind(query), args, nil
}
