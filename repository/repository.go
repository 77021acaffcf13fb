// Package repository is the per-table model layer: thin, academy-scoped CRUD
// over GORM. Each entity gets a Repository configured with the columns it may
// be filtered, searched, sorted and updated by.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrNoFields = errors.New("no updatable fields")
)

const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// Spec describes how an entity's table may be queried.
type Spec struct {
	// ScopeColumn holds the tenant id; empty for unscoped tables.
	ScopeColumn  string
	Filterable   []string
	Searchable   []string
	Sortable     []string
	Updatable    []string
	DefaultOrder string
	Preload      []string
}

// ListOptions drives FindAll.
type ListOptions struct {
	Filters map[string]interface{}
	Search  string
	Sort    string // column, or -column for descending
	Page    int
	Limit   int
	All     bool
	Preload []string
}

// Normalize clamps paging values.
func (o *ListOptions) Normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
}

type Repository[T any] struct {
	db   *gorm.DB
	spec Spec

	filterable map[string]bool
	sortable   map[string]bool
	updatable  map[string]bool
}

func New[T any](db *gorm.DB, spec Spec) *Repository[T] {
	if spec.DefaultOrder == "" {
		spec.DefaultOrder = "created_at DESC"
	}
	return &Repository[T]{
		db:         db,
		spec:       spec,
		filterable: toSet(spec.Filterable),
		sortable:   toSet(append([]string{"created_at", "updated_at"}, spec.Sortable...)),
		updatable:  toSet(spec.Updatable),
	}
}

func toSet(cols []string) map[string]bool {
	m := make(map[string]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}

// Scoped returns a query on T limited to the tenant. An empty scope is unscoped.
func (r *Repository[T]) Scoped(ctx context.Context, scope string) *gorm.DB {
	q := r.db.WithContext(ctx).Model(new(T))
	if scope != "" && r.spec.ScopeColumn != "" {
		q = q.Where(r.spec.ScopeColumn+" = ?", scope)
	}
	return q
}

func (r *Repository[T]) applyFilters(q *gorm.DB, filters map[string]interface{}) *gorm.DB {
	for col, val := range filters {
		if !r.filterable[col] {
			continue
		}
		if val == nil {
			q = q.Where(col + " IS NULL")
			continue
		}
		q = q.Where(col+" = ?", val)
	}
	return q
}

func (r *Repository[T]) applySearch(q *gorm.DB, term string) *gorm.DB {
	term = strings.TrimSpace(strings.ToLower(term))
	if term == "" || len(r.spec.Searchable) == 0 {
		return q
	}
	like := "%" + term + "%"
	conds := make([]string, 0, len(r.spec.Searchable))
	args := make([]interface{}, 0, len(r.spec.Searchable))
	for _, col := range r.spec.Searchable {
		conds = append(conds, "LOWER("+col+") LIKE ?")
		args = append(args, like)
	}
	return q.Where("("+strings.Join(conds, " OR ")+")", args...)
}

func (r *Repository[T]) order(sort string) string {
	desc := strings.HasPrefix(sort, "-")
	col := strings.TrimPrefix(sort, "-")
	if col == "" || !r.sortable[col] {
		return r.spec.DefaultOrder
	}
	if desc {
		return col + " DESC"
	}
	return col + " ASC"
}

// FindAll lists rows in scope with filters, search, ordering and paging.
func (r *Repository[T]) FindAll(ctx context.Context, scope string, opts ListOptions) ([]T, int64, error) {
	opts.Normalize()

	q := r.applySearch(r.applyFilters(r.Scoped(ctx, scope), opts.Filters), opts.Search)

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	q = q.Order(r.order(opts.Sort))
	if !opts.All {
		q = q.Offset((opts.Page - 1) * opts.Limit).Limit(opts.Limit)
	}
	for _, p := range append(r.spec.Preload, opts.Preload...) {
		q = q.Preload(p)
	}

	items := make([]T, 0)
	if err := q.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("find: %w", err)
	}
	return items, total, nil
}

// FindByID returns ErrNotFound for ids that are missing, out of scope, or not UUIDs.
func (r *Repository[T]) FindByID(ctx context.Context, scope, id string, preload ...string) (*T, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	q := r.Scoped(ctx, scope)
	for _, p := range append(r.spec.Preload, preload...) {
		q = q.Preload(p)
	}
	var item T
	if err := q.Where("id = ?", id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find by id: %w", err)
	}
	return &item, nil
}

// Exists reports whether id is present in scope.
func (r *Repository[T]) Exists(ctx context.Context, scope, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	var n int64
	if err := r.Scoped(ctx, scope).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Save inserts entity. Loaded associations are never written.
func (r *Repository[T]) Save(ctx context.Context, entity *T) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(entity).Error; err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// Update applies the updatable subset of fields and returns the fresh row.
func (r *Repository[T]) Update(ctx context.Context, scope, id string, fields map[string]interface{}) (*T, error) {
	if _, err := r.FindByID(ctx, scope, id); err != nil {
		return nil, err
	}

	changes := make(map[string]interface{}, len(fields))
	for col, val := range fields {
		if r.updatable[col] {
			changes[col] = val
		}
	}
	if len(changes) == 0 {
		return nil, ErrNoFields
	}

	if err := r.Scoped(ctx, scope).Where("id = ?", id).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	return r.FindByID(ctx, scope, id)
}

// Delete hard-deletes the row.
func (r *Repository[T]) Delete(ctx context.Context, scope, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	q := r.db.WithContext(ctx)
	if scope != "" && r.spec.ScopeColumn != "" {
		q = q.Where(r.spec.ScopeColumn+" = ?", scope)
	}
	res := q.Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return fmt.Errorf("delete: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Count counts rows in scope matching the filters.
func (r *Repository[T]) Count(ctx context.Context, scope string, filters map[string]interface{}) (int64, error) {
	var n int64
	err := r.applyFilters(r.Scoped(ctx, scope), filters).Count(&n).Error
	return n, err
}

// WithTx returns a copy bound to tx.
func (r *Repository[T]) WithTx(tx *gorm.DB) *Repository[T] {
	cp := *r
	cp.db = tx
	return &cp
}
