// Package tenant binds every read and write on tenant-owned tables to one tenant.
//
// A Scope is the only way the services reach the store for tenant-owned tables.
// Queries built through it are conjoined with tenant_id = <bound tenant>, inserts are
// stamped with the bound tenant whatever the payload says, and updates can never
// rewrite tenant_id. Tables on the global allow-list (the tenant registry and the
// shared product catalog) are passed through unfiltered.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"github.com/PayRam/go-fundraising/models"
	"github.com/PayRam/go-fundraising/request"
	"github.com/PayRam/go-fundraising/service"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"reflect"
	"strings"
)

const column = "tenant_id"

var globalTables = map[string]bool{
	models.Tenant{}.TableName():  true,
	models.Product{}.TableName(): true,
}

// IsGlobal reports whether table is shared across tenants.
func IsGlobal(table string) bool {
	return globalTables[table]
}

type Scope struct {
	db       *gorm.DB
	tenantID string
}

// New binds db to tenantID. A blank tenant is rejected before any query can be built.
func New(db *gorm.DB, tenantID string) (*Scope, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, service.ErrMissingTenant
	}
	if db == nil {
		return nil, errors.New("tenant scope requires a database handle")
	}
	return &Scope{db: db, tenantID: tenantID}, nil
}

func (s *Scope) TenantID() string {
	return s.tenantID
}

// WithContext returns a scope bound to the same tenant whose queries carry ctx.
func (s *Scope) WithContext(ctx context.Context) *Scope {
	return &Scope{db: s.db.WithContext(ctx), tenantID: s.tenantID}
}

func (s *Scope) tableOf(model interface{}) (string, error) {
	stmt := &gorm.Statement{DB: s.db}
	if err := stmt.Parse(model); err != nil {
		return "", fmt.Errorf("failed to resolve table for %T: %w", model, err)
	}
	return stmt.Schema.Table, nil
}

func (s *Scope) tenantClause(table string) clause.Expression {
	return clause.Eq{Column: clause.Column{Table: table, Name: column}, Value: s.tenantID}
}

// Table starts a query on model's table, filtered to the bound tenant.
func (s *Scope) Table(model interface{}) *gorm.DB {
	table, err := s.tableOf(model)
	if err != nil {
		query := s.db.Model(model)
		_ = query.AddError(err)
		return query
	}
	query := s.db.Model(model)
	if IsGlobal(table) {
		return query
	}
	return query.Where(s.tenantClause(table))
}

// Create inserts value, a struct pointer or a slice of structs. Tenant-owned rows get
// their TenantID overwritten with the bound tenant.
func (s *Scope) Create(value interface{}) error {
	table, err := s.tableOf(value)
	if err != nil {
		return err
	}
	if !IsGlobal(table) {
		if err := stamp(value, s.tenantID); err != nil {
			return err
		}
	}
	return s.db.Create(value).Error
}

// CreateIfAbsent inserts value unless it collides with an existing row on a unique
// key. It reports whether the row was inserted.
func (s *Scope) CreateIfAbsent(value interface{}) (bool, error) {
	table, err := s.tableOf(value)
	if err != nil {
		return false, err
	}
	if !IsGlobal(table) {
		if err := stamp(value, s.tenantID); err != nil {
			return false, err
		}
	}
	result := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(value)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CreateMap inserts a row given as a column map into model's table.
func (s *Scope) CreateMap(model interface{}, values map[string]interface{}) error {
	table, err := s.tableOf(model)
	if err != nil {
		return err
	}
	row := make(map[string]interface{}, len(values)+1)
	for key, value := range values {
		row[key] = value
	}
	if !IsGlobal(table) {
		row[column] = s.tenantID
	}
	return s.db.Model(model).Create(row).Error
}

// Update applies updates to the row with the given id. It returns the number of rows
// affected, which is zero when the row belongs to another tenant.
func (s *Scope) Update(model interface{}, id uint, updates map[string]interface{}) (int64, error) {
	return s.UpdateWhere(model, updates, Eq("id", id))
}

// UpdateWhere applies updates to every row of the bound tenant matching conds.
func (s *Scope) UpdateWhere(model interface{}, updates map[string]interface{}, conds ...QueryCondition) (int64, error) {
	if len(conds) == 0 {
		return 0, errors.New("scoped update requires at least one condition")
	}
	clean := make(map[string]interface{}, len(updates))
	for key, value := range updates {
		if key == column {
			continue
		}
		clean[key] = value
	}
	if len(clean) == 0 {
		return 0, nil
	}
	query, err := applyConditions(s.Table(model), conds)
	if err != nil {
		return 0, err
	}
	result := query.Updates(clean)
	return result.RowsAffected, result.Error
}

// Delete removes the row with the given id from the bound tenant.
func (s *Scope) Delete(model interface{}, id uint) (int64, error) {
	query, err := applyConditions(s.Table(model), []QueryCondition{Eq("id", id)})
	if err != nil {
		return 0, err
	}
	result := query.Delete(model)
	return result.RowsAffected, result.Error
}

// Count counts the rows of the bound tenant matching conds.
func (s *Scope) Count(model interface{}, conds ...QueryCondition) (int64, error) {
	query, err := applyConditions(s.Table(model), conds)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Find loads every row of the bound tenant matching conds into dest.
func (s *Scope) Find(dest interface{}, conds ...QueryCondition) error {
	query, err := applyConditions(s.Table(dest), conds)
	if err != nil {
		return err
	}
	return query.Find(dest).Error
}

// FindByID loads one row; gorm.ErrRecordNotFound is returned for rows of other tenants.
func (s *Scope) FindByID(dest interface{}, id uint) error {
	query, err := applyConditions(s.Table(dest), []QueryCondition{Eq("id", id)})
	if err != nil {
		return err
	}
	return query.First(dest).Error
}

// FindPage counts the filtered rows, then loads one page of them into dest.
func (s *Scope) FindPage(dest interface{}, filter func(*gorm.DB) *gorm.DB, page request.PaginationConditions) (int64, error) {
	query := s.Table(dest)
	if filter != nil {
		query = filter(query)
	}
	query = request.ApplyFilterConditions(query, page)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	if err := request.ApplyPaginationConditions(query.Session(&gorm.Session{}), page).Find(dest).Error; err != nil {
		return 0, fmt.Errorf("failed to fetch rows: %w", err)
	}
	return total, nil
}

// ValidateOwnership reports whether a row with id exists and belongs to the bound tenant.
func (s *Scope) ValidateOwnership(model interface{}, id uint) (bool, error) {
	count, err := s.Count(model, Eq("id", id))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Transaction runs fn in a database transaction. The scope handed to fn carries the
// same tenant binding, so nothing issued inside can escape it.
func (s *Scope) Transaction(fn func(tx *Scope) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Scope{db: tx, tenantID: s.tenantID})
	})
}

func stamp(value interface{}, tenantID string) error {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return errors.New("cannot insert a nil value")
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		return stampStruct(rv, tenantID)
	case reflect.Slice:
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i)
			for elem.Kind() == reflect.Ptr {
				if elem.IsNil() {
					return errors.New("cannot insert a nil value")
				}
				elem = elem.Elem()
			}
			if err := stampStruct(elem, tenantID); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("cannot insert value of type %T", value)
}

func stampStruct(rv reflect.Value, tenantID string) error {
	field := rv.FieldByName("TenantID")
	if !field.IsValid() || field.Kind() != reflect.String || !field.CanSet() {
		return fmt.Errorf("%s is tenant-owned but has no settable TenantID field", rv.Type())
	}
	field.SetString(tenantID)
	return nil
}

// ActiveTenants lists the tenants the scheduled jobs iterate over. The registry is
// global, so no scope is needed.
func ActiveTenants(ctx context.Context, db *gorm.DB) ([]models.Tenant, error) {
	var tenants []models.Tenant
	if err := db.WithContext(ctx).Where("status = ?", models.TenantStatusActive).Order("id ASC").Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("failed to list active tenants: %w", err)
	}
	return tenants, nil
}
