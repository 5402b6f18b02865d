package tenant

import (
	"context"
	"errors"
	"github.com/PayRam/go-fundraising/internal/db"
	"github.com/PayRam/go-fundraising/models"
	"github.com/PayRam/go-fundraising/request"
	"github.com/PayRam/go-fundraising/service"
	"github.com/PayRam/go-fundraising/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"testing"
	"time"
)

var testDB *gorm.DB

func TestMain(m *testing.M) {
	var err error
	testDB, err = gorm.Open(sqlite.Open("file:tenant_scope?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		panic("failed to initialize test database")
	}
	sqlDB, err := testDB.DB()
	if err != nil {
		panic(err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.RunMigrations(testDB); err != nil {
		panic(err)
	}

	m.Run()
}

func mustScope(t *testing.T, tenantID string) *Scope {
	scope, err := New(testDB, tenantID)
	require.NoError(t, err)
	return scope.WithContext(context.Background())
}

func createUser(t *testing.T, scope *Scope, name string) *models.User {
	user := &models.User{Name: name, Role: models.RoleVolunteer}
	require.NoError(t, scope.Create(user))
	return user
}

func TestNewRejectsBlankTenant(t *testing.T) {
	for _, id := range []string{"", "   "} {
		_, err := New(testDB, id)
		assert.True(t, errors.Is(err, service.ErrMissingTenant))
	}
}

func TestCreateStampsBoundTenant(t *testing.T) {
	scope := mustScope(t, "stamp-a")

	forged := &models.User{TenantID: "stamp-b", Name: "mallory", Role: models.RoleAdmin}
	require.NoError(t, scope.Create(forged))
	assert.Equal(t, "stamp-a", forged.TenantID)

	batch := []models.User{
		{TenantID: "stamp-b", Name: "one", Role: models.RoleVolunteer},
		{Name: "two", Role: models.RoleVolunteer},
	}
	require.NoError(t, scope.Create(&batch))
	for _, u := range batch {
		assert.Equal(t, "stamp-a", u.TenantID)
	}

	count, err := mustScope(t, "stamp-b").Count(&models.User{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCreateMapStampsBoundTenant(t *testing.T) {
	scope := mustScope(t, "map-a")
	require.NoError(t, scope.CreateMap(&models.User{}, map[string]interface{}{
		"tenant_id":  "map-b",
		"name":       "from map",
		"role":       models.RoleVolunteer,
		"created_at": time.Now(),
		"updated_at": time.Now(),
	}))

	var users []models.User
	require.NoError(t, scope.Find(&users))
	require.Len(t, users, 1)
	assert.Equal(t, "map-a", users[0].TenantID)
}

func TestReadsAreIsolated(t *testing.T) {
	a := mustScope(t, "iso-a")
	b := mustScope(t, "iso-b")
	ua := createUser(t, a, "alice")
	createUser(t, b, "bob")
	createUser(t, b, "bea")

	var fromA []models.User
	require.NoError(t, a.Find(&fromA))
	require.Len(t, fromA, 1)
	assert.Equal(t, "alice", fromA[0].Name)

	var leaked models.User
	err := b.FindByID(&leaked, ua.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	var cross []models.User
	require.NoError(t, b.Table(&models.User{}).Where("name = ?", "alice").Find(&cross).Error)
	assert.Empty(t, cross)

	count, err := b.Count(&models.User{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	owned, err := a.ValidateOwnership(&models.User{}, ua.ID)
	require.NoError(t, err)
	assert.True(t, owned)
	owned, err = b.ValidateOwnership(&models.User{}, ua.ID)
	require.NoError(t, err)
	assert.False(t, owned)
}

func TestUpdatesStayInsideTenant(t *testing.T) {
	a := mustScope(t, "upd-a")
	b := mustScope(t, "upd-b")
	user := createUser(t, a, "carol")

	rows, err := b.Update(&models.User{}, user.ID, map[string]interface{}{"name": "hijacked"})
	require.NoError(t, err)
	assert.Zero(t, rows)

	rows, err = a.Update(&models.User{}, user.ID, map[string]interface{}{"name": "caroline", "tenant_id": "upd-b"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	var reloaded models.User
	require.NoError(t, a.FindByID(&reloaded, user.ID))
	assert.Equal(t, "caroline", reloaded.Name)
	assert.Equal(t, "upd-a", reloaded.TenantID)

	_, err = a.UpdateWhere(&models.User{}, map[string]interface{}{"name": "everyone"})
	assert.Error(t, err, "updates without a condition are refused")
}

func TestConditionsAreValidated(t *testing.T) {
	scope := mustScope(t, "cond-a")
	var users []models.User

	assert.Error(t, scope.Find(&users, Eq("tenant_id", "cond-b")))
	assert.Error(t, scope.Find(&users, Eq("users.tenant_id", "cond-b")))
	assert.Error(t, scope.Find(&users, QueryCondition{Field: "name", Operator: "; DROP", Value: "x"}))
	assert.Error(t, scope.Find(&users, Eq("name = 1 OR 1", "x")))

	createUser(t, scope, "dave")
	createUser(t, scope, "erin")
	require.NoError(t, scope.Find(&users, QueryCondition{Field: "name", Operator: "IN", Value: []string{"dave", "erin"}}))
	assert.Len(t, users, 2)
}

func TestDeleteIsScoped(t *testing.T) {
	a := mustScope(t, "del-a")
	b := mustScope(t, "del-b")
	user := createUser(t, a, "frank")

	rows, err := b.Delete(&models.User{}, user.ID)
	require.NoError(t, err)
	assert.Zero(t, rows)

	rows, err = a.Delete(&models.User{}, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
}

func TestTransactionKeepsBinding(t *testing.T) {
	scope := mustScope(t, "tx-a")

	boom := errors.New("boom")
	err := scope.Transaction(func(tx *Scope) error {
		assert.Equal(t, "tx-a", tx.TenantID())
		require.NoError(t, tx.Create(&models.User{TenantID: "tx-b", Name: "ghost", Role: models.RoleVolunteer}))
		return boom
	})
	assert.True(t, errors.Is(err, boom))

	count, err := scope.Count(&models.User{})
	require.NoError(t, err)
	assert.Zero(t, count, "rolled back")

	require.NoError(t, scope.Transaction(func(tx *Scope) error {
		return tx.Create(&models.User{TenantID: "tx-b", Name: "kept", Role: models.RoleVolunteer})
	}))
	var users []models.User
	require.NoError(t, scope.Find(&users))
	require.Len(t, users, 1)
	assert.Equal(t, "tx-a", users[0].TenantID)
}

func TestGlobalTablesAreShared(t *testing.T) {
	a := mustScope(t, "glob-a")
	b := mustScope(t, "glob-b")

	require.NoError(t, a.Create(&models.Product{Key: "glob-rice", Name: "Rice", Unit: "kg"}))

	var products []models.Product
	require.NoError(t, b.Find(&products, Eq("key", "glob-rice")))
	assert.Len(t, products, 1)
	assert.True(t, IsGlobal("products"))
	assert.False(t, IsGlobal("campaigns"))
}

func TestFindPage(t *testing.T) {
	scope := mustScope(t, "page-a")
	for _, name := range []string{"u1", "u2", "u3", "u4", "u5"} {
		createUser(t, scope, name)
	}
	createUser(t, mustScope(t, "page-b"), "other")

	var users []models.User
	total, err := scope.FindPage(&users, nil, request.PaginationConditions{Limit: utils.IntPtr(2), Offset: utils.IntPtr(1), SortBy: utils.StringPtr("name"), Order: utils.StringPtr("asc")})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, users, 2)
	assert.Equal(t, "u2", users[0].Name)
	assert.Equal(t, "u3", users[1].Name)
}

func TestCreateIfAbsent(t *testing.T) {
	scope := mustScope(t, "report-a")
	start := time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)

	inserted, err := scope.CreateIfAbsent(&models.TenantReport{Kind: models.ReportKindWeekly, PeriodStart: start, PeriodEnd: start.AddDate(0, 0, 7)})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = scope.CreateIfAbsent(&models.TenantReport{Kind: models.ReportKindWeekly, PeriodStart: start, PeriodEnd: start.AddDate(0, 0, 7)})
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = mustScope(t, "report-b").CreateIfAbsent(&models.TenantReport{Kind: models.ReportKindWeekly, PeriodStart: start, PeriodEnd: start.AddDate(0, 0, 7)})
	require.NoError(t, err)
	assert.True(t, inserted, "same period, other tenant")
}

func TestActiveTenants(t *testing.T) {
	require.NoError(t, testDB.Create(&models.Tenant{ID: "reg-active", Name: "Active"}).Error)
	require.NoError(t, testDB.Create(&models.Tenant{ID: "reg-suspended", Name: "Suspended", Status: models.TenantStatusSuspended}).Error)

	tenants, err := ActiveTenants(context.Background(), testDB)
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, tn := range tenants {
		ids[tn.ID] = true
	}
	assert.True(t, ids["reg-active"])
	assert.False(t, ids["reg-suspended"])
}
