package migration

import (
	"github.com/PayRam/go-fundraising/models"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// ContributionLedger adds the per-item donation ledger and the periodic report log.
var ContributionLedger = &gormigrate.Migration{
	ID: "202610141415-gf-760391",
	Migrate: func(db *gorm.DB) error {
		return db.AutoMigrate(&models.Contribution{}, &models.TenantReport{})
	},
	Rollback: func(db *gorm.DB) error {
		return db.Migrator().DropTable(&models.TenantReport{}, &models.Contribution{})
	},
}
