package migration

import (
	"github.com/PayRam/go-fundraising/models"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

var Initialise = &gormigrate.Migration{
	ID: "202610140930-gf-518204",
	Migrate: func(db *gorm.DB) error {
		return db.AutoMigrate(&models.Tenant{}, &models.Product{}, &models.User{}, &models.Campaign{})
	},
	Rollback: func(db *gorm.DB) error {
		return db.Migrator().DropTable(&models.Campaign{}, &models.User{}, &models.Product{}, &models.Tenant{})
	},
}
