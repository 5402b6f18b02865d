package db

import (
	"fmt"
	"github.com/PayRam/go-fundraising/internal/migration"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"log"
	"strings"
)

// Dialector picks the driver from the DSN: postgres URLs and key=value strings go to
// Postgres, anything else is treated as a sqlite path.
func Dialector(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.HasPrefix(dsn, "host=") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// Connect opens the database behind dsn without migrating it.
func Connect(dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	if cfg == nil {
		cfg = &gorm.Config{}
	}
	db, err := gorm.Open(Dialector(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// InitDB initializes and returns the database connection
func InitDB(dsn string) *gorm.DB {
	db, err := Connect(dsn, nil)
	if err != nil {
		log.Fatalf("%v", err)
	}

	db = Migrate(db)

	return db
}

func Migrate(db *gorm.DB) *gorm.DB {
	if err := RunMigrations(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Printf("**** Database initialised and migrations run successfully ****")
	return db
}

// RunMigrations applies every pending migration in order.
func RunMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		migration.Initialise,
		migration.ContributionLedger,
	})

	return m.Migrate()
}
