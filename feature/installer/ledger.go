package installer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InstalledPackage is one row of the installed-package ledger.
type InstalledPackage struct {
	Name        string    `gorm:"column:name;primaryKey;type:varchar(191)" json:"name"`
	Version     string    `gorm:"column:version;type:varchar(64);not null" json:"version"`
	Digest      string    `gorm:"column:digest;type:char(64)" json:"digest"`
	Path        string    `gorm:"column:path;type:varchar(1024)" json:"path"`
	InstalledAt time.Time `gorm:"column:installed_at" json:"installed_at"`
}

func (InstalledPackage) TableName() string {
	return "installed_packages"
}

// Ledger remembers which package versions are installed in the site directory.
type Ledger interface {
	// Lookup returns the record for name, or nil when none exists.
	Lookup(ctx context.Context, name string) (*InstalledPackage, error)
	// Record inserts or replaces the record for pkg.Name.
	Record(ctx context.Context, pkg InstalledPackage) error
}

// GormLedger stores the ledger through GORM.
type GormLedger struct {
	db *gorm.DB
}

// NewLedger migrates the ledger table and returns a GormLedger.
func NewLedger(db *gorm.DB) (*GormLedger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if err := db.AutoMigrate(&InstalledPackage{}); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger: %w", err)
	}
	return &GormLedger{db: db}, nil
}

func (l *GormLedger) Lookup(ctx context.Context, name string) (*InstalledPackage, error) {
	var pkg InstalledPackage
	err := l.db.WithContext(ctx).Where("name = ?", name).Take(&pkg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (l *GormLedger) Record(ctx context.Context, pkg InstalledPackage) error {
	return l.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&pkg).Error
}
