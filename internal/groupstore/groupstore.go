// Package groupstore persists the taxonomic interest-group definitions
// (category -> family -> genus) in a sqlite table, seeded from a JSON file
// at startup and passed explicitly to the components that need it.
package groupstore

import (
	"encoding/json"
	"os"
	"sort"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/amt2283/hunterleaf-go/internal/errors"
)

// PlantGroup is one genus entry inside a taxonomic interest category.
type PlantGroup struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	Category    string `gorm:"index" json:"category"`
	Family      string `json:"family"`
	Genus       string `gorm:"index" json:"genus"`
	CommonName  string `json:"common_name"`
	Description string `json:"description"`
}

// seedEntry is one genus record inside the JSON seed file, which maps
// category names to genus lists.
type seedEntry struct {
	Family      string `json:"family"`
	Genus       string `json:"genus"`
	CommonName  string `json:"common_name"`
	Description string `json:"description"`
}

// Store wraps the sqlite-backed group table.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the sqlite database at path and migrates
// the group table.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Newf("failed to open group database: %w", err).
			Category(errors.CategoryDatabase).
			Context("path", path).
			Component("groupstore").
			Build()
	}

	if err := db.AutoMigrate(&PlantGroup{}); err != nil {
		return nil, errors.Newf("failed to migrate group table: %w", err).
			Category(errors.CategoryDatabase).
			Component("groupstore").
			Build()
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ImportJSON replaces the group table with the contents of a seed file
// mapping category names to genus entries.
func (s *Store) ImportJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Newf("failed to read seed file: %w", err).
			Category(errors.CategoryConfiguration).
			Context("path", path).
			Component("groupstore").
			Build()
	}

	var seed map[string][]seedEntry
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Newf("failed to parse seed file: %w", err).
			Category(errors.CategoryParsing).
			Context("path", path).
			Component("groupstore").
			Build()
	}

	groups := make([]PlantGroup, 0, len(seed)*4)
	for category, entries := range seed {
		for _, e := range entries {
			groups = append(groups, PlantGroup{
				Category:    category,
				Family:      e.Family,
				Genus:       e.Genus,
				CommonName:  e.CommonName,
				Description: e.Description,
			})
		}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&PlantGroup{}).Error; err != nil {
			return err
		}
		if len(groups) == 0 {
			return nil
		}
		return tx.Create(&groups).Error
	})
}

// Genera returns the distinct genus names inside a category.
func (s *Store) Genera(category string) ([]string, error) {
	var genera []string
	err := s.db.Model(&PlantGroup{}).
		Where("category = ?", category).
		Distinct().
		Order("genus").
		Pluck("genus", &genera).Error
	if err != nil {
		return nil, errors.Newf("failed to query genera: %w", err).
			Category(errors.CategoryDatabase).
			Context("category", category).
			Component("groupstore").
			Build()
	}
	return genera, nil
}

// Categories returns the distinct category names, sorted.
func (s *Store) Categories() ([]string, error) {
	var categories []string
	err := s.db.Model(&PlantGroup{}).
		Distinct().
		Pluck("category", &categories).Error
	if err != nil {
		return nil, errors.Newf("failed to query categories: %w", err).
			Category(errors.CategoryDatabase).
			Component("groupstore").
			Build()
	}
	sort.Strings(categories)
	return categories, nil
}

// Groups returns all entries inside a category.
func (s *Store) Groups(category string) ([]PlantGroup, error) {
	var groups []PlantGroup
	err := s.db.Where("category = ?", category).Order("genus").Find(&groups).Error
	if err != nil {
		return nil, errors.Newf("failed to query groups: %w", err).
			Category(errors.CategoryDatabase).
			Context("category", category).
			Component("groupstore").
			Build()
	}
	return groups, nil
}
