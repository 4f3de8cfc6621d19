// Package store persists the category tables, run records and schedule
// with gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"emagsync/internal/models"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrUnknownCategory = errors.New("not an allowed marketplace category")
)

// Catalog holds the allowed marketplace categories and the manual category
// mappings.
type Catalog struct {
	db *gorm.DB
}

func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

func (s *Catalog) ListCategories(ctx context.Context) ([]models.FitnessCategory, error) {
	var categories []models.FitnessCategory
	if err := s.db.WithContext(ctx).Order("id").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// SeedCategories inserts the named categories that are not stored yet and
// returns how many were added. Existing rows keep their keywords.
func (s *Catalog) SeedCategories(ctx context.Context, names []string, keywords map[string][]string) (int, error) {
	rows := make([]models.FitnessCategory, 0, len(names))
	for _, name := range names {
		rows = append(rows, models.FitnessCategory{
			Name:     name,
			Keywords: models.Keywords(keywords[name]),
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to seed categories: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// AllowedCategories returns the stored category names with their keyword
// lists. Both are empty when nothing has been seeded.
func (s *Catalog) AllowedCategories(ctx context.Context) ([]string, map[string][]string, error) {
	categories, err := s.ListCategories(ctx)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(categories))
	keywords := make(map[string][]string)
	for _, c := range categories {
		names = append(names, c.Name)
		if len(c.Keywords) > 0 {
			keywords[c.Name] = []string(c.Keywords)
		}
	}
	return names, keywords, nil
}

func (s *Catalog) ListMappings(ctx context.Context) ([]models.CategoryMapping, error) {
	var mappings []models.CategoryMapping
	if err := s.db.WithContext(ctx).Order("id").Find(&mappings).Error; err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	return mappings, nil
}

// MappingOverrides returns the manual mappings as supplier category ->
// marketplace category name.
func (s *Catalog) MappingOverrides(ctx context.Context) (map[string]string, error) {
	mappings, err := s.ListMappings(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(mappings))
	for _, m := range mappings {
		out[m.Fitness1Category] = m.EmagCategory
	}
	return out, nil
}

// SaveMapping creates or replaces the mapping of one supplier category. The
// marketplace category must be allowed once the category table is seeded.
func (s *Catalog) SaveMapping(ctx context.Context, fitness1Category, emagCategory string) (*models.CategoryMapping, error) {
	fitness1Category = strings.TrimSpace(fitness1Category)
	emagCategory = strings.TrimSpace(emagCategory)
	if err := s.checkAllowed(ctx, emagCategory); err != nil {
		return nil, err
	}

	mapping := models.CategoryMapping{Fitness1Category: fitness1Category, EmagCategory: emagCategory}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fitness1_category"}},
			DoUpdates: clause.AssignmentColumns([]string{"emag_category", "updated_at"}),
		}).
		Create(&mapping).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save mapping: %w", err)
	}

	var stored models.CategoryMapping
	if err := s.db.WithContext(ctx).First(&stored, "fitness1_category = ?", fitness1Category).Error; err != nil {
		return nil, fmt.Errorf("failed to reload mapping: %w", err)
	}
	return &stored, nil
}

type MappingUpdate struct {
	ID           uint   `json:"id"`
	EmagCategory string `json:"emag_category"`
}

// UpdateMappings changes the marketplace category of existing mappings in
// one transaction. Unknown ids are skipped; the number updated is returned.
func (s *Catalog) UpdateMappings(ctx context.Context, updates []MappingUpdate) (int, error) {
	updated := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			name := strings.TrimSpace(u.EmagCategory)
			if u.ID == 0 || name == "" {
				continue
			}
			if err := s.checkAllowedTx(tx, name); err != nil {
				return err
			}
			res := tx.Model(&models.CategoryMapping{}).Where("id = ?", u.ID).Update("emag_category", name)
			if res.Error != nil {
				return res.Error
			}
			updated += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to update mappings: %w", err)
	}
	return updated, nil
}

// ReplaceMappings swaps every stored mapping for the given assignment.
func (s *Catalog) ReplaceMappings(ctx context.Context, assignment map[string]string) (int, error) {
	rows := make([]models.CategoryMapping, 0, len(assignment))
	for supplier, name := range assignment {
		rows = append(rows, models.CategoryMapping{Fitness1Category: supplier, EmagCategory: name})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.CategoryMapping{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to replace mappings: %w", err)
	}
	return len(rows), nil
}

func (s *Catalog) DeleteMapping(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.CategoryMapping{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete mapping: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Catalog) checkAllowed(ctx context.Context, name string) error {
	return s.checkAllowedTx(s.db.WithContext(ctx), name)
}

func (s *Catalog) checkAllowedTx(tx *gorm.DB, name string) error {
	var total, matching int64
	if err := tx.Model(&models.FitnessCategory{}).Count(&total).Error; err != nil {
		return err
	}
	if total == 0 {
		return nil
	}
	if err := tx.Model(&models.FitnessCategory{}).Where("name = ?", name).Count(&matching).Error; err != nil {
		return err
	}
	if matching == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	return nil
}
