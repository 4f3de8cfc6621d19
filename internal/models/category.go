package models

import (
	"database/sql/driver"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// FitnessCategory is a marketplace category the shop is allowed to sell in,
// with the keywords that boost matching onto it.
type FitnessCategory struct {
	ID                      uint      `json:"id" gorm:"primaryKey"`
	Name                    string    `json:"name" gorm:"uniqueIndex;size:255;not null"`
	EmagCategoryID          *int      `json:"emag_category_id"`
	EmagProductNameCategory string    `json:"emag_product_name_category" gorm:"size:255"`
	Keywords                Keywords  `json:"keywords"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// CategoryMapping pins a supplier category to a marketplace category name,
// overriding whatever the matcher computes.
type CategoryMapping struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	Fitness1Category string    `json:"fitness1_category" gorm:"uniqueIndex;size:255;not null"`
	EmagCategory     string    `json:"emag_category" gorm:"size:255;not null"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Keywords is a text[] column on Postgres and an encoded array literal
// elsewhere.
type Keywords pq.StringArray

func (k Keywords) Value() (driver.Value, error) {
	if k == nil {
		return "{}", nil
	}
	return pq.StringArray(k).Value()
}

func (k *Keywords) Scan(src interface{}) error {
	return (*pq.StringArray)(k).Scan(src)
}

func (Keywords) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}
