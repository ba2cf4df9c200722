package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Item is a catalog entry. The pack service only reads items.
type Item struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID     *uuid.UUID      `gorm:"column:user_id;type:uuid"`
	CategoryID *uuid.UUID      `gorm:"column:category_id;type:uuid;index:items_category_id_idx"`
	Name       string          `gorm:"column:name;not null"`
	Brand      *string         `gorm:"column:brand"`
	Weight     decimal.Decimal `gorm:"column:weight;type:numeric(10,2);not null;default:0"`
	WeightUnit string          `gorm:"column:weight_unit;not null;default:g"`
	Price      decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null;default:0"`
	ProductURL *string         `gorm:"column:product_url"`
	Category   *Category       `gorm:"foreignKey:CategoryID"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Item) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Category groups items; level encodes its depth in the category tree.
type Category struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name          string    `gorm:"column:name;not null"`
	Level         int       `gorm:"column:level;not null;default:0"`
	ExcludeWeight bool      `gorm:"column:exclude_weight;not null;default:false"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
