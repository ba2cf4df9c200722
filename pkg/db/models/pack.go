package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Pack is a user-owned, visibility-flagged list of catalog items.
type Pack struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index:packs_user_id_idx"`
	Title       string     `gorm:"column:title;not null"`
	Description *string    `gorm:"column:description"`
	Public      bool       `gorm:"column:public;not null;default:false;index:packs_public_idx"`
	User        *User      `gorm:"foreignKey:UserID"`
	PackItems   []PackItem `gorm:"foreignKey:PackID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Pack) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PackItem links a pack to a catalog item. (pack_id, item_id) is the primary key,
// so an item appears at most once per pack.
type PackItem struct {
	PackID    uuid.UUID `gorm:"column:pack_id;type:uuid;primaryKey"`
	ItemID    uuid.UUID `gorm:"column:item_id;type:uuid;primaryKey;index:pack_items_item_id_idx"`
	Quantity  int       `gorm:"column:quantity;not null;default:1"`
	Worn      bool      `gorm:"column:worn;not null;default:false"`
	Notes     *string   `gorm:"column:notes"`
	Position  int       `gorm:"column:position;not null;default:0"`
	Item      *Item     `gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
