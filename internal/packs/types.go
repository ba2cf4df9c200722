package packs

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PackInput is the create/update payload. Owner is always taken from the
// authenticated requester; a client supplied userId is ignored.
type PackInput struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title" validate:"required,max=255"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=5000"`
	Public      bool      `json:"public"`
	Items       []ItemRef `json:"items" validate:"omitempty,dive"`
}

// ItemRef references a catalog item plus the association fields to store with it.
type ItemRef struct {
	ID       uuid.UUID       `json:"id"`
	PackItem *PackItemFields `json:"packItem,omitempty"`
}

type PackItemFields struct {
	Quantity *int    `json:"quantity,omitempty" validate:"omitempty,min=0"`
	Worn     bool    `json:"worn"`
	Notes    *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// PackItemInput is the add-item payload.
type PackItemInput struct {
	PackID   uuid.UUID `json:"packId"`
	ItemID   uuid.UUID `json:"itemId"`
	Quantity *int      `json:"quantity,omitempty" validate:"omitempty,min=0"`
	Worn     bool      `json:"worn"`
	Notes    *string   `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// PackRef is the body of delete and copy requests.
type PackRef struct {
	PackID uuid.UUID `json:"packId"`
}

// PackItemRef is the body of remove-item requests.
type PackItemRef struct {
	PackID uuid.UUID `json:"packId"`
	ItemID uuid.UUID `json:"itemId"`
}

type PackDTO struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Public      bool      `json:"public"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	User        *OwnerDTO `json:"user,omitempty"`
	Items       []ItemDTO `json:"items"`
}

type OwnerDTO struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

type ItemDTO struct {
	ID         uuid.UUID       `json:"id"`
	CategoryID *uuid.UUID      `json:"categoryId"`
	Name       string          `json:"name"`
	Brand      *string         `json:"brand"`
	Weight     decimal.Decimal `json:"weight"`
	WeightUnit string          `json:"weightUnit"`
	Price      decimal.Decimal `json:"price"`
	ProductURL *string         `json:"productUrl"`
	Category   *CategoryDTO    `json:"category"`
	PackItem   PackItemDTO     `json:"packItem"`
}

type CategoryDTO struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Level         int       `json:"level"`
	ExcludeWeight bool      `json:"excludeWeight"`
}

type PackItemDTO struct {
	PackID    uuid.UUID `json:"packId"`
	ItemID    uuid.UUID `json:"itemId"`
	Quantity  int       `json:"quantity"`
	Worn      bool      `json:"worn"`
	Notes     *string   `json:"notes"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
}

// CategoryBucket groups a pack's items that share a category id.
type CategoryBucket struct {
	ID       *uuid.UUID   `json:"id"`
	Category *CategoryDTO `json:"category"`
	Items    []ItemDTO    `json:"items"`
}

type PackViewDTO struct {
	Pack       *PackDTO         `json:"pack"`
	Categories []CategoryBucket `json:"categories"`
}

// SitemapEntry is one public pack in the sitemap feed.
type SitemapEntry struct {
	Loc     string    `json:"loc"`
	LastMod time.Time `json:"lastmod"`
}

type UserPackDTO struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Public      bool      `json:"public"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	ItemCount   int64     `json:"itemCount"`
	User        *OwnerDTO `json:"user,omitempty"`
}
