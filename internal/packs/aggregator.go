package packs

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/packlist-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packlist-backend/pkg/errors"
	"github.com/angelmondragon/packlist-backend/pkg/visibility"
)

// Aggregator assembles the fully populated pack view.
type Aggregator struct {
	repo *Repository
}

func NewAggregator(repo *Repository) *Aggregator {
	return &Aggregator{repo: repo}
}

// Assemble loads the pack with its items, their categories and the owner.
// A missing pack yields nil, nil.
func (a *Aggregator) Assemble(ctx context.Context, id uuid.UUID) (*PackDTO, error) {
	pack, err := a.repo.FindByID(ctx, id, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pack")
	}
	if pack == nil {
		return nil, nil
	}
	return toPackDTO(pack), nil
}

// GroupByCategory buckets items by category id in first-seen order. Items
// without a category share one bucket.
func GroupByCategory(items []ItemDTO) []CategoryBucket {
	buckets := make([]CategoryBucket, 0)
	for _, item := range items {
		idx := -1
		for i := range buckets {
			if sameCategory(buckets[i].ID, item.CategoryID) {
				idx = i
				break
			}
		}
		if idx >= 0 {
			buckets[idx].Items = append(buckets[idx].Items, item)
			continue
		}
		buckets = append(buckets, CategoryBucket{
			ID:       item.CategoryID,
			Category: item.Category,
			Items:    []ItemDTO{item},
		})
	}
	return buckets
}

func sameCategory(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func subjectOf(pack *PackDTO) *visibility.Subject {
	if pack == nil {
		return nil
	}
	return &visibility.Subject{OwnerID: pack.UserID, Public: pack.Public}
}

func toPackDTO(pack *models.Pack) *PackDTO {
	dto := &PackDTO{
		ID:          pack.ID,
		UserID:      pack.UserID,
		Title:       pack.Title,
		Description: pack.Description,
		Public:      pack.Public,
		CreatedAt:   pack.CreatedAt,
		UpdatedAt:   pack.UpdatedAt,
		Items:       make([]ItemDTO, 0, len(pack.PackItems)),
	}
	if pack.User != nil {
		dto.User = &OwnerDTO{ID: pack.User.ID, Username: pack.User.Username}
	}
	for _, assoc := range pack.PackItems {
		if assoc.Item == nil {
			continue
		}
		dto.Items = append(dto.Items, toItemDTO(assoc))
	}
	return dto
}

func toItemDTO(assoc models.PackItem) ItemDTO {
	item := assoc.Item
	dto := ItemDTO{
		ID:         item.ID,
		CategoryID: item.CategoryID,
		Name:       item.Name,
		Brand:      item.Brand,
		Weight:     item.Weight,
		WeightUnit: item.WeightUnit,
		Price:      item.Price,
		ProductURL: item.ProductURL,
		PackItem:   toPackItemDTO(assoc),
	}
	if item.Category != nil {
		dto.Category = &CategoryDTO{
			ID:            item.Category.ID,
			Name:          item.Category.Name,
			Level:         item.Category.Level,
			ExcludeWeight: item.Category.ExcludeWeight,
		}
	}
	return dto
}

func toPackItemDTO(assoc models.PackItem) PackItemDTO {
	return PackItemDTO{
		PackID:    assoc.PackID,
		ItemID:    assoc.ItemID,
		Quantity:  assoc.Quantity,
		Worn:      assoc.Worn,
		Notes:     assoc.Notes,
		Position:  assoc.Position,
		CreatedAt: assoc.CreatedAt,
	}
}

func toUserPackDTO(row userPackRecord) UserPackDTO {
	dto := UserPackDTO{
		ID:          row.ID,
		UserID:      row.UserID,
		Title:       row.Title,
		Description: row.Description,
		Public:      row.Public,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		ItemCount:   row.ItemCount,
	}
	if row.OwnerUsername != nil {
		dto.User = &OwnerDTO{ID: row.UserID, Username: *row.OwnerUsername}
	}
	return dto
}
