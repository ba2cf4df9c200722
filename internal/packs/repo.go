package packs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/packlist-backend/internal/repo"
	dbpkg "github.com/angelmondragon/packlist-backend/pkg/db"
	"github.com/angelmondragon/packlist-backend/pkg/db/models"
)

// Repository holds the pack persistence primitives. Every method that mutates
// on behalf of a user filters on both the pack id and the owner id, so a
// foreign pack matches zero rows instead of raising a separate error.
type Repository struct {
	base repo.Base
}

// PackFields are the scalar columns a replace-update writes.
type PackFields struct {
	Title       string
	Description *string
	Public      bool
}

type userPackRecord struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Title         string
	Description   *string
	Public        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	OwnerUsername *string
	ItemCount     int64
}

// itemCountColumn counts associations per pack with a correlated subquery.
const itemCountColumn = "(SELECT COUNT(*) FROM pack_items WHERE pack_items.pack_id = packs.id) AS item_count"

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.WithTx(tx)}
}

// FindByID loads a pack by id regardless of owner. It returns nil, nil when the
// pack does not exist. withItems preloads the associations filtered to this
// pack, each item's category and the owner summary.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID, withItems bool) (*models.Pack, error) {
	return r.first(r.base.DB(ctx).Where("packs.id = ?", id), withItems)
}

// FindOwned is FindByID scoped to ownerID.
func (r *Repository) FindOwned(ctx context.Context, id, ownerID uuid.UUID, withItems bool) (*models.Pack, error) {
	return r.first(r.base.DB(ctx).Scopes(repo.Owned("packs", id, ownerID)), withItems)
}

// LockOwned is FindOwned that also takes a row lock on Postgres, so later
// writes in the same transaction act on a pack that is still owned.
func (r *Repository) LockOwned(ctx context.Context, id, ownerID uuid.UUID) (*models.Pack, error) {
	return r.first(r.base.Locked(ctx).Scopes(repo.Owned("packs", id, ownerID)), false)
}

func (r *Repository) first(query *gorm.DB, withItems bool) (*models.Pack, error) {
	if withItems {
		query = withAssociations(query)
	}
	var pack models.Pack
	if err := query.First(&pack).Error; err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &pack, nil
}

func withAssociations(query *gorm.DB) *gorm.DB {
	return query.
		Preload("PackItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("pack_items.position ASC").Order("pack_items.created_at ASC")
		}).
		Preload("PackItems.Item").
		Preload("PackItems.Item.Category", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "level", "exclude_weight")
		}).
		Preload("User", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "username")
		})
}

// ListPublic returns id, title and updated_at for every public pack.
func (r *Repository) ListPublic(ctx context.Context) ([]models.Pack, error) {
	var rows []models.Pack
	err := r.base.DB(ctx).
		Model(&models.Pack{}).
		Select("id", "title", "updated_at").
		Where("public = ?", true).
		Order("updated_at DESC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// ListByUser returns every pack owned by userID with its association count and owner username.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]userPackRecord, error) {
	var rows []userPackRecord
	err := r.base.DB(ctx).
		Table("packs").
		Select("packs.id, packs.user_id, packs.title, packs.description, packs.public, packs.created_at, packs.updated_at, users.username AS owner_username, "+itemCountColumn).
		Joins("LEFT JOIN users ON users.id = packs.user_id").
		Where("packs.user_id = ?", userID).
		Order("packs.created_at ASC").
		Order("packs.id ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *Repository) Create(ctx context.Context, pack *models.Pack) error {
	return r.base.DB(ctx).Omit(clause.Associations).Create(pack).Error
}

// Update writes fields on the owned pack and returns the matched row count and
// the row as stored. Zero rows means the pack is missing or not owned.
func (r *Repository) Update(ctx context.Context, id, ownerID uuid.UUID, fields PackFields) (int64, *models.Pack, error) {
	res := r.base.DB(ctx).
		Model(&models.Pack{}).
		Scopes(repo.Owned("packs", id, ownerID)).
		Updates(map[string]any{
			"title":       fields.Title,
			"description": fields.Description,
			"public":      fields.Public,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, nil, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, nil, nil
	}

	pack, err := r.FindByID(ctx, id, false)
	if err != nil {
		return res.RowsAffected, nil, err
	}
	return res.RowsAffected, pack, nil
}

// Destroy deletes the owned pack and returns the affected row count.
func (r *Repository) Destroy(ctx context.Context, id, ownerID uuid.UUID) (int64, error) {
	res := r.base.DB(ctx).
		Scopes(repo.Owned("packs", id, ownerID)).
		Delete(&models.Pack{})
	return res.RowsAffected, res.Error
}

// BulkInsertAssociations inserts every association in one statement. An empty list is a no-op.
func (r *Repository) BulkInsertAssociations(ctx context.Context, items []models.PackItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.base.DB(ctx).Omit(clause.Associations).Create(&items).Error
}

// DestroyAssociations removes every association of packID.
func (r *Repository) DestroyAssociations(ctx context.Context, packID uuid.UUID) (int64, error) {
	res := r.base.DB(ctx).
		Where("pack_id = ?", packID).
		Delete(&models.PackItem{})
	return res.RowsAffected, res.Error
}

// DestroyOwnedAssociations removes every association of packID when ownerID owns it.
func (r *Repository) DestroyOwnedAssociations(ctx context.Context, packID, ownerID uuid.UUID) (int64, error) {
	db := r.base.DB(ctx)
	res := db.
		Where("pack_id IN (?)", ownedPackIDs(db, packID, ownerID)).
		Delete(&models.PackItem{})
	return res.RowsAffected, res.Error
}

// DestroyOwnedAssociation removes one (packID, itemID) association when ownerID owns the pack.
func (r *Repository) DestroyOwnedAssociation(ctx context.Context, packID, itemID, ownerID uuid.UUID) (int64, error) {
	db := r.base.DB(ctx)
	res := db.
		Where("item_id = ? AND pack_id IN (?)", itemID, ownedPackIDs(db, packID, ownerID)).
		Delete(&models.PackItem{})
	return res.RowsAffected, res.Error
}

// CreateOwnedAssociation inserts item only when ownerID owns item.PackID. The
// owner predicate is part of the INSERT ... SELECT, so zero rows means the pack
// is missing or foreign and nothing was written.
func (r *Repository) CreateOwnedAssociation(ctx context.Context, ownerID uuid.UUID, item *models.PackItem) (int64, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	db := r.base.DB(ctx)
	res := db.Exec(ownedAssociationInsert(db),
		item.ItemID, item.Quantity, item.Worn, item.Notes, item.Position, item.CreatedAt,
		item.PackID, ownerID,
	)
	return res.RowsAffected, res.Error
}

// NextPosition returns the position after the last association of packID.
func (r *Repository) NextPosition(ctx context.Context, packID uuid.UUID) (int, error) {
	var next int
	err := r.base.DB(ctx).
		Model(&models.PackItem{}).
		Select("COALESCE(MAX(position) + 1, 0)").
		Where("pack_id = ?", packID).
		Scan(&next).Error
	return next, err
}

// ownedAssociationInsert needs explicit casts on Postgres, where parameters in
// a SELECT list are otherwise typed as text.
func ownedAssociationInsert(db *gorm.DB) string {
	const insert = "INSERT INTO pack_items (pack_id, item_id, quantity, worn, notes, position, created_at) "
	const where = " FROM packs WHERE packs.id = ? AND packs.user_id = ?"
	if db.Dialector != nil && db.Dialector.Name() == dbpkg.DriverPostgres {
		return insert + "SELECT packs.id, ?::uuid, ?::integer, ?::boolean, ?::text, ?::integer, ?::timestamptz" + where
	}
	return insert + "SELECT packs.id, ?, ?, ?, ?, ?, ?" + where
}

func ownedPackIDs(db *gorm.DB, packID, ownerID uuid.UUID) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).
		Model(&models.Pack{}).
		Select("id").
		Scopes(repo.Owned("packs", packID, ownerID))
}
