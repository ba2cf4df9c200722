package packs

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/packlist-backend/pkg/db"
	"github.com/angelmondragon/packlist-backend/pkg/db/models"
	"github.com/angelmondragon/packlist-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/packlist-backend/pkg/errors"
	"github.com/angelmondragon/packlist-backend/pkg/logger"
	"github.com/angelmondragon/packlist-backend/pkg/outbox"
	"github.com/angelmondragon/packlist-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/packlist-backend/pkg/saga"
	"github.com/angelmondragon/packlist-backend/pkg/visibility"
)

const copyTitlePrefix = "Copy of "

// Saga operation names, also used as metric labels.
const (
	opCreate     = "pack.create"
	opUpdate     = "pack.update"
	opDelete     = "pack.delete"
	opAddItem    = "pack.add_item"
	opRemoveItem = "pack.remove_item"
	opCopy       = "pack.copy"
)

// Service exposes pack reads and the owner-scoped mutations.
type Service interface {
	ListPublic(ctx context.Context) ([]SitemapEntry, error)
	GetPack(ctx context.Context, id uuid.UUID, requester visibility.Requester) (*PackDTO, error)
	ViewPack(ctx context.Context, id uuid.UUID) (*PackViewDTO, error)
	ListUserPacks(ctx context.Context, userID uuid.UUID) ([]UserPackDTO, error)
	CreatePack(ctx context.Context, userID uuid.UUID, input PackInput) (*PackDTO, error)
	UpdatePack(ctx context.Context, userID uuid.UUID, input PackInput) (*PackDTO, error)
	DeletePack(ctx context.Context, userID, packID uuid.UUID) (uuid.UUID, error)
	AddItem(ctx context.Context, userID uuid.UUID, input PackItemInput) (*PackItemDTO, error)
	RemoveItem(ctx context.Context, userID, packID, itemID uuid.UUID) (int64, error)
	CopyPack(ctx context.Context, userID, packID uuid.UUID) (*PackDTO, error)
	ExportPack(ctx context.Context, userID, packID uuid.UUID) ([]ItemDTO, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type sagaRunner interface {
	Run(ctx context.Context, s *saga.Saga) error
}

// ServiceParams groups dependencies for the pack service.
type ServiceParams struct {
	Repo            *Repository
	Runner          sagaRunner
	Outbox          eventEmitter
	Logger          *logger.Logger
	SitemapBasePath string
}

type service struct {
	repo       *Repository
	aggregator *Aggregator
	runner     sagaRunner
	outbox     eventEmitter
	logg       *logger.Logger
	basePath   string
}

// NewService builds the pack service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pack repo is required")
	}
	if params.Runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "saga runner is required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outbox emitter is required")
	}
	return &service{
		repo:       params.Repo,
		aggregator: NewAggregator(params.Repo),
		runner:     params.Runner,
		outbox:     params.Outbox,
		logg:       params.Logger,
		basePath:   strings.TrimRight(strings.TrimSpace(params.SitemapBasePath), "/"),
	}, nil
}

// ListPublic returns sitemap entries for every public pack.
func (s *service) ListPublic(ctx context.Context) ([]SitemapEntry, error) {
	rows, err := s.repo.ListPublic(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list public packs")
	}
	entries := make([]SitemapEntry, 0, len(rows))
	for _, row := range rows {
		loc := row.ID.String() + "/" + slug.Make(row.Title)
		if s.basePath != "" {
			loc = s.basePath + "/" + loc
		}
		entries = append(entries, SitemapEntry{Loc: loc, LastMod: row.UpdatedAt})
	}
	return entries, nil
}

// GetPack returns the pack when it is public or owned by requester.
func (s *service) GetPack(ctx context.Context, id uuid.UUID, requester visibility.Requester) (*PackDTO, error) {
	pack, err := s.aggregator.Assemble(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := visibility.EnsureViewable(subjectOf(pack), requester); err != nil {
		return nil, err
	}
	return pack, nil
}

// ViewPack returns a public pack with its items grouped by category.
func (s *service) ViewPack(ctx context.Context, id uuid.UUID) (*PackViewDTO, error) {
	pack, err := s.aggregator.Assemble(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := visibility.EnsurePublic(subjectOf(pack)); err != nil {
		return nil, err
	}
	return &PackViewDTO{Pack: pack, Categories: GroupByCategory(pack.Items)}, nil
}

func (s *service) ListUserPacks(ctx context.Context, userID uuid.UUID) ([]UserPackDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list user packs")
	}
	result := make([]UserPackDTO, 0, len(rows))
	for _, row := range rows {
		result = append(result, toUserPackDTO(row))
	}
	return result, nil
}

func (s *service) CreatePack(ctx context.Context, userID uuid.UUID, input PackInput) (*PackDTO, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := validatePackInput(input, false); err != nil {
		return nil, err
	}

	pack := &models.Pack{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Public:      input.Public,
	}
	assocs := associationsFor(pack.ID, input.Items)

	flow := saga.New(opCreate).
		Then("insert_pack", func(ctx context.Context, tx *gorm.DB) error {
			return storeError(s.repo.WithTx(tx).Create(ctx, pack), "insert pack")
		}).
		Then("insert_associations", func(ctx context.Context, tx *gorm.DB) error {
			return storeError(s.repo.WithTx(tx).BulkInsertAssociations(ctx, assocs), "insert pack items")
		}).
		Then("emit_event", func(ctx context.Context, tx *gorm.DB) error {
			return s.emit(ctx, tx, enums.EventPackCreated, pack.ID, userID, changedEvent(pack, assocs))
		})

	if err := s.runner.Run(ctx, flow); err != nil {
		return nil, err
	}
	s.logCompleted(ctx, opCreate, pack.ID, userID)
	return s.rehydrate(ctx, pack.ID)
}

// UpdatePack replaces the scalar fields and the entire association set of an owned pack.
func (s *service) UpdatePack(ctx context.Context, userID uuid.UUID, input PackInput) (*PackDTO, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := validatePackInput(input, true); err != nil {
		return nil, err
	}

	packID := input.ID
	assocs := associationsFor(packID, input.Items)
	var updated *models.Pack

	flow := saga.New(opUpdate).
		Then("update_pack", func(ctx context.Context, tx *gorm.DB) error {
			rows, pack, err := s.repo.WithTx(tx).Update(ctx, packID, userID, PackFields{
				Title:       strings.TrimSpace(input.Title),
				Description: input.Description,
				Public:      input.Public,
			})
			if err != nil {
				return storeError(err, "update pack")
			}
			if rows == 0 || pack == nil {
				return errPackNotFound()
			}
			updated = pack
			return nil
		}).
		Then("destroy_associations", func(ctx context.Context, tx *gorm.DB) error {
			_, err := s.repo.WithTx(tx).DestroyAssociations(ctx, packID)
			return storeError(err, "destroy pack items")
		}).
		Then("insert_associations", func(ctx context.Context, tx *gorm.DB) error {
			return storeError(s.repo.WithTx(tx).BulkInsertAssociations(ctx, assocs), "insert pack items")
		}).
		Then("emit_event", func(ctx context.Context, tx *gorm.DB) error {
			return s.emit(ctx, tx, enums.EventPackUpdated, packID, userID, changedEvent(updated, assocs))
		})

	if err := s.runner.Run(ctx, flow); err != nil {
		return nil, err
	}
	s.logCompleted(ctx, opUpdate, packID, userID)
	return s.rehydrate(ctx, packID)
}

// DeletePack removes an owned pack and its associations and returns its id.
func (s *service) DeletePack(ctx context.Context, userID, packID uuid.UUID) (uuid.UUID, error) {
	if err := requireUser(userID); err != nil {
		return uuid.Nil, err
	}
	if packID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "packId is required")
	}

	flow := saga.New(opDelete).
		Then("destroy_associations", func(ctx context.Context, tx *gorm.DB) error {
			_, err := s.repo.WithTx(tx).DestroyOwnedAssociations(ctx, packID, userID)
			return storeError(err, "destroy pack items")
		}).
		Then("destroy_pack", func(ctx context.Context, tx *gorm.DB) error {
			rows, err := s.repo.WithTx(tx).Destroy(ctx, packID, userID)
			if err != nil {
				return storeError(err, "destroy pack")
			}
			if rows == 0 {
				return errPackNotFound()
			}
			return nil
		}).
		Then("emit_event", func(ctx context.Context, tx *gorm.DB) error {
			return s.emit(ctx, tx, enums.EventPackDeleted, packID, userID, payloads.PackDeletedEvent{PackID: packID, UserID: userID})
		})

	if err := s.runner.Run(ctx, flow); err != nil {
		return uuid.Nil, err
	}
	s.logCompleted(ctx, opDelete, packID, userID)
	return packID, nil
}

// AddItem associates one catalog item with an owned pack, appended after the existing items.
func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input PackItemInput) (*PackItemDTO, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if input.PackID == uuid.Nil || input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "packId and itemId are required")
	}

	assoc := &models.PackItem{
		PackID:   input.PackID,
		ItemID:   input.ItemID,
		Quantity: quantityOrDefault(input.Quantity),
		Worn:     input.Worn,
		Notes:    input.Notes,
	}

	flow := saga.New(opAddItem).
		Then("authorize_pack", s.authorizeStep(input.PackID, userID)).
		Then("insert_association", func(ctx context.Context, tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			position, err := txRepo.NextPosition(ctx, input.PackID)
			if err != nil {
				return storeError(err, "load next position")
			}
			assoc.Position = position
			rows, err := txRepo.CreateOwnedAssociation(ctx, userID, assoc)
			if err != nil {
				return storeError(err, "insert pack item")
			}
			if rows == 0 {
				return errPackNotFound()
			}
			return nil
		}).
		Then("emit_event", func(ctx context.Context, tx *gorm.DB) error {
			return s.emit(ctx, tx, enums.EventPackItemAdded, input.PackID, userID, payloads.PackItemEvent{
				PackID:   input.PackID,
				ItemID:   input.ItemID,
				UserID:   userID,
				Quantity: assoc.Quantity,
			})
		})

	if err := s.runner.Run(ctx, flow); err != nil {
		return nil, err
	}
	s.logCompleted(ctx, opAddItem, input.PackID, userID)
	dto := toPackItemDTO(*assoc)
	return &dto, nil
}

// RemoveItem drops one association from an owned pack and returns the number removed.
func (s *service) RemoveItem(ctx context.Context, userID, packID, itemID uuid.UUID) (int64, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	if packID == uuid.Nil || itemID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "packId and itemId are required")
	}

	var removed int64
	flow := saga.New(opRemoveItem).
		Then("authorize_pack", s.authorizeStep(packID, userID)).
		Then("destroy_association", func(ctx context.Context, tx *gorm.DB) error {
			rows, err := s.repo.WithTx(tx).DestroyOwnedAssociation(ctx, packID, itemID, userID)
			if err != nil {
				return storeError(err, "destroy pack item")
			}
			removed = rows
			return nil
		}).
		Then("emit_event", func(ctx context.Context, tx *gorm.DB) error {
			if removed == 0 {
				return nil
			}
			return s.emit(ctx, tx, enums.EventPackItemRemoved, packID, userID, payloads.PackItemEvent{
				PackID: packID,
				ItemID: itemID,
				UserID: userID,
			})
		})

	if err := s.runner.Run(ctx, flow); err != nil {
		return 0, err
	}
	s.logCompleted(ctx, opRemoveItem, packID, userID)
	return removed, nil
}

// CopyPack clones an owned pack, including its associations, into a new private pack.
func (s *service) CopyPack(ctx context.Context, userID, packID uuid.UUID) (*PackDTO, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if packID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "packId is required")
	}

	var source *models.Pack
	copied := &models.Pack{ID: uuid.New(), UserID: userID}
	var assocs []models.PackItem

	flow := saga.New(opCopy).
		Then("authorize_source", s.authorizeStep(packID, userID)).
		Then("load_source", func(ctx context.Context, tx *gorm.DB) error {
			pack, err := s.repo.WithTx(tx).FindByID(ctx, packID, true)
			if err != nil {
				return storeError(err, "load source pack")
			}
			if pack == nil {
				return errPackNotFound()
			}
			source = pack
			return nil
		}).
		Then("insert_pack", func(ctx context.Context, tx *gorm.DB) error {
			copied.Title = copyTitlePrefix + source.Title
			copied.Description = source.Description
			return storeError(s.repo.WithTx(tx).Create(ctx, copied), "insert pack copy")
		}).
		Then("insert_associations", func(ctx context.Context, tx *gorm.DB) error {
			assocs = cloneAssociations(copied.ID, source.PackItems)
			return storeError(s.repo.WithTx(tx).BulkInsertAssociations(ctx, assocs), "insert copied pack items")
		}).
		Then("emit_event", func(ctx context.Context, tx *gorm.DB) error {
			return s.emit(ctx, tx, enums.EventPackCopied, copied.ID, userID, payloads.PackCopiedEvent{
				PackID:       copied.ID,
				SourcePackID: packID,
				UserID:       userID,
				Title:        copied.Title,
				ItemCount:    len(assocs),
			})
		})

	if err := s.runner.Run(ctx, flow); err != nil {
		return nil, err
	}
	s.logCompleted(ctx, opCopy, copied.ID, userID)
	return s.rehydrate(ctx, copied.ID)
}

// ExportPack returns the items of an owned pack for CSV export.
func (s *service) ExportPack(ctx context.Context, userID, packID uuid.UUID) ([]ItemDTO, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	pack, err := s.repo.FindOwned(ctx, packID, userID, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pack for export")
	}
	if pack == nil {
		return nil, errPackNotFound()
	}
	return toPackDTO(pack).Items, nil
}

func (s *service) authorizeStep(packID, userID uuid.UUID) saga.StepFunc {
	return func(ctx context.Context, tx *gorm.DB) error {
		pack, err := s.repo.WithTx(tx).LockOwned(ctx, packID, userID)
		if err != nil {
			return storeError(err, "authorize pack")
		}
		if pack == nil {
			return errPackNotFound()
		}
		return nil
	}
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, packID, userID uuid.UUID, data any) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePack,
		AggregateID:   packID,
		Actor:         &outbox.ActorRef{UserID: userID},
		Data:          data,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue pack event")
	}
	return nil
}

func (s *service) rehydrate(ctx context.Context, packID uuid.UUID) (*PackDTO, error) {
	pack, err := s.aggregator.Assemble(ctx, packID)
	if err != nil {
		return nil, err
	}
	if pack == nil {
		return nil, errPackNotFound()
	}
	return pack, nil
}

func (s *service) logCompleted(ctx context.Context, operation string, packID, userID uuid.UUID) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithPackID(ctx, packID.String())
	logCtx = s.logg.WithUserID(logCtx, userID.String())
	s.logg.Info(logCtx, operation+".completed")
}

func requireUser(userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return nil
}

func errPackNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "pack not found")
}

func validatePackInput(input PackInput, update bool) error {
	if update && input.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "id is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if update && input.Items == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "items is required; send an empty list to clear the pack")
	}

	seen := make(map[uuid.UUID]struct{}, len(input.Items))
	for i, ref := range input.Items {
		if ref.ID == uuid.Nil {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "items[%d].id is required", i)
		}
		if ref.PackItem != nil && ref.PackItem.Quantity != nil && *ref.PackItem.Quantity < 0 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "items[%d].packItem.quantity must not be negative", i)
		}
		if _, dup := seen[ref.ID]; dup {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "item %s is listed more than once", ref.ID)
		}
		seen[ref.ID] = struct{}{}
	}
	return nil
}

// quantityOrDefault treats an unset or zero quantity as 1.
func quantityOrDefault(q *int) int {
	if q == nil || *q == 0 {
		return 1
	}
	return *q
}

func associationsFor(packID uuid.UUID, refs []ItemRef) []models.PackItem {
	assocs := make([]models.PackItem, 0, len(refs))
	for i, ref := range refs {
		assoc := models.PackItem{
			PackID:   packID,
			ItemID:   ref.ID,
			Quantity: 1,
			Position: i,
		}
		if ref.PackItem != nil {
			assoc.Quantity = quantityOrDefault(ref.PackItem.Quantity)
			assoc.Worn = ref.PackItem.Worn
			assoc.Notes = ref.PackItem.Notes
		}
		assocs = append(assocs, assoc)
	}
	return assocs
}

func cloneAssociations(packID uuid.UUID, source []models.PackItem) []models.PackItem {
	assocs := make([]models.PackItem, 0, len(source))
	for _, assoc := range source {
		quantity := assoc.Quantity
		assocs = append(assocs, models.PackItem{
			PackID:   packID,
			ItemID:   assoc.ItemID,
			Quantity: quantityOrDefault(&quantity),
			Worn:     assoc.Worn,
			Notes:    assoc.Notes,
			Position: assoc.Position,
		})
	}
	return assocs
}

func changedEvent(pack *models.Pack, assocs []models.PackItem) payloads.PackChangedEvent {
	ids := make([]uuid.UUID, 0, len(assocs))
	for _, assoc := range assocs {
		ids = append(ids, assoc.ItemID)
	}
	event := payloads.PackChangedEvent{ItemIDs: ids, ItemCount: len(ids)}
	if pack != nil {
		event.PackID = pack.ID
		event.UserID = pack.UserID
		event.Title = pack.Title
		event.Public = pack.Public
	}
	return event
}

// storeError maps constraint violations to client errors and anything else to a dependency failure.
func storeError(err error, action string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	switch {
	case dbpkg.IsUniqueViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "item is already in the pack")
	case dbpkg.IsForeignKeyViolation(err):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "referenced item does not exist")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
	}
}
