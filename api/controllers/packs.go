package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/packlist-backend/api/middleware"
	"github.com/angelmondragon/packlist-backend/api/responses"
	"github.com/angelmondragon/packlist-backend/api/validators"
	"github.com/angelmondragon/packlist-backend/internal/packs"
	pkgerrors "github.com/angelmondragon/packlist-backend/pkg/errors"
	"github.com/angelmondragon/packlist-backend/pkg/logger"
	"github.com/angelmondragon/packlist-backend/pkg/types"
)

// PacksPublic lists sitemap entries for every public pack.
func PacksPublic(svc packs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !serviceReady(ctx, svc, logg, w) {
			return
		}
		entries, err := svc.ListPublic(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

// PackGet returns a pack to its owner, or to anyone when it is public.
func PackGet(svc packs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !serviceReady(ctx, svc, logg, w) {
			return
		}
		packID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		pack, err := svc.GetPack(ctx, packID, middleware.RequesterFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, pack)
	}
}

// PackView returns a public pack with its items grouped by category.
func PackView(svc packs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !serviceReady(ctx, svc, logg, w) {
			return
		}
		packID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		view, err := svc.ViewPack(ctx, packID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// PacksByUser lists every pack owned by the user in the path.
func PacksByUser(svc packs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !serviceReady(ctx, svc, logg, w) {
			return
		}
		userID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		list, err := svc.ListUserPacks(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// PackCreate creates a pack owned by the requester. Unknown body fields are ignored.
func PackCreate(svc packs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, ok := requireUser(ctx, svc, logg, w)
		if !ok {
			return
		}
		var input packs.PackInput
		if err := validators.DecodeJSONBodyLenient(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		pack, err := svc.CreatePack(ctx, userID, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteCreated(w, pack)
	}
}

// PackUpdate replaces an owned pack's fields and item set.
func PackUpdate(svc packs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, ok := requireUser(ctx, svc, logg, w)
		if !ok {
			return
		}
		var input packs.PackInput
		if err := validators.DecodeJSONBodyLenient(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		pack, err := svc.UpdatePack(ctx, userID, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, pack)
	}
}

// PackExport streams the requester's own pack as CSV.
func PackExport(svc packs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, ok := requireUser(ctx, svc, logg, w)
		if !ok {
			return
		}
		packID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		items, err := svc.ExportPack(ctx, userID, packID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteCSV(ctx, logg, w, "pack-"+packID.String()+".csv", func(out io.Writer) error {
			return packs.ExportCSV(out, items)
		})
	}
}

// PackDelete deletes an owned pack and its associations.
func PackDelete(svc packs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, ok := requireUser(ctx, svc, logg, w)
		if !ok {
			return
		}
		var body packs.PackRef
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		deleted, err := svc.DeletePack(ctx, userID, body.PackID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, types.DeletedPack{ID: deleted})
	}
}

// PackAddItem adds one catalog item to an owned pack.
func PackAddItem(svc packs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, ok := requireUser(ctx, svc, logg, w)
		if !ok {
			return
		}
		var input packs.PackItemInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		added, err := svc.AddItem(ctx, userID, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteCreated(w, added)
	}
}

// PackRemoveItem removes one item from an owned pack and reports how many rows went.
func PackRemoveItem(svc packs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, ok := requireUser(ctx, svc, logg, w)
		if !ok {
			return
		}
		var body packs.PackItemRef
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		removed, err := svc.RemoveItem(ctx, userID, body.PackID, body.ItemID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, types.RemovedItems{Removed: removed})
	}
}

// PackCopy clones an owned pack into a new private pack.
func PackCopy(svc packs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, ok := requireUser(ctx, svc, logg, w)
		if !ok {
			return
		}
		var body packs.PackRef
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		copied, err := svc.CopyPack(ctx, userID, body.PackID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteCreated(w, copied)
	}
}

func serviceReady(ctx context.Context, svc packs.Service, logg *logger.Logger, w http.ResponseWriter) bool {
	if svc == nil {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pack service unavailable"))
		return false
	}
	return true
}

func requireUser(ctx context.Context, svc packs.Service, logg *logger.Logger, w http.ResponseWriter) (uuid.UUID, bool) {
	if !serviceReady(ctx, svc, logg, w) {
		return uuid.Nil, false
	}
	requester := middleware.RequesterFromContext(ctx)
	if !requester.Authenticated() {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return uuid.Nil, false
	}
	return requester.UserID, true
}
