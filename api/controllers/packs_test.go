package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packlist-backend/api/middleware"
	"github.com/angelmondragon/packlist-backend/internal/packs"
	pkgerrors "github.com/angelmondragon/packlist-backend/pkg/errors"
	"github.com/angelmondragon/packlist-backend/pkg/visibility"
)

type stubPackService struct {
	err error

	gotUser      uuid.UUID
	gotPack      uuid.UUID
	gotItem      uuid.UUID
	gotRequester visibility.Requester
	gotInput     packs.PackInput
	gotItemInput packs.PackItemInput

	pack    *packs.PackDTO
	view    *packs.PackViewDTO
	entries []packs.SitemapEntry
	owned   []packs.UserPackDTO
	items   []packs.ItemDTO
	removed int64
}

func (s *stubPackService) ListPublic(ctx context.Context) ([]packs.SitemapEntry, error) {
	return s.entries, s.err
}

func (s *stubPackService) GetPack(ctx context.Context, id uuid.UUID, requester visibility.Requester) (*packs.PackDTO, error) {
	s.gotPack = id
	s.gotRequester = requester
	return s.pack, s.err
}

func (s *stubPackService) ViewPack(ctx context.Context, id uuid.UUID) (*packs.PackViewDTO, error) {
	s.gotPack = id
	return s.view, s.err
}

func (s *stubPackService) ListUserPacks(ctx context.Context, userID uuid.UUID) ([]packs.UserPackDTO, error) {
	s.gotUser = userID
	return s.owned, s.err
}

func (s *stubPackService) CreatePack(ctx context.Context, userID uuid.UUID, input packs.PackInput) (*packs.PackDTO, error) {
	s.gotUser = userID
	s.gotInput = input
	return s.pack, s.err
}

func (s *stubPackService) UpdatePack(ctx context.Context, userID uuid.UUID, input packs.PackInput) (*packs.PackDTO, error) {
	s.gotUser = userID
	s.gotInput = input
	return s.pack, s.err
}

func (s *stubPackService) DeletePack(ctx context.Context, userID, packID uuid.UUID) (uuid.UUID, error) {
	s.gotUser = userID
	s.gotPack = packID
	return packID, s.err
}

func (s *stubPackService) AddItem(ctx context.Context, userID uuid.UUID, input packs.PackItemInput) (*packs.PackItemDTO, error) {
	s.gotUser = userID
	s.gotItemInput = input
	if s.err != nil {
		return nil, s.err
	}
	return &packs.PackItemDTO{PackID: input.PackID, ItemID: input.ItemID, Quantity: 1}, nil
}

func (s *stubPackService) RemoveItem(ctx context.Context, userID, packID, itemID uuid.UUID) (int64, error) {
	s.gotUser = userID
	s.gotPack = packID
	s.gotItem = itemID
	return s.removed, s.err
}

func (s *stubPackService) CopyPack(ctx context.Context, userID, packID uuid.UUID) (*packs.PackDTO, error) {
	s.gotUser = userID
	s.gotPack = packID
	return s.pack, s.err
}

func (s *stubPackService) ExportPack(ctx context.Context, userID, packID uuid.UUID) ([]packs.ItemDTO, error) {
	s.gotUser = userID
	s.gotPack = packID
	return s.items, s.err
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func asUser(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestPackCreateRequiresAuthentication(t *testing.T) {
	svc := &stubPackService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/packs", strings.NewReader(`{"title":"x","items":[]}`))
	rec := httptest.NewRecorder()

	PackCreate(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, string(pkgerrors.CodeUnauthorized), decodeError(t, rec).Error.Code)
}

func TestPackCreateIgnoresUnknownFields(t *testing.T) {
	userID := uuid.New()
	itemID := uuid.New()
	svc := &stubPackService{pack: &packs.PackDTO{ID: uuid.New(), Title: "Weekend"}}
	payload := `{"title":"Weekend","public":true,"clientOnly":"ignored","userId":"` + uuid.NewString() + `","items":[{"id":"` + itemID.String() + `","packItem":{"quantity":2}}]}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/packs", strings.NewReader(payload)), userID)
	rec := httptest.NewRecorder()

	PackCreate(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, userID, svc.gotUser)
	require.Equal(t, "Weekend", svc.gotInput.Title)
	require.True(t, svc.gotInput.Public)
	require.Len(t, svc.gotInput.Items, 1)
	require.Equal(t, itemID, svc.gotInput.Items[0].ID)
	require.Equal(t, 2, *svc.gotInput.Items[0].PackItem.Quantity)
}

func TestPackAddItemRejectsUnknownFields(t *testing.T) {
	svc := &stubPackService{}
	body := `{"packId":"` + uuid.NewString() + `","itemId":"` + uuid.NewString() + `","bogus":1}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/packs/add-item", strings.NewReader(body)), uuid.New())
	rec := httptest.NewRecorder()

	PackAddItem(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, string(pkgerrors.CodeValidation), decodeError(t, rec).Error.Code)
}

func TestPackAddItemCreated(t *testing.T) {
	userID := uuid.New()
	packID := uuid.New()
	itemID := uuid.New()
	svc := &stubPackService{}
	body, err := json.Marshal(map[string]any{"packId": packID, "itemId": itemID, "worn": true})
	require.NoError(t, err)
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/packs/add-item", bytes.NewReader(body)), userID)
	rec := httptest.NewRecorder()

	PackAddItem(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, packID, svc.gotItemInput.PackID)
	require.Equal(t, itemID, svc.gotItemInput.ItemID)
	require.True(t, svc.gotItemInput.Worn)

	var envelope struct {
		Data packs.PackItemDTO `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.Equal(t, 1, envelope.Data.Quantity)
}

func TestPackGetPassesRequester(t *testing.T) {
	userID := uuid.New()
	packID := uuid.New()
	svc := &stubPackService{pack: &packs.PackDTO{ID: packID}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/packs/"+packID.String(), nil)
	req = asUser(withURLParam(req, "id", packID.String()), userID)
	rec := httptest.NewRecorder()
	PackGet(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, packID, svc.gotPack)
	require.True(t, svc.gotRequester.Owns(userID))

	anon := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/packs/"+packID.String(), nil), "id", packID.String())
	rec = httptest.NewRecorder()
	PackGet(svc, nil).ServeHTTP(rec, anon)

	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, svc.gotRequester.Authenticated())
}

func TestPackGetForbiddenAndMalformedID(t *testing.T) {
	svc := &stubPackService{err: pkgerrors.New(pkgerrors.CodeForbidden, "pack is private")}
	packID := uuid.New()

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/packs/"+packID.String(), nil), "id", packID.String())
	rec := httptest.NewRecorder()
	PackGet(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/packs/nope", nil), "id", "nope")
	rec = httptest.NewRecorder()
	PackGet(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPackViewNotFound(t *testing.T) {
	svc := &stubPackService{err: pkgerrors.New(pkgerrors.CodeNotFound, "pack not found")}
	packID := uuid.New()
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/packs/view/"+packID.String(), nil), "id", packID.String())
	rec := httptest.NewRecorder()

	PackView(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "pack not found", decodeError(t, rec).Error.Message)
}

func TestPacksByUserAndPublic(t *testing.T) {
	userID := uuid.New()
	svc := &stubPackService{
		owned:   []packs.UserPackDTO{{ID: uuid.New(), UserID: userID, Title: "Alpine"}},
		entries: []packs.SitemapEntry{{Loc: "https://packlist.test/packs/abc/alpine"}},
	}

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/packs/user/"+userID.String(), nil), "id", userID.String())
	rec := httptest.NewRecorder()
	PacksByUser(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, userID, svc.gotUser)

	rec = httptest.NewRecorder()
	PacksPublic(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/packs/public", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []packs.SitemapEntry `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.Len(t, envelope.Data, 1)
	require.Equal(t, "https://packlist.test/packs/abc/alpine", envelope.Data[0].Loc)
}

func TestPackDeleteAndRemoveItem(t *testing.T) {
	userID := uuid.New()
	packID := uuid.New()
	itemID := uuid.New()
	svc := &stubPackService{removed: 1}

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/packs/delete", strings.NewReader(`{"packId":"`+packID.String()+`"}`)), userID)
	rec := httptest.NewRecorder()
	PackDelete(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, packID, svc.gotPack)
	require.Contains(t, rec.Body.String(), packID.String())

	body := `{"packId":"` + packID.String() + `","itemId":"` + itemID.String() + `"}`
	req = asUser(httptest.NewRequest(http.MethodPost, "/api/v1/packs/remove-item", strings.NewReader(body)), userID)
	rec = httptest.NewRecorder()
	PackRemoveItem(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, itemID, svc.gotItem)
	require.JSONEq(t, `{"data":{"removed":1}}`, rec.Body.String())
}

func TestPackCopyConflictAndDependency(t *testing.T) {
	userID := uuid.New()
	packID := uuid.New()
	body := `{"packId":"` + packID.String() + `"}`

	svc := &stubPackService{err: pkgerrors.New(pkgerrors.CodeNotFound, "pack not found")}
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/packs/copy-pack", strings.NewReader(body)), userID)
	rec := httptest.NewRecorder()
	PackCopy(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	svc = &stubPackService{err: errors.New("connection reset")}
	req = asUser(httptest.NewRequest(http.MethodPost, "/api/v1/packs/copy-pack", strings.NewReader(body)), userID)
	rec = httptest.NewRecorder()
	PackCopy(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPackExportWritesCSV(t *testing.T) {
	userID := uuid.New()
	packID := uuid.New()
	svc := &stubPackService{items: []packs.ItemDTO{{
		Name:       "Tent",
		Weight:     decimal.RequireFromString("1.2"),
		WeightUnit: "kg",
		Price:      decimal.RequireFromString("300"),
		Category:   &packs.CategoryDTO{Name: "Shelter"},
		PackItem:   packs.PackItemDTO{Quantity: 1},
	}}}

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/packs/export/"+packID.String(), nil), "id", packID.String())
	req = asUser(req, userID)
	rec := httptest.NewRecorder()
	PackExport(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "pack-"+packID.String()+".csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "Shelter,Tent,,1,1.20,kg,300.00,false,", lines[1])
}

func TestPackUpdateValidationSurfacesDetails(t *testing.T) {
	svc := &stubPackService{err: pkgerrors.New(pkgerrors.CodeValidation, "items are required").WithDetails(map[string]any{"field": "items"})}
	req := asUser(httptest.NewRequest(http.MethodPut, "/api/v1/packs", strings.NewReader(`{"id":"`+uuid.NewString()+`","title":"x"}`)), uuid.New())
	rec := httptest.NewRecorder()

	PackUpdate(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "items are required", decodeError(t, rec).Error.Message)
}

func TestPackHandlersWithoutService(t *testing.T) {
	rec := httptest.NewRecorder()
	PacksPublic(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/packs/public", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
