package packs

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packlist-backend/pkg/db"
	"github.com/angelmondragon/packlist-backend/pkg/db/dbtest"
	"github.com/angelmondragon/packlist-backend/pkg/db/models"
	"github.com/angelmondragon/packlist-backend/pkg/enums"
	"github.com/angelmondragon/packlist-backend/pkg/metrics"
	"github.com/angelmondragon/packlist-backend/pkg/outbox"
	"github.com/angelmondragon/packlist-backend/pkg/saga"
)

type fixture struct {
	client   *db.Client
	svc      Service
	repo     *Repository
	registry *prometheus.Registry

	alice   models.User
	bob     models.User
	shelter models.Category
	kitchen models.Category
	tent    models.Item
	stove   models.Item
	pot     models.Item
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	client := dbtest.Open(t)
	registry := prometheus.NewRegistry()
	runner, err := saga.NewRunner(client, metrics.NewSagaMetrics(registry), nil)
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	repo := NewRepository(client.DB())
	svc, err := NewService(ServiceParams{
		Repo:            repo,
		Runner:          runner,
		Outbox:          outbox.NewService(outbox.NewRepository(client.DB()), nil),
		SitemapBasePath: "https://packlist.test/packs/",
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	f := &fixture{client: client, svc: svc, repo: repo, registry: registry}
	f.alice = models.User{Username: "alice", Email: "alice@example.com"}
	f.bob = models.User{Username: "bob", Email: "bob@example.com"}
	f.shelter = models.Category{Name: "Shelter", Level: 1}
	f.kitchen = models.Category{Name: "Kitchen", Level: 1}
	f.mustCreate(t, &f.alice, &f.bob, &f.shelter, &f.kitchen)

	f.tent = models.Item{Name: "Tent", CategoryID: &f.shelter.ID, Weight: decimal.RequireFromString("1150.00"), Price: decimal.RequireFromString("349.95")}
	f.stove = models.Item{Name: "Stove", CategoryID: &f.kitchen.ID, Weight: decimal.RequireFromString("85.00"), Price: decimal.RequireFromString("59.00")}
	f.pot = models.Item{Name: "Pot", CategoryID: &f.kitchen.ID, Weight: decimal.RequireFromString("120.50"), Price: decimal.RequireFromString("24.00")}
	f.mustCreate(t, &f.tent, &f.stove, &f.pot)
	return f
}

func (f *fixture) mustCreate(t *testing.T, rows ...any) {
	t.Helper()
	for _, row := range rows {
		if err := f.client.DB().Create(row).Error; err != nil {
			t.Fatalf("seed %T: %v", row, err)
		}
	}
}

func (f *fixture) createPack(t *testing.T, owner uuid.UUID, title string, public bool, items ...uuid.UUID) *PackDTO {
	t.Helper()
	refs := make([]ItemRef, 0, len(items))
	for _, id := range items {
		refs = append(refs, ItemRef{ID: id})
	}
	pack, err := f.svc.CreatePack(context.Background(), owner, PackInput{Title: title, Public: public, Items: refs})
	if err != nil {
		t.Fatalf("create pack %q: %v", title, err)
	}
	return pack
}

func (f *fixture) countEvents(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	if err := f.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return count
}

func (f *fixture) countAssociations(t *testing.T, packID uuid.UUID) int64 {
	t.Helper()
	var count int64
	if err := f.client.DB().Model(&models.PackItem{}).Where("pack_id = ?", packID).Count(&count).Error; err != nil {
		t.Fatalf("count pack items: %v", err)
	}
	return count
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
