package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packlist-backend/pkg/db/dbtest"
	"github.com/angelmondragon/packlist-backend/pkg/db/models"
	"github.com/angelmondragon/packlist-backend/pkg/enums"
)

func TestEmitQueuesEnvelopeInTransaction(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc := NewService(repo, nil)

	packID := uuid.New()
	actor := uuid.New()
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventPackCreated,
			AggregateType: enums.AggregatePack,
			AggregateID:   packID,
			Actor:         &ActorRef{UserID: actor},
			Data:          map[string]string{"title": "Trip"},
		})
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	var rows []models.OutboxEvent
	if err := client.DB().Find(&rows).Error; err != nil {
		t.Fatalf("load rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	var envelope PayloadEnvelope
	if err := json.Unmarshal(rows[0].Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Version != 1 || envelope.EventID == "" || envelope.Actor == nil || envelope.Actor.UserID != actor {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
	if rows[0].AggregateID != packID {
		t.Fatalf("unexpected aggregate id %s", rows[0].AggregateID)
	}
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	client := dbtest.Open(t)
	svc := NewService(NewRepository(client.DB()), nil)

	boom := errors.New("later step failed")
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventPackDeleted,
			AggregateType: enums.AggregatePack,
			AggregateID:   uuid.New(),
			Data:          struct{}{},
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	pending, err := NewRepository(client.DB()).CountPending()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if pending != 0 {
		t.Fatalf("expected rollback to drop the event, got %d", pending)
	}
}

func TestEmitValidatesEvent(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	if err := svc.Emit(context.Background(), nil, DomainEvent{}); err == nil {
		t.Fatalf("expected transaction required error")
	}

	client := dbtest.Open(t)
	tx := client.DB()
	cases := []DomainEvent{
		{EventType: "nope", AggregateType: enums.AggregatePack, AggregateID: uuid.New()},
		{EventType: enums.EventPackCreated, AggregateType: "nope", AggregateID: uuid.New()},
		{EventType: enums.EventPackCreated, AggregateType: enums.AggregatePack},
	}
	for i, event := range cases {
		if err := svc.Emit(context.Background(), tx, event); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc := NewService(repo, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := client.WithTx(ctx, func(tx *gorm.DB) error {
			return svc.Emit(ctx, tx, DomainEvent{
				EventType:     enums.EventPackUpdated,
				AggregateType: enums.AggregatePack,
				AggregateID:   uuid.New(),
				Data:          map[string]int{"n": i},
			})
		}); err != nil {
			t.Fatalf("emit %d: %v", i, err)
		}
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		if err != nil {
			return err
		}
		if len(rows) != 2 {
			t.Fatalf("expected 2 pending rows, got %d", len(rows))
		}
		if err := repo.MarkPublishedTx(tx, rows[0].ID); err != nil {
			return err
		}
		return repo.MarkTerminalTx(tx, rows[1].ID, errors.New("bad payload"), 3)
	})
	if err != nil {
		t.Fatalf("publish lifecycle: %v", err)
	}

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		if err != nil {
			return err
		}
		if len(rows) != 0 {
			t.Fatalf("terminal and published rows must not be fetched, got %d", len(rows))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
}
