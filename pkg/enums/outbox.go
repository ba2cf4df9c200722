package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event describes.
type OutboxAggregateType string

const (
	AggregatePack OutboxAggregateType = "pack"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePack,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a pack lifecycle event.
type OutboxEventType string

const (
	EventPackCreated     OutboxEventType = "pack_created"
	EventPackUpdated     OutboxEventType = "pack_updated"
	EventPackDeleted     OutboxEventType = "pack_deleted"
	EventPackCopied      OutboxEventType = "pack_copied"
	EventPackItemAdded   OutboxEventType = "pack_item_added"
	EventPackItemRemoved OutboxEventType = "pack_item_removed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPackCreated,
	EventPackUpdated,
	EventPackDeleted,
	EventPackCopied,
	EventPackItemAdded,
	EventPackItemRemoved,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
