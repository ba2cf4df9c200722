package payloads

import "github.com/google/uuid"

// PackChangedEvent is emitted when a pack is created or replaced.
type PackChangedEvent struct {
	PackID    uuid.UUID   `json:"pack_id"`
	UserID    uuid.UUID   `json:"user_id"`
	Title     string      `json:"title"`
	Public    bool        `json:"public"`
	ItemIDs   []uuid.UUID `json:"item_ids"`
	ItemCount int         `json:"item_count"`
}

// PackDeletedEvent is emitted after an owner deletes a pack.
type PackDeletedEvent struct {
	PackID uuid.UUID `json:"pack_id"`
	UserID uuid.UUID `json:"user_id"`
}

// PackCopiedEvent links a copy to the pack it was cloned from.
type PackCopiedEvent struct {
	PackID       uuid.UUID `json:"pack_id"`
	SourcePackID uuid.UUID `json:"source_pack_id"`
	UserID       uuid.UUID `json:"user_id"`
	Title        string    `json:"title"`
	ItemCount    int       `json:"item_count"`
}

// PackItemEvent reports a single association being added or removed.
type PackItemEvent struct {
	PackID   uuid.UUID `json:"pack_id"`
	ItemID   uuid.UUID `json:"item_id"`
	UserID   uuid.UUID `json:"user_id"`
	Quantity int       `json:"quantity,omitempty"`
}
