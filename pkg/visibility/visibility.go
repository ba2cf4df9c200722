package visibility

import (
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/packlist-backend/pkg/errors"
)

// Requester identifies who is asking. The zero value is an anonymous requester.
type Requester struct {
	UserID uuid.UUID
}

// Anonymous is the requester used when no valid credential was presented.
func Anonymous() Requester {
	return Requester{}
}

// ForUser is the requester for an authenticated user id.
func ForUser(userID uuid.UUID) Requester {
	return Requester{UserID: userID}
}

func (r Requester) Authenticated() bool {
	return r.UserID != uuid.Nil
}

// Owns reports whether the requester is the owner. Anonymous requesters own nothing.
func (r Requester) Owns(ownerID uuid.UUID) bool {
	return r.Authenticated() && ownerID != uuid.Nil && r.UserID == ownerID
}

// Subject is the part of a pack the visibility rules look at.
type Subject struct {
	OwnerID uuid.UUID
	Public  bool
}

// CanView reports whether requester may read the subject: public packs are
// readable by anyone, private packs only by their owner.
func CanView(subject Subject, requester Requester) bool {
	return subject.Public || requester.Owns(subject.OwnerID)
}

// EnsureViewable returns NOT_FOUND for a missing subject and FORBIDDEN when the
// requester may not read it.
func EnsureViewable(subject *Subject, requester Requester) error {
	if subject == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "pack not found")
	}
	if !CanView(*subject, requester) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "pack is private")
	}
	return nil
}

// EnsurePublic is the stricter rule for the shareable view, which ignores ownership.
func EnsurePublic(subject *Subject) error {
	if subject == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "pack not found")
	}
	if !subject.Public {
		return pkgerrors.New(pkgerrors.CodeForbidden, "pack is private")
	}
	return nil
}
