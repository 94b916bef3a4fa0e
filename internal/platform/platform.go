// Package platform abstracts the chat platform's messaging and
// moderation API.  The gatekeeper core treats the platform as opaque:
// it can answer a pending join request, send a message to a space,
// remove a member, and look a member up.
package platform

import (
	"context"
	"errors"
)

// ErrNotMember is returned by GetMember when the applicant is not a
// member of the queried space.
var ErrNotMember = errors.New("not a member")

// Member is the platform's view of a space member.
type Member struct {
	SpaceID string
	UserID  string
}

type Client interface {
	// RespondJoinRequest answers a pending join request.  It returns
	// once the platform has settled the action (accepted it or failed),
	// never leaving the outcome in flight.
	RespondJoinRequest(ctx context.Context, requestID string, admit bool, reasonText string) error

	// SendMessage posts text to a space.
	SendMessage(ctx context.Context, spaceID, text string) error

	// RemoveMember removes a user from a space.
	RemoveMember(ctx context.Context, spaceID, userID string) error

	// GetMember looks a user up in a space.  Returns ErrNotMember when
	// the user is absent; any other error means the lookup itself failed.
	GetMember(ctx context.Context, spaceID, userID string) (Member, error)
}
