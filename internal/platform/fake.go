package platform

import (
	"context"
	"sync"
)

// Fake is an in-memory platform client that records every call.
// It is intended for use in tests and dev environments.
type Fake struct {
	mu sync.Mutex

	// Members maps spaceID -> set of userIDs considered present.
	Members map[string]map[string]struct{}

	// Error overrides, applied per method when non-nil.
	RespondErr   error
	SendErr      error
	RemoveErr    error
	GetMemberErr error

	Responses []FakeResponse
	Messages  []FakeMessage
	Removals  []FakeRemoval
}

type FakeResponse struct {
	RequestID  string
	Admit      bool
	ReasonText string
}

type FakeMessage struct {
	SpaceID string
	Text    string
}

type FakeRemoval struct {
	SpaceID string
	UserID  string
}

func NewFake() *Fake {
	return &Fake{Members: make(map[string]map[string]struct{})}
}

// AddMember marks a user as present in a space.
func (f *Fake) AddMember(spaceID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Members[spaceID] == nil {
		f.Members[spaceID] = make(map[string]struct{})
	}
	f.Members[spaceID][userID] = struct{}{}
}

func (f *Fake) RespondJoinRequest(_ context.Context, requestID string, admit bool, reasonText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RespondErr != nil {
		return f.RespondErr
	}
	f.Responses = append(f.Responses, FakeResponse{RequestID: requestID, Admit: admit, ReasonText: reasonText})
	return nil
}

func (f *Fake) SendMessage(_ context.Context, spaceID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	f.Messages = append(f.Messages, FakeMessage{SpaceID: spaceID, Text: text})
	return nil
}

func (f *Fake) RemoveMember(_ context.Context, spaceID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RemoveErr != nil {
		return f.RemoveErr
	}
	f.Removals = append(f.Removals, FakeRemoval{SpaceID: spaceID, UserID: userID})
	delete(f.Members[spaceID], userID)
	return nil
}

func (f *Fake) GetMember(_ context.Context, spaceID, userID string) (Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetMemberErr != nil {
		return Member{}, f.GetMemberErr
	}
	if _, ok := f.Members[spaceID][userID]; !ok {
		return Member{}, ErrNotMember
	}
	return Member{SpaceID: spaceID, UserID: userID}, nil
}
