package usecase

import (
	"sync"

	"places-bot/internal/domain"
)

// State is the conversation position of one user+chat session.
type State int

const (
	StateIdle State = iota

	// Create flow.
	StateAwaitName
	StateAwaitVibe
	StateAwaitType
	StateAwaitLocation
	StateAwaitPhoto
	StateAwaitReview

	// Edit flow.
	StateAwaitTargetID
	StateAwaitEditConfirm
	StateAwaitEditName
	StateAwaitEditVibe
	StateAwaitEditType
	StateAwaitEditLocation
	StateAwaitEditPhoto
	StateAwaitEditReview
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitName:
		return "await_name"
	case StateAwaitVibe:
		return "await_vibe"
	case StateAwaitType:
		return "await_type"
	case StateAwaitLocation:
		return "await_location"
	case StateAwaitPhoto:
		return "await_photo"
	case StateAwaitReview:
		return "await_review"
	case StateAwaitTargetID:
		return "await_target_id"
	case StateAwaitEditConfirm:
		return "await_edit_confirm"
	case StateAwaitEditName:
		return "await_edit_name"
	case StateAwaitEditVibe:
		return "await_edit_vibe"
	case StateAwaitEditType:
		return "await_edit_type"
	case StateAwaitEditLocation:
		return "await_edit_location"
	case StateAwaitEditPhoto:
		return "await_edit_photo"
	case StateAwaitEditReview:
		return "await_edit_review"
	}
	return "unknown"
}

// EditStep marks which field the edit flow is currently on. The generic
// skip action advances on this marker alone, without re-deriving the
// field from the state.
type EditStep int

const (
	EditStepNone EditStep = iota
	EditStepName
	EditStepVibe
	EditStepType
	EditStepLocation
	EditStepPhoto
	EditStepReview
)

// Session is the ephemeral conversation state for one user+chat. It is
// created on the first relevant event and zeroed on completion, cancel
// or reset; nothing survives a process restart.
type Session struct {
	State    State
	Draft    Draft
	EditStep EditStep
	Page     int
}

func (s *Session) reset() {
	*s = Session{}
}

// sessionKey identifies a session by user and chat identity.
type sessionKey struct {
	userID int64
	chatID int64
}

// sessionStore owns every live session plus the per-user last-known
// location. A session is a single-writer resource: withSession holds a
// per-key lock across the whole callback, so events for one user+chat
// never interleave while different users proceed in parallel.
type sessionStore struct {
	mu        sync.Mutex
	sessions  map[sessionKey]*sessionEntry
	locations map[int64]domain.GeoPoint
}

type sessionEntry struct {
	mu sync.Mutex
	s  Session
}

func newSessionStore() *sessionStore {
	return &sessionStore{
		sessions:  make(map[sessionKey]*sessionEntry),
		locations: make(map[int64]domain.GeoPoint),
	}
}

func (st *sessionStore) withSession(key sessionKey, fn func(*Session)) {
	st.mu.Lock()
	e, ok := st.sessions[key]
	if !ok {
		e = &sessionEntry{}
		st.sessions[key] = e
	}
	st.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.s)
}

// snapshot copies the session for a key, without creating one.
func (st *sessionStore) snapshot(key sessionKey) (Session, bool) {
	st.mu.Lock()
	e, ok := st.sessions[key]
	st.mu.Unlock()
	if !ok {
		return Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s, true
}

// setLocation overwrites the user's last-known location.
func (st *sessionStore) setLocation(userID int64, pt domain.GeoPoint) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.locations[userID] = pt
}

func (st *sessionStore) location(userID int64) (domain.GeoPoint, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	pt, ok := st.locations[userID]
	return pt, ok
}
