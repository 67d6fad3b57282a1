package state

import (
	"log"
	"sync"
)

// Store maps user ids to conversation sessions and admin ids to pending
// reply sessions. Sessions are removed on completion or cancellation; a
// process restart loses everything by design.
type Store struct {
	sessions   map[int64]*Session
	replies    map[int64]ReplySession
	fsmCreator FSMCreator
	mu         sync.Mutex
}

func NewStore(f FSMCreator) *Store {
	return &Store{
		sessions:   make(map[int64]*Session),
		replies:    make(map[int64]ReplySession),
		fsmCreator: f,
	}
}

// GetOrCreate returns the session for userID, creating an idle one if absent.
func (s *Store) GetOrCreate(userID int64, userName, username string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[userID]
	if exists {
		if session.UserName != userName {
			log.Printf("Updating display name for user %d: '%s' -> '%s'", userID, session.UserName, userName)
			session.UserName = userName
		}
		session.Username = username
		return session
	}

	log.Printf("Creating new session for user %d ('%s')", userID, userName)

	supportFSM := s.fsmCreator.NewSupportFSM()
	if supportFSM == nil {
		log.Printf("CRITICAL: Failed to initialize support FSM for user %d", userID)
	}

	session = &Session{
		UserID:     userID,
		UserName:   userName,
		Username:   username,
		SupportFSM: supportFSM,
	}
	s.sessions[userID] = session

	return session
}

// Get returns the session for userID without creating one.
func (s *Store) Get(userID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	return session, ok
}

// Delete removes the session for userID from the store.
func (s *Store) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[userID]; ok {
		log.Printf("Clearing session for user %d", userID)
		delete(s.sessions, userID)
	}
}

// Has reports whether a session exists for userID.
func (s *Store) Has(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[userID]
	return ok
}

// SetReplyTarget opens a single-shot reply session for adminID.
func (s *Store) SetReplyTarget(adminID int64, rs ReplySession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[adminID] = rs
}

// PopReplyTarget removes and returns the pending reply session for adminID.
func (s *Store) PopReplyTarget(adminID int64) (ReplySession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.replies[adminID]
	if ok {
		delete(s.replies, adminID)
	}
	return rs, ok
}

// HasReplyTarget reports whether adminID has a pending reply session.
func (s *Store) HasReplyTarget(adminID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.replies[adminID]
	return ok
}
