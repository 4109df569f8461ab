// Package session implements the server side of LEO: the per-connection
// session actor state machine (spec §4.5) and the TCP server that accepts
// connections and spawns one actor per connection (spec §5).
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
)

// State is one of the four session actor states from spec §3/§4.5.
type State int

const (
	StateAwaitHello State = iota
	StateAwaitAuth
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitHello:
		return "AwaitHello"
	case StateAwaitAuth:
		return "AwaitAuth"
	case StateReady:
		return "Ready"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Upload tracks an in-progress PUT for one remote path, per spec §3.
type Upload struct {
	DeclaredSize  int64
	ReceivedBytes int64
}

// Session is the per-connection security and protocol context described
// in spec §3. It is owned by exactly one Actor and is never accessed
// concurrently, except for the bookkeeping fields also read for
// diagnostics (RemoteAddr, ID), which are safe because they are set once
// and never mutated after the handshake.
type Session struct {
	RemoteAddr string
	ID         string

	// Directional AEAD keys, non-nil and distinct once HandshakeComplete.
	C2S []byte
	S2C []byte

	HandshakeComplete bool
	Authenticated     bool

	State State

	mu      sync.Mutex
	uploads map[string]*Upload
}

// New creates a fresh Session for a newly accepted connection. ID is
// assigned once the handshake produces one.
func New(remoteAddr string) *Session {
	return &Session{
		RemoteAddr: remoteAddr,
		State:      StateAwaitHello,
		uploads:    make(map[string]*Upload),
	}
}

// NewSessionID generates the 16-character lowercase hex session identifier
// from spec §4.5: 8 random bytes, hex-encoded.
func NewSessionID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// BeginUpload registers upload state for path, per spec §3's invariant
// that an upload entry exists iff a PUT_BEGIN has been seen without a
// matching PUT_END.
func (s *Session) BeginUpload(path string, declaredSize int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[path] = &Upload{DeclaredSize: declaredSize}
}

// Upload returns the in-progress upload state for path, if any.
func (s *Session) Upload(path string) (*Upload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[path]
	return u, ok
}

// AddReceivedBytes records that n more bytes arrived for an in-progress
// upload at path. It is a no-op if no PUT_BEGIN was seen for path.
func (s *Session) AddReceivedBytes(path string, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.uploads[path]; ok {
		u.ReceivedBytes += n
	}
}

// EndUpload clears upload state for path.
func (s *Session) EndUpload(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uploads, path)
}

// Wipe destroys the session's secret key material and pending upload
// state, per spec §3's lifecycle: "the session's secrets must be wiped on
// destruction."
func (s *Session) Wipe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	zero(s.C2S)
	zero(s.S2C)
	s.C2S = nil
	s.S2C = nil
	s.uploads = nil
	s.State = StateClosed
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
