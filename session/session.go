// session/session.go
package session

import (
	"math"
	"sync"
	"time"

	"github.com/tilemine/gameserver/models"
	"github.com/tilemine/gameserver/network"
)

// moveEpsilon 任一轴位移超过该值即视为在移动
const moveEpsilon = 0.001

type Session struct {
	ID         string
	Conn       network.Connection
	UserID     int64
	RoomID     string
	CreatedAt  time.Time
	LastActive time.Time

	state models.PlayerState
	mutex sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
		state:      models.DefaultPlayerState(),
	}
}

// ApplyIntent 将一条 updatePosition 意图合并进权威状态。
// x/y must both be present to move; direction only overwrites when valid;
// isMoving is taken verbatim when the client sent it, otherwise derived from
// how far the position actually moved.
func (s *Session) ApplyIntent(intent network.PositionIntent) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	prevX := s.state.X
	prevY := s.state.Y

	if intent.X != nil && intent.Y != nil {
		s.state.X = *intent.X
		s.state.Y = *intent.Y
	}

	if intent.Direction != nil {
		s.state.Direction = *intent.Direction
	}

	if intent.IsMoving != nil {
		s.state.IsMoving = *intent.IsMoving
	} else {
		moved := math.Abs(s.state.X-prevX) > moveEpsilon ||
			math.Abs(s.state.Y-prevY) > moveEpsilon
		s.state.IsMoving = moved
	}

	s.LastActive = time.Now()
}

// State returns a copy of the session's replicated state.
func (s *Session) State() models.PlayerState {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.state
}

func (s *Session) Send(msgID uint16, data []byte) error {
	return s.Conn.Send(msgID, data)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Touch() {
	s.mutex.Lock()
	s.LastActive = time.Now()
	s.mutex.Unlock()
}

// IdleSince 距最近一次活动经过的时长
func (s *Session) IdleSince(now time.Time) time.Duration {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return now.Sub(s.LastActive)
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

func (m *Manager) GetByUserID(userID int64) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.UserID == userID {
			result = append(result, session)
		}
	}
	return result
}
