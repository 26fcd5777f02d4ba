// room/room.go
package room

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tilemine/gameserver/logger"
	"github.com/tilemine/gameserver/models"
	"github.com/tilemine/gameserver/network"
	"github.com/tilemine/gameserver/session"
)

// DefaultMaxOccupancy 单个房间的默认上限
const DefaultMaxOccupancy = 4

var (
	// ErrRoomFull is returned when a join is attempted against a room already
	// holding MaxPlayers sessions. Admission is checked before any session
	// state is allocated for the room.
	ErrRoomFull = errors.New("room is full")
)

// Room 持有一个对局的全部权威会话状态。
// All mutation goes through AddSession / RemoveSession / HandleUpdatePosition;
// rendering and transport code never touch the session map directly.
type Room struct {
	ID          string
	MaxPlayers  int
	CreatedAt   time.Time
	sessions    map[string]*session.Session // sessionID -> session
	broadcaster Broadcaster
	mutex       sync.RWMutex
}

// NewRoom 创建一个新房间
func NewRoom(id string, maxPlayers int, broadcaster Broadcaster) *Room {
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxOccupancy
	}
	return &Room{
		ID:          id,
		MaxPlayers:  maxPlayers,
		CreatedAt:   time.Now(),
		sessions:    make(map[string]*session.Session),
		broadcaster: broadcaster,
	}
}

// AddSession 把一个会话加入房间，满员时返回 ErrRoomFull。
// On success every member (including the joiner) receives a fresh snapshot.
func (r *Room) AddSession(s *session.Session) error {
	r.mutex.Lock()
	if len(r.sessions) >= r.MaxPlayers {
		r.mutex.Unlock()
		return ErrRoomFull
	}
	r.sessions[s.ID] = s
	s.RoomID = r.ID
	r.mutex.Unlock()

	r.BroadcastSnapshot()
	return nil
}

// RemoveSession 从房间移除会话。幂等：移除不存在的会话不是错误。
func (r *Room) RemoveSession(sessionID string) {
	r.mutex.Lock()
	s, exists := r.sessions[sessionID]
	if exists {
		s.RoomID = ""
		delete(r.sessions, sessionID)
	}
	r.mutex.Unlock()

	if !exists {
		return
	}

	left, _ := json.Marshal(network.SessionLeft{SessionID: sessionID})
	r.broadcast(network.MsgTypeSessionLeft, left)
	r.BroadcastSnapshot()
}

// HandleUpdatePosition 处理一条位置意图。
// A session that already left may still have messages in flight; those are
// silently ignored rather than treated as errors.
func (r *Room) HandleUpdatePosition(sessionID string, intent network.PositionIntent) {
	r.mutex.RLock()
	s, exists := r.sessions[sessionID]
	r.mutex.RUnlock()

	if !exists {
		return
	}

	s.ApplyIntent(intent)
	r.BroadcastSnapshot()
}

// GetSession 获取单个会话
func (r *Room) GetSession(sessionID string) (*session.Session, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	s, exists := r.sessions[sessionID]
	return s, exists
}

// GetSessions returns a slice of all sessions in the room (thread-safe).
func (r *Room) GetSessions() []*session.Session {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	sessions := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// Count 当前会话数
func (r *Room) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.sessions)
}

// IsEmpty reports whether the room holds no sessions.
func (r *Room) IsEmpty() bool {
	return r.Count() == 0
}

// Snapshot 组装当前的全量房间快照
func (r *Room) Snapshot() models.RoomSnapshot {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	players := make(map[string]models.PlayerState, len(r.sessions))
	for id, s := range r.sessions {
		players[id] = s.State()
	}
	return models.RoomSnapshot{RoomID: r.ID, Players: players}
}

// BroadcastSnapshot 向房间内所有会话推送全量快照。
// 每次状态变更（加入/离开/更新）都会调用；丢失的一帧由下一帧覆盖。
func (r *Room) BroadcastSnapshot() {
	data, err := json.Marshal(r.Snapshot())
	if err != nil {
		logger.Log.Errorf("Failed to marshal snapshot for room %s: %v", r.ID, err)
		return
	}
	r.broadcast(network.MsgTypeRoomSnapshot, data)
}

func (r *Room) broadcast(msgID uint16, data []byte) {
	if r.broadcaster == nil {
		return
	}
	if err := r.broadcaster.BroadcastToRoom(r.ID, msgID, data); err != nil {
		logger.Log.Warnf("Broadcast to room %s failed: %v", r.ID, err)
	}
}

// --- 房间管理器 ---

// Manager 管理所有房间
type Manager struct {
	rooms      map[string]*Room
	maxPlayers int
	mutex      sync.RWMutex
}

// NewManager 创建一个新的房间管理器
func NewManager(maxPlayers int) *Manager {
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxOccupancy
	}
	return &Manager{
		rooms:      make(map[string]*Room),
		maxPlayers: maxPlayers,
	}
}

// JoinOrCreate 将会话放进一个有空位的房间；没有就新建一个。
// 房间只在有人时存在，清空后由 LeaveRoom 销毁，不做任何持久化。
func (m *Manager) JoinOrCreate(s *session.Session, broadcaster Broadcaster) (*Room, error) {
	m.mutex.Lock()
	var target *Room
	for _, r := range m.rooms {
		if r.Count() < r.MaxPlayers {
			target = r
			break
		}
	}
	if target == nil {
		target = NewRoom(uuid.New().String(), m.maxPlayers, broadcaster)
		m.rooms[target.ID] = target
	}
	m.mutex.Unlock()

	if err := target.AddSession(s); err != nil {
		// Lost the race for the last slot; retry once with a fresh room.
		if errors.Is(err, ErrRoomFull) {
			fresh := NewRoom(uuid.New().String(), m.maxPlayers, broadcaster)
			m.mutex.Lock()
			m.rooms[fresh.ID] = fresh
			m.mutex.Unlock()
			if err := fresh.AddSession(s); err != nil {
				return nil, err
			}
			return fresh, nil
		}
		return nil, err
	}
	return target, nil
}

// Join 加入指定房间，满员返回 ErrRoomFull
func (m *Manager) Join(roomID string, s *session.Session) (*Room, error) {
	r, exists := m.GetRoom(roomID)
	if !exists {
		return nil, ErrRoomNotFound
	}
	if err := r.AddSession(s); err != nil {
		return nil, err
	}
	return r, nil
}

// ErrRoomNotFound 指定的房间不存在
var ErrRoomNotFound = errors.New("room not found")

// LeaveRoom 将会话移出其所在房间，房间清空后销毁
func (m *Manager) LeaveRoom(s *session.Session) {
	if s.RoomID == "" {
		return
	}
	r, exists := m.GetRoom(s.RoomID)
	if !exists {
		s.RoomID = ""
		return
	}

	r.RemoveSession(s.ID)
	if r.IsEmpty() {
		m.RemoveRoom(r.ID)
		logger.Log.Infof("Room %s is empty, destroyed", r.ID)
	}
}

// RemoveRoom 从管理器中移除一个房间
func (m *Manager) RemoveRoom(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.rooms, id)
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	room, exists := m.rooms[id]
	return room, exists
}

// Rooms returns a snapshot slice of all live rooms.
func (m *Manager) Rooms() []*Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// Count 当前房间数
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}
