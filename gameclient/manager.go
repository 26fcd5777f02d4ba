// gameclient/manager.go
package gameclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tilemine/gameserver/models"
	"github.com/tilemine/gameserver/network"
	"github.com/tilemine/gameserver/state"
)

// DefaultIntentInterval 意图上报周期。每个周期发送全量状态，不做增量。
const DefaultIntentInterval = 100 * time.Millisecond

// ErrNotConnected is returned when an operation needs a live room connection.
var ErrNotConnected = errors.New("not connected to a room")

// 连接生命周期状态
const (
	StatusDisconnected = "disconnected"
	StatusConnecting   = "connecting"
	StatusConnected    = "connected"
)

// RoomConn 是已完成入房握手的一条连接。
type RoomConn interface {
	SessionID() string
	RoomID() string
	Send(msgID uint16, data []byte) error
	ReadPacket() (*network.Packet, error)
	Close() error
}

// JoinFunc performs the join/create handshake. It is the only suspending step
// in the client lifecycle.
type JoinFunc func(ctx context.Context) (RoomConn, error)

// epoch 绑定到单条连接的资源，teardown 对同一 epoch 幂等。
type epoch struct {
	conn      RoomConn
	stop      chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
}

func (e *epoch) stopIntentTimer() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Manager 客户端连接管理器。
// One per process: repeated UI mounts share it, and a join already pending or
// live means Connect is a no-op. The attempted guard clears on failure only.
type Manager struct {
	joinFn   JoinFunc
	interval time.Duration

	machine *state.BaseMachine
	current *epoch

	sessionID string
	roomID    string
	userID    int64
	lastErr   string
	local     models.PlayerState
	onBalance func(balance int64)

	remotes *RemoteView
	mutex   sync.Mutex
}

var (
	sharedManager *Manager
	sharedMutex   sync.Mutex
)

// Shared returns the process-wide manager, creating it on first use.
func Shared(join JoinFunc) *Manager {
	sharedMutex.Lock()
	defer sharedMutex.Unlock()
	if sharedManager == nil {
		sharedManager = NewManager(join)
	}
	return sharedManager
}

// ResetShared 丢弃全局管理器（测试用）
func ResetShared() {
	sharedMutex.Lock()
	defer sharedMutex.Unlock()
	sharedManager = nil
}

func NewManager(join JoinFunc) *Manager {
	return &Manager{
		joinFn:   join,
		interval: DefaultIntentInterval,
		machine:  state.NewBaseMachine(&state.Simple{ID: StatusDisconnected}),
		remotes:  NewRemoteView(DefaultSmoothing),
		local:    models.DefaultPlayerState(),
	}
}

// SetIntentInterval 覆盖上报周期（测试用）
func (m *Manager) SetIntentInterval(d time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if d > 0 {
		m.interval = d
	}
}

// Status 当前连接状态
func (m *Manager) Status() string {
	return m.machine.GetCurrentState().GetID()
}

// Err returns the last connectivity error surfaced to the UI, if any.
func (m *Manager) Err() string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.lastErr
}

// SessionID 本端会话ID，未连接时为空串
func (m *Manager) SessionID() string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.sessionID
}

// RoomID 当前房间ID，未连接时为空串
func (m *Manager) RoomID() string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.roomID
}

// Remotes 远端玩家视图
func (m *Manager) Remotes() *RemoteView {
	return m.remotes
}

// SetLocalState 记录本端头像的最新状态，由输入层驱动。
func (m *Manager) SetLocalState(s models.PlayerState) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.local = s
}

// LocalState returns the state that will go out with the next intent.
func (m *Manager) LocalState() models.PlayerState {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.local
}

// UserID 登录后绑定的用户ID，未登录为 0
func (m *Manager) UserID() int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.userID
}

// SetBalanceHandler 注册权威余额回调，登录应答和入账推送都会触发。
func (m *Manager) SetBalanceHandler(fn func(balance int64)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.onBalance = fn
}

// Login 在当前连接上发起 Telegram 登录
func (m *Manager) Login(initData string) error {
	m.mutex.Lock()
	e := m.current
	m.mutex.Unlock()
	if e == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(network.LoginRequest{InitData: initData})
	if err != nil {
		return err
	}
	return e.conn.Send(network.MsgTypeLogin, data)
}

// ReportMined 上报一次挖通矿格的奖励，由服务器记入持久余额
func (m *Manager) ReportMined(amount int64, x, y float64) error {
	m.mutex.Lock()
	e := m.current
	m.mutex.Unlock()
	if e == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(network.MineReward{Amount: amount, X: x, Y: y})
	if err != nil {
		return err
	}
	return e.conn.Send(network.MsgTypeMineReward, data)
}

// Connect 触发一次入房尝试。已在连接中或已连接时直接返回，
// 保证同一时刻最多只有一次底层 join。
func (m *Manager) Connect(ctx context.Context) {
	m.mutex.Lock()
	if m.Status() != StatusDisconnected {
		m.mutex.Unlock()
		return
	}
	m.lastErr = ""
	m.machine.ChangeState(&state.Simple{ID: StatusConnecting})
	m.mutex.Unlock()

	go m.join(ctx)
}

func (m *Manager) join(ctx context.Context) {
	conn, err := m.joinFn(ctx)

	m.mutex.Lock()
	if err != nil {
		// 失败清除尝试标记，后续挂载可以重试
		m.lastErr = fmt.Sprintf("failed to connect: %v", err)
		m.machine.ChangeState(&state.Simple{ID: StatusDisconnected})
		m.mutex.Unlock()
		return
	}

	e := &epoch{conn: conn, stop: make(chan struct{})}
	m.current = e
	m.sessionID = conn.SessionID()
	m.roomID = conn.RoomID()
	m.machine.ChangeState(&state.Simple{ID: StatusConnected})
	m.mutex.Unlock()

	go m.intentLoop(e)
	go m.readLoop(e)
}

// Leave 主动离开：先停意图定时器，再通知服务器，最后断开。
func (m *Manager) Leave() {
	m.mutex.Lock()
	e := m.current
	m.mutex.Unlock()
	if e == nil {
		return
	}

	e.stopIntentTimer()
	_ = e.conn.Send(network.MsgTypeLeaveRoom, nil)
	m.teardown(e, "")
}

// teardown 释放一条连接的全部资源。对同一 epoch 调用多次只生效一次，
// 重连成功后不会残留旧定时器。
func (m *Manager) teardown(e *epoch, errMsg string) {
	e.closeOnce.Do(func() {
		e.stopIntentTimer()
		_ = e.conn.Close()

		m.mutex.Lock()
		if m.current == e {
			m.current = nil
			m.sessionID = ""
			m.roomID = ""
			m.userID = 0
			if errMsg != "" {
				m.lastErr = errMsg
			}
			m.machine.ChangeState(&state.Simple{ID: StatusDisconnected})
			m.remotes.Reset()
		}
		m.mutex.Unlock()
	})
}

// intentLoop 按固定周期发送全量意图，状态是否变化都发。
func (m *Manager) intentLoop(e *epoch) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			data, err := network.EncodePositionIntent(m.LocalState())
			if err != nil {
				continue
			}
			if err := e.conn.Send(network.MsgTypeUpdatePosition, data); err != nil {
				m.teardown(e, fmt.Sprintf("send failed: %v", err))
				return
			}
		}
	}
}

// readLoop 消费服务器推送，直到连接关闭。
func (m *Manager) readLoop(e *epoch) {
	for {
		pkt, err := e.conn.ReadPacket()
		if err != nil {
			m.teardown(e, fmt.Sprintf("connection lost: %v", err))
			return
		}
		m.handlePacket(pkt)
	}
}

func (m *Manager) handlePacket(pkt *network.Packet) {
	switch pkt.MsgID {
	case network.MsgTypeRoomSnapshot:
		var snap models.RoomSnapshot
		if err := json.Unmarshal(pkt.Data, &snap); err != nil {
			return
		}
		m.remotes.ApplySnapshot(snap.Players, m.SessionID())
	case network.MsgTypeSessionLeft:
		var left network.SessionLeft
		if err := json.Unmarshal(pkt.Data, &left); err != nil {
			return
		}
		m.remotes.Remove(left.SessionID)
	case network.MsgTypeRoomError:
		var roomErr network.RoomError
		if err := json.Unmarshal(pkt.Data, &roomErr); err != nil {
			return
		}
		m.mutex.Lock()
		m.lastErr = fmt.Sprintf("room error %d: %s", roomErr.Code, roomErr.Message)
		m.mutex.Unlock()
	case network.MsgTypeLoginAck:
		var ack network.LoginAck
		if err := json.Unmarshal(pkt.Data, &ack); err != nil {
			return
		}
		m.mutex.Lock()
		m.userID = ack.UserID
		fn := m.onBalance
		m.mutex.Unlock()
		if fn != nil {
			fn(ack.Balance)
		}
	case network.MsgTypeLoginRejected:
		var rej network.LoginRejected
		if err := json.Unmarshal(pkt.Data, &rej); err != nil {
			return
		}
		m.mutex.Lock()
		m.lastErr = fmt.Sprintf("login rejected: %s", rej.Message)
		m.mutex.Unlock()
	case network.MsgTypeBalanceUpdate:
		var upd network.BalanceUpdate
		if err := json.Unmarshal(pkt.Data, &upd); err != nil {
			return
		}
		m.mutex.Lock()
		fn := m.onBalance
		m.mutex.Unlock()
		if fn != nil {
			fn(upd.Balance)
		}
	default:
		// 未知消息忽略，不断开
	}
}
