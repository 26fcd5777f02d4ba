package server

import (
	"encoding/json"
	"net/http"
	"net/rpc"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tilemine/gameserver/broadcast"
	"github.com/tilemine/gameserver/config"
	"github.com/tilemine/gameserver/logger"
	"github.com/tilemine/gameserver/monitor"
	"github.com/tilemine/gameserver/network"
	"github.com/tilemine/gameserver/persistence"
	"github.com/tilemine/gameserver/room"
	gameserver_rpc "github.com/tilemine/gameserver/rpc"
	"github.com/tilemine/gameserver/services"
	"github.com/tilemine/gameserver/session"
	"github.com/tilemine/gameserver/timer"
)

var rpcRegisterOnce sync.Once

type GameServer struct {
	cfg            *config.Config
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	userService    *services.UserService
	broadcaster    broadcast.Broadcaster
	rpcServer      *gameserver_rpc.Server
	monitor        *monitor.Monitor
	timers         *timer.Manager
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, db persistence.Database) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		roomManager:    room.NewManager(cfg.Room.MaxPlayers),
		sessionManager: session.NewManager(),
		userService: services.NewUserService(db, cfg.Telegram.BotToken,
			time.Duration(cfg.Telegram.InitDataMaxAgeSeconds)*time.Second),
		monitor:      monitor.NewMonitor("tilemine"),
		timers:       timer.NewManager(),
		shutdownChan: make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化广播器
	s.broadcaster = broadcast.NewRoomBroadcaster(s.roomManager, s.sessionManager)

	// 初始化RPC服务器
	rpcServer, err := gameserver_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	// 注册RPC服务（net/rpc 全局注册，进程内只做一次）
	rpcRegisterOnce.Do(func() {
		userRPC := gameserver_rpc.NewUserRPC(s.userService)
		rpc.Register(userRPC)
	})

	// 空闲会话清扫（默认关闭，见配置）
	if idle := cfg.Room.IdleTimeoutSeconds; idle > 0 {
		interval := time.Duration(idle) * time.Second / 2
		if interval < time.Second {
			interval = time.Second
		}
		s.timers.AddTimer(interval, interval, s.evictIdleSessions)
	}

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	s.monitor.StartServer(s.cfg.Server.MetricsAddress)

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	return http.ListenAndServe(s.cfg.Server.HTTPAddress, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.timers.Stop()
	s.rpcServer.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.roomManager.LeaveRoom(sess)
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlinePlayers()
		s.monitor.SetActiveRooms(s.roomManager.Count())
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.Touch()
	case network.MsgTypeLogin:
		s.handleLogin(sess, packet)
	case network.MsgTypeMineReward:
		s.handleMineReward(sess, packet)
	case network.MsgTypeJoinRoom:
		s.handleJoinRoom(sess, packet)
	case network.MsgTypeLeaveRoom:
		s.handleLeaveRoom(sess)
	case network.MsgTypeUpdatePosition:
		s.handleUpdatePosition(sess, packet)
	default:
		// 未知消息类型忽略，不断开连接
		logger.Log.Debugf("Unknown message type %d from session %s", packet.MsgID, sess.GetID())
	}
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	if sess.RoomID != "" {
		return // 已在房间内
	}

	var req network.JoinRoomRequest
	if len(packet.Data) > 0 {
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			s.rejectJoin(sess, network.RejectReasonRoomNotFound, "bad join request")
			return
		}
	}

	var (
		r   *room.Room
		err error
	)
	if req.RoomID == "" {
		r, err = s.roomManager.JoinOrCreate(sess, s.broadcaster)
	} else {
		r, err = s.roomManager.Join(req.RoomID, sess)
	}

	if err != nil {
		switch {
		case err == room.ErrRoomFull:
			// 容量拒绝发生在会话状态分配之前
			s.rejectJoin(sess, network.RejectReasonRoomFull, "room is full")
		case err == room.ErrRoomNotFound:
			s.rejectJoin(sess, network.RejectReasonRoomNotFound, "room not found")
		default:
			s.rejectJoin(sess, network.RejectReasonRoomNotFound, err.Error())
		}
		return
	}

	logger.Log.Infof("Session %s joined room %s", sess.GetID(), r.ID)
	s.monitor.SetActiveRooms(s.roomManager.Count())

	ack, _ := json.Marshal(network.JoinAck{SessionID: sess.GetID(), RoomID: r.ID})
	if err := sess.Send(network.MsgTypeJoinAck, ack); err != nil {
		logger.Log.Warnf("Failed to ack join for session %s: %v", sess.GetID(), err)
		return
	}

	// ack 之后再推一帧快照，让新成员立刻看到房间现状
	r.BroadcastSnapshot()
}

func (s *GameServer) rejectJoin(sess *session.Session, reason, message string) {
	data, _ := json.Marshal(network.JoinRejected{Reason: reason, Message: message})
	if err := sess.Send(network.MsgTypeJoinRejected, data); err != nil {
		logger.Log.Warnf("Failed to send join rejection to session %s: %v", sess.GetID(), err)
	}
}

// handleLogin 校验 Telegram init data 并把用户身份绑定到会话。
// 校验失败时会话保持匿名，不断开连接。
func (s *GameServer) handleLogin(sess *session.Session, packet *network.Packet) {
	var req network.LoginRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.rejectLogin(sess, "bad login request")
		return
	}

	user, err := s.userService.Login(req.InitData)
	if err != nil {
		logger.Log.Infof("Login failed for session %s: %v", sess.GetID(), err)
		s.rejectLogin(sess, "login verification failed")
		return
	}

	sess.UserID = user.ID
	logger.Log.Infof("Session %s logged in as user %d", sess.GetID(), user.ID)

	ack, _ := json.Marshal(network.LoginAck{UserID: user.ID, Balance: user.Balance})
	if err := sess.Send(network.MsgTypeLoginAck, ack); err != nil {
		logger.Log.Warnf("Failed to ack login for session %s: %v", sess.GetID(), err)
	}
}

func (s *GameServer) rejectLogin(sess *session.Session, message string) {
	data, _ := json.Marshal(network.LoginRejected{Message: message})
	_ = sess.Send(network.MsgTypeLoginRejected, data)
}

// handleMineReward 把挖通矿格的奖励记入持久余额。
// 余额推送走用户级广播，同一用户的所有会话都会收到新值。
func (s *GameServer) handleMineReward(sess *session.Session, packet *network.Packet) {
	if sess.UserID == 0 {
		s.sendRoomError(sess, 401, "login required")
		return
	}

	var req network.MineReward
	if err := json.Unmarshal(packet.Data, &req); err != nil || req.Amount <= 0 {
		s.sendRoomError(sess, 400, "bad mine reward")
		return
	}

	newBalance, err := s.userService.CreditMining(sess.UserID, req.Amount, req.X, req.Y)
	if err != nil {
		logger.Log.Warnf("Credit mining for user %d: %v", sess.UserID, err)
		if newBalance == 0 {
			s.sendRoomError(sess, 500, "mining credit failed")
			return
		}
		// 余额已入账，只有流水落库失败，继续推送新余额
	}

	data, _ := json.Marshal(network.BalanceUpdate{Balance: newBalance})
	if err := s.broadcaster.BroadcastToUsers([]int64{sess.UserID}, network.MsgTypeBalanceUpdate, data); err != nil {
		logger.Log.Warnf("Failed to push balance to user %d: %v", sess.UserID, err)
	}
}

func (s *GameServer) sendRoomError(sess *session.Session, code int, message string) {
	data, _ := json.Marshal(network.RoomError{Code: code, Message: message})
	_ = sess.Send(network.MsgTypeRoomError, data)
}

func (s *GameServer) handleLeaveRoom(sess *session.Session) {
	if sess.RoomID == "" {
		return
	}
	s.roomManager.LeaveRoom(sess)
	s.monitor.SetActiveRooms(s.roomManager.Count())
}

func (s *GameServer) handleUpdatePosition(sess *session.Session, packet *network.Packet) {
	if sess.RoomID == "" {
		return
	}

	r, exists := s.roomManager.GetRoom(sess.RoomID)
	if !exists {
		return
	}

	s.monitor.IncIntentsReceived()
	start := time.Now()
	r.HandleUpdatePosition(sess.GetID(), network.DecodePositionIntent(packet.Data))
	s.monitor.ObserveSnapshotLatency(time.Since(start))
}

// evictIdleSessions 踢掉超过空闲阈值的会话。关闭连接即可，
// 后续清理走正常的断连路径。
func (s *GameServer) evictIdleSessions() {
	timeout := time.Duration(s.cfg.Room.IdleTimeoutSeconds) * time.Second
	now := time.Now()

	for _, r := range s.roomManager.Rooms() {
		for _, sess := range r.GetSessions() {
			if sess.IdleSince(now) > timeout {
				logger.Log.Infof("Evicting idle session %s from room %s", sess.GetID(), r.ID)
				_ = sess.Close()
			}
		}
	}
}
