package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tilemine/gameserver/auth"
	"github.com/tilemine/gameserver/config"
	"github.com/tilemine/gameserver/gameclient"
	"github.com/tilemine/gameserver/logger"
	"github.com/tilemine/gameserver/models"
	"github.com/tilemine/gameserver/persistence"
)

const testBotToken = "12345:TEST_TOKEN"

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// MockDatabase is an in-memory test double for the persistence.Database
// interface, safe for concurrent connection handlers.
type MockDatabase struct {
	mutex   sync.Mutex
	users   map[int64]*models.GormUser
	records []*models.GormMiningRecord
}

func NewMockDatabase() *MockDatabase {
	return &MockDatabase{users: make(map[int64]*models.GormUser)}
}

func (m *MockDatabase) UpsertUser(user *models.GormUser) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if existing, ok := m.users[user.ID]; ok {
		user.Balance = existing.Balance
	}
	m.users[user.ID] = user
	return nil
}

func (m *MockDatabase) GetUser(userID int64) (*models.GormUser, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return nil, persistence.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *MockDatabase) IncrementBalance(userID int64, delta int64) (int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return 0, persistence.ErrRecordNotFound
	}
	if user.Balance+delta < 0 {
		return 0, persistence.ErrInsufficientBalance
	}
	user.Balance += delta
	return user.Balance, nil
}

func (m *MockDatabase) SaveMiningRecord(record *models.GormMiningRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *MockDatabase) GetUserStats(userID int64) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}

func (m *MockDatabase) Close() error { return nil }

func (m *MockDatabase) recordCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.records)
}

func (m *MockDatabase) balanceOf(userID int64) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if user, ok := m.users[userID]; ok {
		return user.Balance
	}
	return 0
}

// newTestServer 启动一个真实的 GameServer 并把 websocket 入口挂到测试端口上
func newTestServer(t *testing.T, db persistence.Database) string {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.RPCAddress = "127.0.0.1:0"
	cfg.Room.MaxPlayers = 4
	cfg.Telegram.BotToken = testBotToken

	srv := NewGameServer(cfg, db)
	ts := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	t.Cleanup(func() {
		ts.Close()
		srv.Shutdown()
	})

	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met within timeout")
}

func signedInitData(t *testing.T, userJSON string) string {
	t.Helper()
	values := url.Values{}
	values.Set("user", userJSON)
	values.Set("auth_date", fmt.Sprintf("%d", time.Now().Unix()))
	values.Set("hash", auth.Sign(values, testBotToken))
	return values.Encode()
}

func newTestManager(t *testing.T, wsURL string, roomID func() string) *gameclient.Manager {
	t.Helper()
	m := gameclient.NewManager(func(ctx context.Context) (gameclient.RoomConn, error) {
		return gameclient.JoinOrCreate(ctx, wsURL, roomID())
	})
	m.SetIntentInterval(10 * time.Millisecond)
	t.Cleanup(m.Leave)

	m.Connect(context.Background())
	waitFor(t, 2*time.Second, func() bool { return m.Status() != gameclient.StatusConnecting })
	if m.Status() != gameclient.StatusConnected {
		t.Fatalf("Connection failed: %s", m.Err())
	}
	return m
}

func TestServer_CapacityRejection(t *testing.T) {
	wsURL := newTestServer(t, NewMockDatabase())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := gameclient.JoinOrCreate(ctx, wsURL, "")
	if err != nil {
		t.Fatalf("First join failed: %v", err)
	}
	t.Cleanup(func() { first.Close() })
	roomID := first.RoomID()

	for i := 0; i < 3; i++ {
		conn, err := gameclient.JoinOrCreate(ctx, wsURL, roomID)
		if err != nil {
			t.Fatalf("Join %d failed: %v", i+2, err)
		}
		t.Cleanup(func() { conn.Close() })
	}

	// 第5个加入者收到容量拒绝，而不是一般性的连接失败
	if _, err := gameclient.JoinOrCreate(ctx, wsURL, roomID); !errors.Is(err, gameclient.ErrRoomFull) {
		t.Fatalf("Expected ErrRoomFull for the 5th join, got %v", err)
	}

	// 不存在的房间是另一种错误
	if _, err := gameclient.JoinOrCreate(ctx, wsURL, "no_such_room"); err == nil || errors.Is(err, gameclient.ErrRoomFull) {
		t.Fatalf("Expected a distinct not-found error, got %v", err)
	}
}

func TestServer_TwoClientsConverge(t *testing.T) {
	wsURL := newTestServer(t, NewMockDatabase())

	m1 := newTestManager(t, wsURL, func() string { return "" })
	m2 := newTestManager(t, wsURL, m1.RoomID)

	if m2.RoomID() != m1.RoomID() {
		t.Fatalf("Clients ended up in different rooms: %s vs %s", m1.RoomID(), m2.RoomID())
	}

	m1.SetLocalState(models.PlayerState{X: 5, Y: 0, Direction: models.DirectionRight, IsMoving: true})

	// m2 通过快照看到 m1 的权威位置
	waitFor(t, 2*time.Second, func() bool {
		p, exists := m2.Remotes().Players()[m1.SessionID()]
		return exists && p.State.X == 5
	})

	// 渲染位置向权威位置收敛
	for i := 0; i < 120; i++ {
		m2.Remotes().Advance(1.0 / 60)
	}
	p := m2.Remotes().Players()[m1.SessionID()]
	if math.Abs(p.RenderX-5) > 0.001 {
		t.Errorf("Rendered position did not converge: %v", p.RenderX)
	}
	if p.State.Direction != models.DirectionRight || !p.State.IsMoving {
		t.Errorf("Replicated state incomplete: %+v", p.State)
	}

	// 主动离开后对端的视图里不再有这名玩家
	m1.Leave()
	waitFor(t, 2*time.Second, func() bool { return m2.Remotes().Count() == 0 })
}

func TestServer_LoginAndMiningCredit(t *testing.T) {
	db := NewMockDatabase()
	wsURL := newTestServer(t, db)

	m := newTestManager(t, wsURL, func() string { return "" })

	var balances []int64
	var balanceMutex sync.Mutex
	m.SetBalanceHandler(func(b int64) {
		balanceMutex.Lock()
		balances = append(balances, b)
		balanceMutex.Unlock()
	})

	initData := signedInitData(t, `{"id":42,"first_name":"Miner","username":"miner42"}`)
	if err := m.Login(initData); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return m.UserID() == 42 })

	if err := m.ReportMined(5, 1.5, -2); err != nil {
		t.Fatalf("ReportMined failed: %v", err)
	}

	// 入账落库并把权威余额推回客户端
	waitFor(t, 2*time.Second, func() bool { return db.balanceOf(42) == 5 })
	waitFor(t, 2*time.Second, func() bool {
		balanceMutex.Lock()
		defer balanceMutex.Unlock()
		return len(balances) >= 2 && balances[len(balances)-1] == 5
	})

	if db.recordCount() != 1 {
		t.Errorf("Expected one mining record, got %d", db.recordCount())
	}
}

func TestServer_MineRequiresLogin(t *testing.T) {
	db := NewMockDatabase()
	wsURL := newTestServer(t, db)

	m := newTestManager(t, wsURL, func() string { return "" })

	if err := m.ReportMined(5, 0, 0); err != nil {
		t.Fatalf("ReportMined send failed: %v", err)
	}

	// 匿名会话的入账被拒绝并带回错误，不碰数据库
	waitFor(t, 2*time.Second, func() bool { return m.Err() != "" })
	if db.recordCount() != 0 {
		t.Error("An anonymous mine reward must not be persisted")
	}
	if db.balanceOf(42) != 0 {
		t.Error("No balance should exist for an anonymous session")
	}
}

func TestServer_BadLoginRejected(t *testing.T) {
	db := NewMockDatabase()
	wsURL := newTestServer(t, db)

	m := newTestManager(t, wsURL, func() string { return "" })

	if err := m.Login("hash=bogus&user=%7B%22id%22%3A42%7D"); err != nil {
		t.Fatalf("Login send failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return m.Err() != "" })
	if m.UserID() != 0 {
		t.Error("A rejected login must not bind a user ID")
	}
	if m.Status() != gameclient.StatusConnected {
		t.Error("A rejected login should not disconnect the session")
	}
}
