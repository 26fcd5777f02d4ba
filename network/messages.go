// network/messages.go
package network

import (
	"encoding/json"

	"github.com/tilemine/gameserver/models"
)

// JoinRoomRequest 加入房间。RoomID 为空时表示 join-or-create。
type JoinRoomRequest struct {
	RoomID string `json:"room_id,omitempty"`
}

type JoinAck struct {
	SessionID string `json:"session_id"`
	RoomID    string `json:"room_id"`
}

type JoinRejected struct {
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

type SessionLeft struct {
	SessionID string `json:"session_id"`
}

// LoginRequest 携带 Telegram Web App init data，服务端校验通过后
// 把用户身份绑定到当前会话。
type LoginRequest struct {
	InitData string `json:"init_data"`
}

type LoginAck struct {
	UserID  int64 `json:"user_id"`
	Balance int64 `json:"balance"`
}

type LoginRejected struct {
	Message string `json:"message"`
}

// MineReward 挖通一块矿格后的入账请求，需要已登录的会话
type MineReward struct {
	Amount int64   `json:"amount"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// BalanceUpdate 服务器推送的权威余额
type BalanceUpdate struct {
	Balance int64 `json:"balance"`
}

type RoomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// PositionIntent 是 updatePosition 消息经过逐字段校验后的形态。
// 指针为 nil 表示该字段缺失或类型不符，对应字段保持不变。
type PositionIntent struct {
	X         *float64
	Y         *float64
	Direction *models.Direction
	IsMoving  *bool
}

// DecodePositionIntent validates an updatePosition payload field by field.
// Older client builds omit fields or send the wrong types; a bad field is
// dropped instead of failing the whole message.
func DecodePositionIntent(data []byte) PositionIntent {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return PositionIntent{}
	}

	var intent PositionIntent

	if x, ok := raw["x"].(float64); ok {
		intent.X = &x
	}
	if y, ok := raw["y"].(float64); ok {
		intent.Y = &y
	}
	if dir, ok := raw["direction"].(string); ok && models.IsValidDirection(dir) {
		d := models.Direction(dir)
		intent.Direction = &d
	}
	if moving, ok := raw["isMoving"].(bool); ok {
		intent.IsMoving = &moving
	}

	return intent
}

// EncodePositionIntent 客户端侧编码自身意图（全量字段，每次都发）
func EncodePositionIntent(state models.PlayerState) ([]byte, error) {
	return json.Marshal(map[string]any{
		"x":         state.X,
		"y":         state.Y,
		"direction": string(state.Direction),
		"isMoving":  state.IsMoving,
	})
}
