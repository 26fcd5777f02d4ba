// models/models.go
package models

// Direction 玩家朝向
type Direction string

const (
	DirectionDown  Direction = "down"
	DirectionUp    Direction = "up"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// IsValidDirection reports whether s is one of the four replicated directions.
func IsValidDirection(s string) bool {
	switch Direction(s) {
	case DirectionDown, DirectionUp, DirectionLeft, DirectionRight:
		return true
	}
	return false
}

// PlayerState 是会话的可复制状态，也是权威数据的唯一形状。
// Anything the client keeps locally (labels, render caches) must not live here.
type PlayerState struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Direction Direction `json:"direction"`
	IsMoving  bool      `json:"isMoving"`
}

// DefaultPlayerState returns the state a session holds right after joining.
func DefaultPlayerState() PlayerState {
	return PlayerState{X: 0, Y: 0, Direction: DirectionDown, IsMoving: false}
}

// RoomSnapshot 房间全量快照：sessionID -> 玩家状态
type RoomSnapshot struct {
	RoomID  string                 `json:"room_id"`
	Players map[string]PlayerState `json:"players"`
}

// TelegramUser 从已验证的 init data 解析出的用户身份
type TelegramUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}
