// gameclient/remoteview.go
package gameclient

import (
	"sync"

	"github.com/tilemine/gameserver/models"
)

// DefaultSmoothing 插值平滑系数 k，lerpFactor = clamp(k*dt, 0, 1)
const DefaultSmoothing = 8.0

// RemotePlayer 一名远端玩家的两份位置：服务器权威值与渲染值。
// RenderX/RenderY chase the authoritative position a little behind it so that
// discrete 100ms snapshots turn into continuous motion.
type RemotePlayer struct {
	State   models.PlayerState
	RenderX float64
	RenderY float64
}

// RemoteView 客户端对房间内其他玩家的本地视图。
// The local session never appears here; its position is input-driven and is
// what gets sent upstream as the intent.
type RemoteView struct {
	smoothing float64
	players   map[string]*RemotePlayer
	mutex     sync.Mutex
}

func NewRemoteView(smoothing float64) *RemoteView {
	if smoothing <= 0 {
		smoothing = DefaultSmoothing
	}
	return &RemoteView{
		smoothing: smoothing,
		players:   make(map[string]*RemotePlayer),
	}
}

// ApplySnapshot 用一帧权威快照更新视图。
// New sessions snap their rendered position onto the authoritative one;
// sessions missing from the snapshot are dropped.
func (v *RemoteView) ApplySnapshot(players map[string]models.PlayerState, selfID string) {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	for id, st := range players {
		if id == selfID {
			continue
		}
		if p, exists := v.players[id]; exists {
			p.State = st
			continue
		}
		v.players[id] = &RemotePlayer{State: st, RenderX: st.X, RenderY: st.Y}
	}

	for id := range v.players {
		if _, present := players[id]; !present {
			delete(v.players, id)
		}
	}
}

// Remove 响应房间级的离开通知
func (v *RemoteView) Remove(sessionID string) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	delete(v.players, sessionID)
}

// Reset 连接断开后清空视图
func (v *RemoteView) Reset() {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.players = make(map[string]*RemotePlayer)
}

// Advance 推进一帧插值，dt 为距上一帧的秒数。
// The factor clamps at 1 so a long frame snaps instead of overshooting, and a
// player already at rest on its target stays put.
func (v *RemoteView) Advance(dt float64) {
	if dt <= 0 {
		return
	}

	factor := v.smoothing * dt
	if factor > 1 {
		factor = 1
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()

	for _, p := range v.players {
		p.RenderX += (p.State.X - p.RenderX) * factor
		p.RenderY += (p.State.Y - p.RenderY) * factor
	}
}

// Players returns a copy of the current view keyed by session ID.
func (v *RemoteView) Players() map[string]RemotePlayer {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	out := make(map[string]RemotePlayer, len(v.players))
	for id, p := range v.players {
		out[id] = *p
	}
	return out
}

// Count 当前已知的远端玩家数
func (v *RemoteView) Count() int {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return len(v.players)
}
