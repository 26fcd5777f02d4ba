// game/world.go
package game

import (
	"math"
	"sync"

	"github.com/tilemine/gameserver/models"
)

// 挖矿进度参数
const (
	DefaultMiningIncrement   = 10
	DefaultMaxMiningProgress = 100
	// DefaultInteractionDistance 距矿格多近才能开采（格）
	DefaultInteractionDistance = 2.0
)

// WorldConfig 本地世界参数
type WorldConfig struct {
	Width               float64
	Height              float64
	MiningIncrement     int
	MaxMiningProgress   int
	InteractionDistance float64
}

func (c *WorldConfig) applyDefaults() {
	if c.Width <= 0 {
		c.Width = 100
	}
	if c.Height <= 0 {
		c.Height = 100
	}
	if c.MiningIncrement <= 0 {
		c.MiningIncrement = DefaultMiningIncrement
	}
	if c.MaxMiningProgress <= 0 {
		c.MaxMiningProgress = DefaultMaxMiningProgress
	}
	if c.InteractionDistance <= 0 {
		c.InteractionDistance = DefaultInteractionDistance
	}
}

// MineResult 一次开采动作的结果
type MineResult struct {
	Mined      bool  // 本次是否推进了进度
	Completed  bool  // 本次是否挖通了矿格
	Amount     int64 // 挖通时的奖励
	PrizeIndex int
}

// World 客户端的本地世界状态：自身头像、矿格与余额展示。
// 网络核心不读写这里的内容；所有修改都走显式的方法，没有裸全局变量。
type World struct {
	cfg WorldConfig

	player      models.PlayerState
	prizes      []Prize
	minedCount  int
	balance     int64
	showSuccess bool

	// onMined 挖通矿格时回调（例如提交余额入账），可以为 nil
	onMined func(p Prize)

	mutex sync.Mutex
}

func NewWorld(cfg WorldConfig) *World {
	cfg.applyDefaults()
	return &World{
		cfg:    cfg,
		player: models.DefaultPlayerState(),
	}
}

// SetMinedCallback 注册挖通回调
func (w *World) SetMinedCallback(fn func(p Prize)) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.onMined = fn
}

// UpdatePlayerPosition 覆写本端头像位置
func (w *World) UpdatePlayerPosition(x, y float64) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.player.X = x
	w.player.Y = y
}

// Step 按朝向移动一步并裁剪到地图边界，返回移动后的状态。
// 这是输入层（WASD/摇杆）换算后的落点，不经过服务器校验。
func (w *World) Step(dir models.Direction, speed float64) models.PlayerState {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	switch dir {
	case models.DirectionUp:
		w.player.Y += speed
	case models.DirectionDown:
		w.player.Y -= speed
	case models.DirectionLeft:
		w.player.X -= speed
	case models.DirectionRight:
		w.player.X += speed
	}

	halfW := w.cfg.Width / 2
	halfH := w.cfg.Height / 2
	w.player.X = clamp(w.player.X, -halfW, halfW)
	w.player.Y = clamp(w.player.Y, -halfH, halfH)

	w.player.Direction = dir
	w.player.IsMoving = true
	return w.player
}

// Idle 标记本端头像停止移动
func (w *World) Idle() models.PlayerState {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.player.IsMoving = false
	return w.player
}

// Player returns the local avatar's current state.
func (w *World) Player() models.PlayerState {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.player
}

// UpdatePrizeLocations 整体替换矿格列表
func (w *World) UpdatePrizeLocations(prizes []Prize) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.prizes = append([]Prize(nil), prizes...)
}

// Prizes returns a copy of the current prize list.
func (w *World) Prizes() []Prize {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return append([]Prize(nil), w.prizes...)
}

// NearestPrize 找到距头像最近的未挖完矿格，没有在交互距离内时返回 -1。
func (w *World) NearestPrize() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.nearestPrizeLocked()
}

func (w *World) nearestPrizeLocked() int {
	nearest := -1
	nearestDist := w.cfg.InteractionDistance
	for i, p := range w.prizes {
		if p.Progress >= w.cfg.MaxMiningProgress {
			continue
		}
		d := math.Hypot(p.X-w.player.X, p.Y-w.player.Y)
		if d <= nearestDist {
			nearest = i
			nearestDist = d
		}
	}
	return nearest
}

// Mine 对最近的矿格推进一次挖矿进度。
// 挖通时累加余额、计数并触发回调；进度封顶在 MaxMiningProgress。
func (w *World) Mine() MineResult {
	w.mutex.Lock()

	idx := w.nearestPrizeLocked()
	if idx < 0 {
		w.mutex.Unlock()
		return MineResult{PrizeIndex: -1}
	}

	p := &w.prizes[idx]
	wasComplete := p.Progress >= w.cfg.MaxMiningProgress
	p.Progress += w.cfg.MiningIncrement
	if p.Progress > w.cfg.MaxMiningProgress {
		p.Progress = w.cfg.MaxMiningProgress
	}

	result := MineResult{Mined: true, PrizeIndex: idx}
	var callback func(Prize)
	var minedPrize Prize

	if !wasComplete && p.Progress >= w.cfg.MaxMiningProgress {
		result.Completed = true
		result.Amount = p.Amount
		w.minedCount++
		w.balance += p.Amount
		w.showSuccess = true
		callback = w.onMined
		minedPrize = *p
	}
	w.mutex.Unlock()

	if callback != nil {
		callback(minedPrize)
	}
	return result
}

// DismissSuccess 关闭挖矿成功提示
func (w *World) DismissSuccess() {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.showSuccess = false
}

// ShowingSuccess 是否正在展示成功提示
func (w *World) ShowingSuccess() bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.showSuccess
}

// Balance 本地余额展示值
func (w *World) Balance() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.balance
}

// SetBalance 用服务器权威余额覆盖本地展示值
func (w *World) SetBalance(balance int64) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.balance = balance
}

// MinedCount 已挖通的矿格数
func (w *World) MinedCount() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.minedCount
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
