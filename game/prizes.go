// game/prizes.go
package game

import (
	"math"
	"math/rand"
)

// Prize 一块可开采的矿格
type Prize struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Progress int     `json:"progress"`
	Amount   int64   `json:"amount"`
}

// PrizeConfig 生成参数
type PrizeConfig struct {
	GridSize  int   // 地图边长（格）
	Count     int   // 目标矿格数
	MinAmount int64 // 单格最小奖励
	MaxAmount int64 // 单格最大奖励
}

// maxPlacementAttempts 单个矿格的随机落点重试上限
const maxPlacementAttempts = 100

// GeneratePrizes 在地图内随机放置矿格，彼此保持最小间距。
// Placement is best-effort: if the map is too crowded a prize is skipped
// rather than violating the spacing rule.
func GeneratePrizes(cfg PrizeConfig, rng *rand.Rand) []Prize {
	worldTileSize := float64(cfg.GridSize) / 10
	tilesNeeded := int(math.Ceil(float64(cfg.GridSize) / worldTileSize))
	maxCoord := tilesNeeded/2 - 2
	minCoord := -maxCoord

	minDistance := float64((maxCoord - minCoord) / 4)
	if minDistance < 4 {
		minDistance = 4
	}

	prizes := make([]Prize, 0, cfg.Count)

	farEnough := func(x, y float64) bool {
		for _, p := range prizes {
			if math.Hypot(p.X-x, p.Y-y) < minDistance {
				return false
			}
		}
		return true
	}

	for i := 0; i < cfg.Count; i++ {
		var x, y float64
		found := false
		for attempts := 0; attempts < maxPlacementAttempts && !found; attempts++ {
			x = float64(rng.Intn(maxCoord-minCoord+1) + minCoord)
			y = float64(rng.Intn(maxCoord-minCoord+1) + minCoord)
			found = farEnough(x, y)
		}
		if !found && len(prizes) > 0 {
			// 空间不足，放弃这一格
			continue
		}

		amount := cfg.MinAmount
		if cfg.MaxAmount > cfg.MinAmount {
			amount += rng.Int63n(cfg.MaxAmount - cfg.MinAmount + 1)
		}
		prizes = append(prizes, Prize{X: x, Y: y, Progress: 0, Amount: amount})
	}

	return prizes
}
