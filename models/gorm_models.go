// models/gorm_models.go
package models

import (
	"time"
)

// GormUser 玩家账号模型，主键为 Telegram 用户ID
type GormUser struct {
	ID           int64  `gorm:"primaryKey"`
	FirstName    string `gorm:"not null"`
	LastName     string
	Username     string `gorm:"index"`
	LanguageCode string
	IsPremium    bool   `gorm:"default:false"`
	PhotoURL     string
	Balance      int64 `gorm:"not null;default:0"` // 余额，单位为最小货币单位
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GormMiningRecord 挖矿结算记录
type GormMiningRecord struct {
	ID        uint  `gorm:"primaryKey"`
	UserID    int64 `gorm:"index;not null"`
	Amount    int64 `gorm:"not null"`
	X         float64
	Y         float64
	CreatedAt time.Time
}
