// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/tilemine/gameserver/models"
)

// Database 数据库接口。余额只能通过 IncrementBalance 原子变更。
type Database interface {
	UpsertUser(user *models.GormUser) error
	GetUser(userID int64) (*models.GormUser, error)
	IncrementBalance(userID int64, delta int64) (int64, error)
	SaveMiningRecord(record *models.GormMiningRecord) error
	GetUserStats(userID int64) (map[string]interface{}, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound      = fmt.Errorf("record not found")
	ErrInsufficientBalance = fmt.Errorf("insufficient balance")
)
