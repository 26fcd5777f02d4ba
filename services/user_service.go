// services/user_service.go
package services

import (
	"fmt"
	"time"

	"github.com/tilemine/gameserver/auth"
	"github.com/tilemine/gameserver/models"
	"github.com/tilemine/gameserver/persistence"
)

// UserService 身份与余额：登录换取身份，余额只走原子增量。
type UserService struct {
	db             persistence.Database
	botToken       string
	initDataMaxAge time.Duration
}

func NewUserService(db persistence.Database, botToken string, initDataMaxAge time.Duration) *UserService {
	return &UserService{
		db:             db,
		botToken:       botToken,
		initDataMaxAge: initDataMaxAge,
	}
}

// Login 校验 Telegram init data 并写入/刷新用户行。
// 校验失败不落库，调用方拿不到任何身份。
func (s *UserService) Login(initData string) (*models.GormUser, error) {
	tgUser, err := auth.VerifyInitData(initData, s.botToken, s.initDataMaxAge)
	if err != nil {
		return nil, fmt.Errorf("verify init data: %w", err)
	}

	user := &models.GormUser{
		ID:           tgUser.ID,
		FirstName:    tgUser.FirstName,
		LastName:     tgUser.LastName,
		Username:     tgUser.Username,
		LanguageCode: tgUser.LanguageCode,
		IsPremium:    tgUser.IsPremium,
		PhotoURL:     tgUser.PhotoURL,
	}
	if err := s.db.UpsertUser(user); err != nil {
		return nil, err
	}

	return s.db.GetUser(tgUser.ID)
}

// GetUser 查询用户
func (s *UserService) GetUser(userID int64) (*models.GormUser, error) {
	return s.db.GetUser(userID)
}

// CreditMining 挖通矿格后入账，返回新余额
func (s *UserService) CreditMining(userID int64, amount int64, x, y float64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("invalid mining amount %d", amount)
	}

	newBalance, err := s.db.IncrementBalance(userID, amount)
	if err != nil {
		return 0, err
	}

	if err := s.db.SaveMiningRecord(&models.GormMiningRecord{
		UserID: userID,
		Amount: amount,
		X:      x,
		Y:      y,
	}); err != nil {
		// 余额已入账，流水失败只记录不回滚
		return newBalance, fmt.Errorf("save mining record: %w", err)
	}

	return newBalance, nil
}

// AdjustBalance 管理侧的余额调整（可为负）
func (s *UserService) AdjustBalance(userID int64, delta int64) (int64, error) {
	return s.db.IncrementBalance(userID, delta)
}

// GetUserStats 挖矿统计
func (s *UserService) GetUserStats(userID int64) (map[string]interface{}, error) {
	return s.db.GetUserStats(userID)
}
