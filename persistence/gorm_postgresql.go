// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tilemine/gameserver/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.GormUser{}, &models.GormMiningRecord{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// UpsertUser 按 Telegram 用户ID 创建或刷新资料，余额不在此处变更
func (p *GormPostgreSQL) UpsertUser(user *models.GormUser) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		var existing models.GormUser
		err := tx.First(&existing, "id = ?", user.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(user).Error
		}
		if err != nil {
			return err
		}

		return tx.Model(&existing).Updates(map[string]interface{}{
			"first_name":    user.FirstName,
			"last_name":     user.LastName,
			"username":      user.Username,
			"language_code": user.LanguageCode,
			"is_premium":    user.IsPremium,
			"photo_url":     user.PhotoURL,
		}).Error
	})
}

// GetUser 按用户ID查询
func (p *GormPostgreSQL) GetUser(userID int64) (*models.GormUser, error) {
	var user models.GormUser
	if err := p.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

// IncrementBalance 原子调整余额并返回新值，扣成负数会被拒绝
func (p *GormPostgreSQL) IncrementBalance(userID int64, delta int64) (int64, error) {
	var newBalance int64

	err := p.db.Transaction(func(tx *gorm.DB) error {
		var user models.GormUser
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecordNotFound
			}
			return err
		}

		if delta < 0 && user.Balance+delta < 0 {
			return ErrInsufficientBalance
		}

		if err := tx.Model(&user).
			Update("balance", gorm.Expr("balance + ?", delta)).Error; err != nil {
			return err
		}

		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return err
		}
		newBalance = user.Balance
		return nil
	})

	return newBalance, err
}

// SaveMiningRecord 保存一条挖矿结算记录
func (p *GormPostgreSQL) SaveMiningRecord(record *models.GormMiningRecord) error {
	return p.db.Create(record).Error
}

// GetUserStats 汇总用户的挖矿统计
func (p *GormPostgreSQL) GetUserStats(userID int64) (map[string]interface{}, error) {
	var stats struct {
		TotalMined  int64
		TotalAmount int64
	}

	err := p.db.Raw(
		`SELECT COUNT(*) AS total_mined, COALESCE(SUM(amount), 0) AS total_amount
         FROM gorm_mining_records WHERE user_id = ?`,
		userID,
	).Scan(&stats).Error
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"total_mined":  stats.TotalMined,
		"total_amount": stats.TotalAmount,
	}, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
