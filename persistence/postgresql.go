// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/tilemine/gameserver/models"
)

// PostgreSQL 基于 database/sql 的实现，不依赖 ORM
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS gorm_users (
            id BIGINT PRIMARY KEY,
            first_name TEXT NOT NULL,
            last_name TEXT,
            username TEXT,
            language_code TEXT,
            is_premium BOOLEAN DEFAULT FALSE,
            photo_url TEXT,
            balance BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS gorm_mining_records (
            id SERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL REFERENCES gorm_users(id),
            amount BIGINT NOT NULL,
            x DOUBLE PRECISION,
            y DOUBLE PRECISION,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_mining_records_user_id
        ON gorm_mining_records(user_id)`)
	return err
}

// UpsertUser 创建或刷新用户资料
func (p *PostgreSQL) UpsertUser(user *models.GormUser) error {
	_, err := p.db.Exec(`
        INSERT INTO gorm_users (id, first_name, last_name, username, language_code, is_premium, photo_url)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE SET
            first_name = EXCLUDED.first_name,
            last_name = EXCLUDED.last_name,
            username = EXCLUDED.username,
            language_code = EXCLUDED.language_code,
            is_premium = EXCLUDED.is_premium,
            photo_url = EXCLUDED.photo_url,
            updated_at = CURRENT_TIMESTAMP`,
		user.ID, user.FirstName, user.LastName, user.Username,
		user.LanguageCode, user.IsPremium, user.PhotoURL)
	return err
}

// GetUser 按用户ID查询
func (p *PostgreSQL) GetUser(userID int64) (*models.GormUser, error) {
	var user models.GormUser
	err := p.db.QueryRow(`
        SELECT id, first_name, COALESCE(last_name, ''), COALESCE(username, ''),
               COALESCE(language_code, ''), is_premium, COALESCE(photo_url, ''),
               balance, created_at, updated_at
        FROM gorm_users WHERE id = $1`, userID).
		Scan(&user.ID, &user.FirstName, &user.LastName, &user.Username,
			&user.LanguageCode, &user.IsPremium, &user.PhotoURL,
			&user.Balance, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// IncrementBalance 原子调整余额并返回新值。
// WHERE 子句保证余额不会被扣成负数。
func (p *PostgreSQL) IncrementBalance(userID int64, delta int64) (int64, error) {
	var newBalance int64
	err := p.db.QueryRow(`
        UPDATE gorm_users
        SET balance = balance + $1, updated_at = CURRENT_TIMESTAMP
        WHERE id = $2 AND balance + $1 >= 0
        RETURNING balance`, delta, userID).Scan(&newBalance)

	if errors.Is(err, sql.ErrNoRows) {
		// 没有命中行：要么用户不存在，要么余额不足
		if _, getErr := p.GetUser(userID); getErr != nil {
			return 0, getErr
		}
		return 0, ErrInsufficientBalance
	}
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// SaveMiningRecord 保存一条挖矿结算记录
func (p *PostgreSQL) SaveMiningRecord(record *models.GormMiningRecord) error {
	_, err := p.db.Exec(`
        INSERT INTO gorm_mining_records (user_id, amount, x, y)
        VALUES ($1, $2, $3, $4)`,
		record.UserID, record.Amount, record.X, record.Y)
	return err
}

// GetUserStats 汇总用户的挖矿统计
func (p *PostgreSQL) GetUserStats(userID int64) (map[string]interface{}, error) {
	var totalMined, totalAmount int64
	err := p.db.QueryRow(`
        SELECT COUNT(*), COALESCE(SUM(amount), 0)
        FROM gorm_mining_records WHERE user_id = $1`, userID).
		Scan(&totalMined, &totalAmount)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"total_mined":  totalMined,
		"total_amount": totalAmount,
	}, nil
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
