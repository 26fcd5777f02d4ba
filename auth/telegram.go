// auth/telegram.go
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tilemine/gameserver/models"
)

var (
	ErrMissingHash = errors.New("init data has no hash")
	ErrInvalidHash = errors.New("init data hash mismatch")
	ErrExpired     = errors.New("init data expired")
	ErrMissingUser = errors.New("init data has no user")
	ErrMalformed   = errors.New("init data is malformed")
	ErrNoBotToken  = errors.New("bot token is empty")
)

// secretKey = HMAC_SHA256(key="WebAppData", message=botToken)，
// 这是 Telegram Web App 规定的校验链。
func secretKey(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}

// dataCheckString 去掉 hash 字段后按 key 排序拼成 "k=v\n..." 串
func dataCheckString(values url.Values) string {
	pairs := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		pairs = append(pairs, key+"="+values.Get(key))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "\n")
}

// Sign computes the hash Telegram would attach to the given fields.
// 服务端测试与本地模拟登录都用它来生成可通过校验的 init data。
func Sign(values url.Values, botToken string) string {
	mac := hmac.New(sha256.New, secretKey(botToken))
	mac.Write([]byte(dataCheckString(values)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyInitData 校验 Telegram Web App init data 并解析出用户身份。
// maxAge <= 0 时跳过时效检查。
func VerifyInitData(initData, botToken string, maxAge time.Duration) (*models.TelegramUser, error) {
	if botToken == "" {
		return nil, ErrNoBotToken
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	gotHash := values.Get("hash")
	if gotHash == "" {
		return nil, ErrMissingHash
	}

	expected := Sign(values, botToken)
	if !hmac.Equal([]byte(expected), []byte(gotHash)) {
		return nil, ErrInvalidHash
	}

	if maxAge > 0 {
		authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad auth_date", ErrMalformed)
		}
		if time.Since(time.Unix(authDate, 0)) > maxAge {
			return nil, ErrExpired
		}
	}

	rawUser := values.Get("user")
	if rawUser == "" {
		return nil, ErrMissingUser
	}

	var user models.TelegramUser
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return nil, fmt.Errorf("%w: bad user payload", ErrMalformed)
	}
	if user.ID == 0 {
		return nil, ErrMissingUser
	}

	return &user, nil
}
