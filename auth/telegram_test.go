package auth

import (
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"
)

const testBotToken = "12345:TEST_TOKEN"

// signedInitData builds an init data query string that passes verification.
func signedInitData(t *testing.T, userJSON string, authDate int64) string {
	t.Helper()

	values := url.Values{}
	if userJSON != "" {
		values.Set("user", userJSON)
	}
	values.Set("auth_date", fmt.Sprintf("%d", authDate))
	values.Set("query_id", "AAABBBCCC")
	values.Set("hash", Sign(values, testBotToken))
	return values.Encode()
}

func TestVerifyInitData_Valid(t *testing.T) {
	initData := signedInitData(t,
		`{"id":42,"first_name":"Miner","username":"miner42"}`,
		time.Now().Unix())

	user, err := VerifyInitData(initData, testBotToken, time.Hour)
	if err != nil {
		t.Fatalf("VerifyInitData failed on valid data: %v", err)
	}
	if user.ID != 42 {
		t.Errorf("Expected user ID 42, got %d", user.ID)
	}
	if user.Username != "miner42" {
		t.Errorf("Expected username miner42, got %q", user.Username)
	}
}

func TestVerifyInitData_Tampered(t *testing.T) {
	initData := signedInitData(t, `{"id":42,"first_name":"Miner"}`, time.Now().Unix())

	// Swap in a different user after signing.
	values, _ := url.ParseQuery(initData)
	values.Set("user", `{"id":999,"first_name":"Impostor"}`)

	if _, err := VerifyInitData(values.Encode(), testBotToken, 0); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("Expected ErrInvalidHash for tampered data, got %v", err)
	}
}

func TestVerifyInitData_WrongToken(t *testing.T) {
	initData := signedInitData(t, `{"id":42}`, time.Now().Unix())

	if _, err := VerifyInitData(initData, "other:TOKEN", 0); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("Expected ErrInvalidHash with a different bot token, got %v", err)
	}
}

func TestVerifyInitData_MissingHash(t *testing.T) {
	values := url.Values{}
	values.Set("user", `{"id":42}`)
	values.Set("auth_date", fmt.Sprintf("%d", time.Now().Unix()))

	if _, err := VerifyInitData(values.Encode(), testBotToken, 0); !errors.Is(err, ErrMissingHash) {
		t.Fatalf("Expected ErrMissingHash, got %v", err)
	}
}

func TestVerifyInitData_Expired(t *testing.T) {
	stale := time.Now().Add(-2 * time.Hour).Unix()
	initData := signedInitData(t, `{"id":42}`, stale)

	if _, err := VerifyInitData(initData, testBotToken, time.Hour); !errors.Is(err, ErrExpired) {
		t.Fatalf("Expected ErrExpired, got %v", err)
	}

	// 不限时效时放行
	if _, err := VerifyInitData(initData, testBotToken, 0); err != nil {
		t.Fatalf("Expected stale data to pass with maxAge disabled, got %v", err)
	}
}

func TestVerifyInitData_MissingUser(t *testing.T) {
	initData := signedInitData(t, "", time.Now().Unix())

	if _, err := VerifyInitData(initData, testBotToken, 0); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("Expected ErrMissingUser, got %v", err)
	}
}

func TestVerifyInitData_ZeroUserID(t *testing.T) {
	initData := signedInitData(t, `{"first_name":"NoID"}`, time.Now().Unix())

	if _, err := VerifyInitData(initData, testBotToken, 0); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("Expected ErrMissingUser for user without ID, got %v", err)
	}
}

func TestVerifyInitData_EmptyBotToken(t *testing.T) {
	if _, err := VerifyInitData("hash=abc", "", 0); !errors.Is(err, ErrNoBotToken) {
		t.Fatalf("Expected ErrNoBotToken, got %v", err)
	}
}
