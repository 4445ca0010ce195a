package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenFormat  = errors.New("invalid token format")
	ErrTokenSig     = errors.New("invalid token signature")
	ErrTokenExp     = errors.New("token expired")
	ErrTokenDisplay = errors.New("display id mismatch")
)

// GenerateDisplayToken builds a token a kiosk page presents when it opens the
// display link.
// Format: base64url(display_id + "." + exp_unix + "." + hex(hmac_sha256(secret, display_id+"."+exp)))
func GenerateDisplayToken(secret, displayID string, expUnix int64) string {
	msg := displayID + "." + strconv.FormatInt(expUnix, 10)
	raw := msg + "." + hex.EncodeToString(sign(secret, msg))
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ValidateDisplayToken parses and validates the token and returns the
// embedded display id and expiry. An empty expectDisplayID accepts any id.
func ValidateDisplayToken(secret, token, expectDisplayID string, now time.Time, skewSeconds int) (string, int64, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", 0, ErrTokenFormat
	}
	// The display id may itself contain dots; exp and signature are the last two parts.
	parts := strings.Split(string(b), ".")
	if len(parts) < 3 {
		return "", 0, ErrTokenFormat
	}
	sigHex := parts[len(parts)-1]
	expStr := parts[len(parts)-2]
	id := strings.Join(parts[:len(parts)-2], ".")
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return "", 0, ErrTokenFormat
	}
	if expectDisplayID != "" && id != expectDisplayID {
		return "", 0, ErrTokenDisplay
	}
	got, err := hex.DecodeString(sigHex)
	if err != nil {
		return "", 0, ErrTokenFormat
	}
	// constant-time compare
	if !hmac.Equal(sign(secret, id+"."+expStr), got) {
		return "", 0, ErrTokenSig
	}
	if now.Unix() > exp+int64(skewSeconds) {
		return "", 0, ErrTokenExp
	}
	return id, exp, nil
}

func sign(secret, msg string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}
