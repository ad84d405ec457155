// Package steamguard generates the platform's time-based log-on codes.
package steamguard

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	codeAlphabet = "23456789BCDFGHJKMNPQRTVWXY"
	codeLength   = 5
	period       = 30 // seconds per code
)

// GenerateAuthCode returns the 5-character code for sharedSecret at time t.
// sharedSecret is the base64 value from the account's authenticator file.
func GenerateAuthCode(sharedSecret string, t time.Time) (string, error) {
	key, err := base64.StdEncoding.DecodeString(sharedSecret)
	if err != nil {
		return "", fmt.Errorf("decode shared secret: %w", err)
	}

	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], uint64(t.Unix()/period))

	mac := hmac.New(sha1.New, key)
	mac.Write(counter[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	full := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	code := make([]byte, codeLength)
	for i := range code {
		code[i] = codeAlphabet[full%uint32(len(codeAlphabet))]
		full /= uint32(len(codeAlphabet))
	}
	return string(code), nil
}

// ValidSecret reports whether secret is non-empty standard base64.
func ValidSecret(secret string) bool {
	if secret == "" {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(secret)
	return err == nil
}
