package exam

import (
	"crypto/rand"
	"strings"
)

// MinAccessKeyLen is the shortest key a lookup will be attempted for.
const MinAccessKeyLen = 6

// Keys are human-typed, so skip characters that read ambiguously.
const accessKeyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const accessKeyLen = 8

// NormalizeAccessKey uppercases and trims a typed key. Returns "" when the
// key is too short to look up.
func NormalizeAccessKey(key string) string {
	key = strings.ToUpper(strings.TrimSpace(key))
	if len(key) < MinAccessKeyLen {
		return ""
	}
	return key
}

// NewAccessKey generates a fresh exam access key.
func NewAccessKey() string {
	buf := make([]byte, accessKeyLen)
	if _, err := rand.Read(buf); err != nil {
		panic("accesskey: " + err.Error()) // crypto/rand never fails on supported platforms
	}
	out := make([]byte, accessKeyLen)
	for i, b := range buf {
		out[i] = accessKeyAlphabet[int(b)%len(accessKeyAlphabet)]
	}
	return string(out)
}
