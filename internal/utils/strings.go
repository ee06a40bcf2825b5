package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"unsafe"
)

func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return *(*string)(unsafe.Pointer(&b))
}

// TokenID derives a stable short identifier from a bot token so cache
// keys partition per token without carrying the secret itself.
func TokenID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
