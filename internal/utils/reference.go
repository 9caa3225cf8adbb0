package utils

import (
	"crypto/rand"
	"fmt"
	"time"
)

const referenceCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateReference generates a unique, human-traceable reference for
// transactions
func GenerateReference(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s%d", prefix, time.Now().UnixNano())
	}
	for i, b := range buf {
		buf[i] = referenceCharset[int(b)%len(referenceCharset)]
	}

	return fmt.Sprintf("%s%s%s", prefix, time.Now().Format("20060102"), string(buf))
}
