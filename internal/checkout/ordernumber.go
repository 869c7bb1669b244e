package checkout

import (
	"crypto/rand"
	"fmt"
	"time"
)

const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newOrderNumber builds a human-readable order number:
//
//	<prefix>-<YYYYMMDD>-<6 random chars>
//
// The random suffix avoids leaking order volume; uniqueness is enforced by
// the database and retried by the caller.
func newOrderNumber(prefix string, now time.Time) (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate order number suffix: %w", err)
	}
	for i, b := range buf {
		buf[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102"), string(buf)), nil
}
