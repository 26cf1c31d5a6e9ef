package chain

import (
	"crypto/rand"
	"fmt"
	"time"
)

// NewChainID creates a chain invocation ID in format YYYYMMDDTHHmmss-xxxxxxxx.
func NewChainID() string {
	ts := time.Now().Format("20060102T150405")
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return fmt.Sprintf("%s-%x", ts, suffix)
}
