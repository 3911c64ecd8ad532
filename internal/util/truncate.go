package util

import "fmt"

// DefaultLogMaxLen is the default maximum length for truncated remote bodies (1KB)
const DefaultLogMaxLen = 1024

// TruncateLog truncates long strings before they are logged or echoed back in
// an error message. Google error bodies can be large HTML pages.
func TruncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}

// TruncateBytes is a convenience wrapper for TruncateLog that accepts []byte
// and uses DefaultLogMaxLen.
func TruncateBytes(b []byte) string {
	return TruncateLog(string(b), DefaultLogMaxLen)
}
