// Package fingerprint derives a stable per-browser device identifier from
// client-reported environment signals.
//
// The identifier is a best-effort heuristic, not cryptographic proof of device
// identity: a motivated client can spoof every signal. It is stable enough for
// device binding because identical signal sets always produce the identical
// digest.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// unknown substitutes any signal the client could not provide, so partial
// signal sets still fingerprint deterministically instead of failing.
const unknown = "unknown"

// Signals carries the raw client environment characteristics. Zero values are
// treated as unavailable and replaced with a placeholder.
type Signals struct {
	UserAgent           string
	Platform            string
	Language            string
	Vendor              string
	TimezoneOffsetMin   *int
	HardwareConcurrency int
	ScreenWidth         int
	ScreenHeight        int
	ColorDepth          int
	TouchSupport        *bool
	CookiesEnabled      *bool
	CanvasHash          string
	WebGLVendor         string
	WebGLRenderer       string
}

// Compute concatenates the signals in a fixed order and returns the
// hex-encoded SHA-256 digest. The field order is part of the identifier's
// stability contract and must not change.
func Compute(s Signals) string {
	parts := []string{
		str(s.UserAgent),
		str(s.Platform),
		str(s.Language),
		str(s.Vendor),
		intPtr(s.TimezoneOffsetMin),
		num(s.HardwareConcurrency),
		num(s.ScreenWidth),
		num(s.ScreenHeight),
		num(s.ColorDepth),
		boolPtr(s.TouchSupport),
		boolPtr(s.CookiesEnabled),
		str(s.CanvasHash),
		str(s.WebGLVendor),
		str(s.WebGLRenderer),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func str(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

func num(n int) string {
	if n <= 0 {
		return unknown
	}
	return strconv.Itoa(n)
}

func intPtr(p *int) string {
	if p == nil {
		return unknown
	}
	return strconv.Itoa(*p)
}

func boolPtr(p *bool) string {
	if p == nil {
		return unknown
	}
	return strconv.FormatBool(*p)
}
