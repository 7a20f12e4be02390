// Package signer computes the request signature expected by the
// translator token endpoint. The scheme mimics a known mobile client:
// an HMAC-SHA256 over the percent-encoded URL, a lowercased RFC-1123
// style date, and a random nonce, keyed by a fixed shared secret.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AppID is the literal client identifier the remote service expects.
const AppID = "MSTranslatorAndroidApp"

// decodeKey is a protocol compatibility constant, not secret material:
// the remote service validates signatures against this exact key.
const decodeKey = "oik6PdDdMnOXemTbwvMn9de/h9lFnfBaCWbGMMZqqoSaQaqUOqjVGm5NqsmjcBI1x+sS9ugjB55HEJWRiFXYFw=="

const dateLayout = "Mon, 02 Jan 2006 15:04:05"

// Sign produces a fresh signature for targetURL. Every call draws a new
// nonce and timestamp; signatures must never be reused across requests,
// the remote service rejects replays.
func Sign(targetURL string) string {
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	date := formatDate(time.Now().UTC())
	return signWith(targetURL, date, nonce)
}

func signWith(targetURL, date, nonce string) string {
	mac := computeMAC(targetURL, date, nonce)
	return AppID + "::" + mac + "::" + date + "::" + nonce
}

func computeMAC(targetURL, date, nonce string) string {
	bare := targetURL
	if i := strings.Index(targetURL, "://"); i >= 0 {
		bare = targetURL[i+3:]
	}
	payload := strings.ToLower(AppID + percentEncode(bare) + date + nonce)

	key, err := base64.StdEncoding.DecodeString(decodeKey)
	if err != nil {
		// The key is a compile-time constant; this cannot happen.
		panic("signer: invalid embedded key: " + err.Error())
	}
	h := hmac.New(sha256.New, key)
	h.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func formatDate(t time.Time) string {
	return strings.ToLower(t.Format(dateLayout)) + "gmt"
}

const upperhex = "0123456789ABCDEF"

// percentEncode escapes every byte outside the RFC 3986 unreserved set.
// net/url escapers leave sub-delimiters alone, which the remote signature
// check does not tolerate.
func percentEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') ||
			c == '-' || c == '_' || c == '.' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}
