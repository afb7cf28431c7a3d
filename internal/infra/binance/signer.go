package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Signer produces the HMAC-SHA256 query signatures required by the signed
// REST endpoints.
type Signer struct {
	apiKey    string
	secretKey string
}

func NewSigner(apiKey, secretKey string) *Signer {
	return &Signer{apiKey: apiKey, secretKey: secretKey}
}

// APIKey returns the value for the X-MBX-APIKEY header.
func (s *Signer) APIKey() string {
	return s.apiKey
}

// SignQuery appends the current millisecond timestamp and the hex-encoded
// signature to the query string.
func (s *Signer) SignQuery(query string) string {
	timestamp := fmt.Sprintf("timestamp=%d", time.Now().UnixMilli())
	if query == "" {
		query = timestamp
	} else {
		query = query + "&" + timestamp
	}
	return query + "&signature=" + s.signature(query)
}

func (s *Signer) signature(payload string) string {
	mac := hmac.New(sha256.New, []byte(s.secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
