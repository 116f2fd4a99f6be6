// Package oauth implements the Google re-authorization flow: a signed,
// time-boxed state token handed out via /google_login, the OAuth callback
// that exchanges the authorization code, and pluggable token storage.
package oauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StateTTL bounds how long an authorization link stays valid.
const StateTTL = 10 * time.Minute

// statePayload binds a state token to the chat that requested it.
type statePayload struct {
	ChatID   int64  `json:"chatId"`
	Nonce    string `json:"nonce"`
	IssuedAt int64  `json:"issuedAt"`
}

// signState encodes the payload and appends an HMAC-SHA256 signature, both
// base64url without padding, joined by a dot.
func signState(secret []byte, p statePayload) (string, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode state payload: %w", err)
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// verifyState checks the signature with a constant-time compare and rejects
// tokens older than StateTTL or issued in the future.
func verifyState(secret []byte, token string, now time.Time) (statePayload, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return statePayload{}, fmt.Errorf("malformed state token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return statePayload{}, fmt.Errorf("malformed state payload")
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return statePayload{}, fmt.Errorf("malformed state signature")
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return statePayload{}, fmt.Errorf("invalid state signature")
	}

	var p statePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return statePayload{}, fmt.Errorf("invalid state payload: %w", err)
	}
	issued := time.Unix(p.IssuedAt, 0)
	if issued.After(now) {
		return statePayload{}, fmt.Errorf("state token issued in the future")
	}
	if now.Sub(issued) > StateTTL {
		return statePayload{}, fmt.Errorf("state token expired")
	}
	return p, nil
}
