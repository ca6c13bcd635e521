package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// SessionSigner issues and verifies the signed session_id cookie. A cookie
// value is sig|token|account|name; the signature comes first so parsing
// never has to guess where a name containing '|' ends.
type SessionSigner struct {
	secret []byte
}

// NewSessionSigner returns a signer keyed with secret.
func NewSessionSigner(secret string) *SessionSigner {
	return &SessionSigner{secret: []byte(secret)}
}

// Issue builds a signed cookie value for an authenticated account.
func (s *SessionSigner) Issue(accountID int64, name string) string {
	payload := fmt.Sprintf("%s|%d|%s", uuid.NewString(), accountID, name)
	return s.sign(payload) + "|" + payload
}

// Verify checks a cookie value's signature and returns the account id and
// name it carries.
func (s *SessionSigner) Verify(value string) (accountID int64, name string, ok bool) {
	i := strings.IndexByte(value, '|')
	if i < 0 {
		return 0, "", false
	}
	sig, payload := value[:i], value[i+1:]
	if !hmac.Equal([]byte(sig), []byte(s.sign(payload))) {
		return 0, "", false
	}
	parts := strings.SplitN(payload, "|", 3)
	if len(parts) != 3 {
		return 0, "", false
	}
	accountID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return accountID, parts[2], true
}

func (s *SessionSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
