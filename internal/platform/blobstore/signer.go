package blobstore

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenExpired = errors.New("signed URL token has expired")
	ErrTokenInvalid = errors.New("signed URL token is invalid")
)

// URLSigner issues and verifies HMAC tokens that grant time-limited access to
// a single resource. Tokens are stateless: the expiry is embedded in the token
// and covered by the signature, so nothing needs to be stored server-side.
type URLSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewURLSigner(secret []byte, ttl time.Duration) *URLSigner {
	return &URLSigner{secret: secret, ttl: ttl}
}

// Sign produces a token granting access to resourceID until the signer's TTL
// elapses. The token format is "<unix-expiry>.<base64-hmac>".
func (s *URLSigner) Sign(resourceID string) string {
	expiry := time.Now().Add(s.ttl).Unix()
	sig := s.signature(resourceID, expiry)
	return fmt.Sprintf("%d.%s", expiry, sig)
}

// Verify checks a token against a resource ID. It returns ErrTokenExpired for
// well-formed tokens past their expiry and ErrTokenInvalid for everything else.
func (s *URLSigner) Verify(resourceID, token string) error {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return ErrTokenInvalid
	}

	expiry, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrTokenInvalid
	}

	expected := s.signature(resourceID, expiry)
	if !hmac.Equal([]byte(expected), []byte(parts[1])) {
		return ErrTokenInvalid
	}

	if time.Now().Unix() > expiry {
		return ErrTokenExpired
	}
	return nil
}

func (s *URLSigner) signature(resourceID string, expiry int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%d", resourceID, expiry)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
