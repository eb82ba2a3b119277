package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Parameters excluded from the signature base. The gateway signs every other
// field it sends, so unknown parameters must still be hashed.
const (
	ParamSecureHash     = "vnp_SecureHash"
	ParamSecureHashType = "vnp_SecureHashType"
)

// BuildSignatureBase joins all vnp_* parameters except the hash itself as
// key=value pairs, sorted by key, URL-encoded, separated by '&'.
func BuildSignatureBase(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+url.QueryEscape(params[k]))
	}
	return strings.Join(pairs, "&")
}

// Sign computes the hex HMAC-SHA512 of the signature base with the shared secret.
func Sign(base, secret string) string {
	h := hmac.New(sha512.New, []byte(secret))
	h.Write([]byte(base))
	return hex.EncodeToString(h.Sum(nil))
}

// HashParams signs the full parameter set.
func HashParams(params map[string]string, secret string) string {
	return Sign(BuildSignatureBase(params), secret)
}

// VerifySecureHash recomputes the checksum over the parameter set and compares
// it with the received vnp_SecureHash in constant time.
func VerifySecureHash(params map[string]string, secret string) bool {
	if secret == "" {
		return false
	}
	received := strings.ToLower(strings.TrimSpace(params[ParamSecureHash]))
	if received == "" {
		return false
	}
	expected := HashParams(params, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}
