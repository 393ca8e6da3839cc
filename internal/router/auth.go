package router

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"net/http"
	"os"
	"strings"

	"github.com/alertbridge/relay/internal/ruleset"
)

// verifyHMAC implements spec.md §4.3's HMAC verification stage: resolve
// the secret, parse the signature header (optionally prefixed
// "algo="), compute the digest over the exact raw body bytes, and
// compare in constant time.
func verifyHMAC(h ruleset.Hmac, headerValue string, rawBody []byte) error {
	secret := os.Getenv(h.SecretEnv)
	if secret == "" {
		return newError(KindAuth, "missing hmac secret", nil)
	}

	sig := headerValue
	if idx := strings.IndexByte(sig, '='); idx >= 0 {
		sig = sig[idx+1:]
	}
	if sig == "" {
		return newError(KindAuth, "missing signature header", nil)
	}

	newHash, err := hasherFor(h.AlgorithmOrDefault())
	if err != nil {
		return newError(KindAuth, "unsupported hmac algorithm", err)
	}
	mac := hmac.New(newHash, []byte(secret))
	mac.Write(rawBody)
	want := hex.EncodeToString(mac.Sum(nil))

	if !constantTimeEqual(want, sig) {
		return newError(KindAuth, "hmac signature mismatch", nil)
	}
	return nil
}

func hasherFor(algorithm string) (func() hash.Hash, error) {
	switch strings.ToLower(algorithm) {
	case "sha256", "":
		return sha256.New, nil
	case "sha1":
		return sha1.New, nil
	default:
		return nil, fmt.Errorf("algorithm %q not supported", algorithm)
	}
}

// constantTimeEqual compares two strings using a fixed-time primitive
// (spec.md T6). A length mismatch is checked first since
// subtle.ConstantTimeCompare requires equal-length slices; this leaks
// only the length, never the content, of the secret being compared.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// verifyAPIKey implements spec.md §4.3's API-key validation stage. A
// key may arrive via X-API-Key or an "Authorization: Bearer <key>"
// header. When required is false a missing key passes, but a present,
// invalid key is still rejected.
func verifyAPIKey(keys *ruleset.APIKeys, r *http.Request) error {
	presented, present := presentedAPIKey(r)
	required := keys != nil && keys.Required

	if !present {
		if required {
			return newError(KindAuth, "missing api key", nil)
		}
		return nil
	}
	if keys == nil {
		return newError(KindAuth, "no api keys configured", nil)
	}
	for _, k := range keys.Keys {
		if constantTimeEqual(k.Key, presented) {
			return nil
		}
	}
	return newError(KindAuth, "invalid api key", nil)
}

func presentedAPIKey(r *http.Request) (string, bool) {
	if v := r.Header.Get("X-API-Key"); v != "" {
		return v, true
	}
	if v := r.Header.Get("Authorization"); v != "" {
		const prefix = "bearer "
		if len(v) > len(prefix) && strings.EqualFold(v[:len(prefix)], prefix) {
			return v[len(prefix):], true
		}
	}
	return "", false
}
