package usecases

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"strings"
)

// Algorithms accepted for webhook signatures. SHA-1 stays for legacy
// X-Hub-Signature headers still emitted by some Meta app configurations.
var signatureAlgorithms = map[string]func() hash.Hash{
	"sha256": sha256.New,
	"sha1":   sha1.New,
}

// VerifySignature checks a provider signature header against the exact raw
// request bytes. The header may hold several comma-separated
// "algorithm=hexdigest" candidates; the first constant-time match wins.
// Malformed segments and unknown algorithms are skipped, never errored.
// Fails closed on missing header, empty body or empty secret.
func VerifySignature(rawBody []byte, signatureHeader, secret string) bool {
	if len(rawBody) == 0 || signatureHeader == "" || secret == "" {
		return false
	}

	for _, candidate := range strings.Split(signatureHeader, ",") {
		algo, digestHex, ok := strings.Cut(strings.TrimSpace(candidate), "=")
		if !ok {
			continue
		}
		newHash, ok := signatureAlgorithms[strings.ToLower(strings.TrimSpace(algo))]
		if !ok {
			continue
		}
		digest, err := hex.DecodeString(strings.TrimSpace(digestHex))
		if err != nil {
			continue
		}

		mac := hmac.New(newHash, []byte(secret))
		mac.Write(rawBody)
		if subtle.ConstantTimeCompare(digest, mac.Sum(nil)) == 1 {
			return true
		}
	}
	return false
}
