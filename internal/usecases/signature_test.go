package usecases

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signSHA256(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func signSHA1(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature_RoundTrip(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account","entry":[]}`)
	secret := "tenant_app_secret"

	assert.True(t, VerifySignature(body, "sha256="+signSHA256(secret, body), secret))
	assert.True(t, VerifySignature(body, "sha1="+signSHA1(secret, body), secret))
}

func TestVerifySignature_RejectsTamperedDigest(t *testing.T) {
	body := []byte(`{"entry":[]}`)
	secret := "s3cret"
	digest := signSHA256(secret, body)

	// Flip one bit in the first hex nibble.
	flipped := digest
	if flipped[0] == '0' {
		flipped = "1" + flipped[1:]
	} else {
		flipped = "0" + flipped[1:]
	}
	assert.False(t, VerifySignature(body, "sha256="+flipped, secret))
}

func TestVerifySignature_RejectsModifiedBody(t *testing.T) {
	body := []byte(`{"entry":[1]}`)
	secret := "s3cret"
	header := "sha256=" + signSHA256(secret, body)

	tampered := []byte(`{"entry":[2]}`)
	assert.False(t, VerifySignature(tampered, header, secret))
}

func TestVerifySignature_MultiCandidateHeader(t *testing.T) {
	body := []byte(`payload bytes`)
	secret := "s3cret"

	// A valid candidate after malformed and unknown ones still matches.
	header := "md5=abcdef, not-a-pair, sha512=00ff, sha256=" + signSHA256(secret, body)
	assert.True(t, VerifySignature(body, header, secret))
}

func TestVerifySignature_FailsClosed(t *testing.T) {
	body := []byte(`payload`)
	secret := "s3cret"
	valid := "sha256=" + signSHA256(secret, body)

	assert.False(t, VerifySignature(nil, valid, secret), "empty body")
	assert.False(t, VerifySignature(body, "", secret), "missing header")
	assert.False(t, VerifySignature(body, valid, ""), "missing secret")
	assert.False(t, VerifySignature(body, "sha256=zzzz", secret), "non-hex digest")
	assert.False(t, VerifySignature(body, "sha512="+signSHA256(secret, body), secret), "unknown algorithm only")
}
