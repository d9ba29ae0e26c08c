// Package auth authenticates callers. A caller is identified by a hex
// encoded x-only schnorr public key and proves control of it by signing the
// sha256 of the request payload: method, path, timestamp, nonce and body.
package auth

import (
	"bytes"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/shrublabs/shrub-fund/internal/types"
)

type Verifier struct {
	authorityKey string
}

func NewVerifier(authorityKey string) *Verifier {
	return &Verifier{authorityKey: normalizeKey(authorityKey)}
}

// VerifySigner reports whether key is the configured fund authority.
func (v *Verifier) VerifySigner(key string) bool {
	key = normalizeKey(key)
	if len(key) != len(v.authorityKey) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(v.authorityKey)) == 1
}

// RequireAuthority fails UnauthorizedAccess unless key is the authority.
func (v *Verifier) RequireAuthority(key string) error {
	if !v.VerifySigner(key) {
		return types.ErrUnauthorizedAccess
	}
	return nil
}

// SigningPayload is the message a caller signs for a request. The method,
// path, timestamp and nonce each end with a newline and the raw body follows.
func SigningPayload(method, path, timestamp, nonce string, body []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(method) + len(path) + len(timestamp) + len(nonce) + len(body) + 4)
	for _, field := range []string{method, path, timestamp, nonce} {
		b.WriteString(field)
		b.WriteByte('\n')
	}
	b.Write(body)
	return b.Bytes()
}

// VerifySignature checks a BIP-340 signature over sha256(payload) and
// returns the signer key in its canonical lowercase form.
func VerifySignature(pubKeyHex, sigHex string, payload []byte) (string, error) {
	pubKeyBytes, err := hex.DecodeString(normalizeKey(pubKeyHex))
	if err != nil {
		return "", types.ErrUnauthorizedAccess.Wrapf("invalid signer key encoding")
	}
	pubKey, err := schnorr.ParsePubKey(pubKeyBytes)
	if err != nil {
		return "", types.ErrUnauthorizedAccess.Wrapf("invalid signer key: %v", err)
	}

	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil {
		return "", types.ErrUnauthorizedAccess.Wrapf("invalid signature encoding")
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return "", types.ErrUnauthorizedAccess.Wrapf("invalid signature: %v", err)
	}

	if !sig.Verify(chainhash.HashB(payload), pubKey) {
		return "", types.ErrUnauthorizedAccess.Wrapf("signature does not match request")
	}
	return hex.EncodeToString(schnorr.SerializePubKey(pubKey)), nil
}

// ValidateKey checks that key is a hex encoded x-only public key.
func ValidateKey(key string) error {
	b, err := hex.DecodeString(normalizeKey(key))
	if err != nil {
		return fmt.Errorf("invalid key encoding: %w", err)
	}
	if _, err := schnorr.ParsePubKey(b); err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}
	return nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
