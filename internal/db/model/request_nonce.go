package model

import "time"

const RequestNonceCollection = "request_nonces"

// RequestNonceDocument marks a signed request as consumed. It expires once
// the request timestamp could no longer pass the freshness check.
type RequestNonceDocument struct {
	ID        string    `bson:"_id"`
	Signer    string    `bson:"signer"`
	Nonce     string    `bson:"nonce"`
	ExpiresAt time.Time `bson:"expires_at"`
}

func NewRequestNonceDocument(signer, nonce string, expiresAt time.Time) *RequestNonceDocument {
	return &RequestNonceDocument{
		ID:        signer + "/" + nonce,
		Signer:    signer,
		Nonce:     nonce,
		ExpiresAt: expiresAt,
	}
}
