// internal/wifidog/token/issuer.go
package token

import (
	"crypto/rand"
	"encoding/hex"
	"io"

	apperrors "wifidog-auth/internal/common/errors"
)

// Issuer produces unguessable session tokens.
type Issuer interface {
	Issue() (string, error)
}

// RandomIssuer reads tokens from a cryptographically secure source and
// hex encodes them.
type RandomIssuer struct {
	config *Config
	source io.Reader
}

func NewIssuer(config *Config) *RandomIssuer {
	return NewIssuerFromReader(config, rand.Reader)
}

// NewIssuerFromReader draws entropy from source instead of crypto/rand.
func NewIssuerFromReader(config *Config, source io.Reader) *RandomIssuer {
	if config == nil {
		config = DefaultConfig()
	}
	return &RandomIssuer{config: config, source: source}
}

// Issue returns a fresh token. A short read from the entropy source is a
// TOKEN_GENERATION_FAILED error; no partial token is ever returned.
func (i *RandomIssuer) Issue() (string, error) {
	buf := make([]byte, i.config.Bytes)
	if _, err := io.ReadFull(i.source, buf); err != nil {
		return "", apperrors.NewTokenGenerationFailedError(err)
	}
	return hex.EncodeToString(buf), nil
}
