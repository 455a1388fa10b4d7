// Package token issues opaque invitation tokens.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"go.uber.org/fx"
)

// tokenBytes is the entropy per token. 32 bytes keeps the collision
// probability negligible; repeated unique-constraint failures on insert
// indicate a broken random source, not bad luck.
const tokenBytes = 32

// Issuer generates collision-resistant opaque tokens.
type Issuer interface {
	Generate() (string, error)
}

type issuer struct {
	source io.Reader
}

// New returns an Issuer backed by crypto/rand.
func New() Issuer {
	return &issuer{source: rand.Reader}
}

// NewWithSource returns an Issuer reading entropy from source. Tests use
// this to force deterministic or colliding tokens.
func NewWithSource(source io.Reader) Issuer {
	return &issuer{source: source}
}

func (i *issuer) Generate() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(i.source, buf); err != nil {
		return "", fmt.Errorf("read token entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Module wires the default token issuer.
var Module = fx.Module("token",
	fx.Provide(New),
)
