package token

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateLengthAndEncoding(t *testing.T) {
	issuer := New()

	tok, err := issuer.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	assert.NoError(t, err)
	assert.Len(t, raw, tokenBytes)
}

func TestGenerateUnique(t *testing.T) {
	issuer := New()

	seen := make(map[string]struct{})
	for i := 0; i < 64; i++ {
		tok, err := issuer.Generate()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token after %d draws", i)
		}
		seen[tok] = struct{}{}
	}
}

func TestGenerateDeterministicSource(t *testing.T) {
	source := bytes.NewReader(bytes.Repeat([]byte{0x41}, tokenBytes))
	issuer := NewWithSource(source)

	tok, err := issuer.Generate()
	assert.NoError(t, err)
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(bytes.Repeat([]byte{0x41}, tokenBytes)), tok)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerateSourceFailure(t *testing.T) {
	issuer := NewWithSource(failingReader{})

	_, err := issuer.Generate()
	assert.Error(t, err)
}
