// Package secret seals credential fields (ipmi_password, root_password)
// at rest using age encryption, so the store only ever sees ciphertext.
package secret

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
)

const (
	envAgeSecretKey = "AGE_SECRET_KEY"
	envAgePublicKey = "AGE_PUBLIC_KEY"
)

// Sealer encrypts and decrypts credential fields with an age X25519
// identity. Unlike the bundler's signer, it does not derive an
// Ed25519 key pair from the age seed; it uses age's own recipient and
// identity types directly, since sealing has no signature to verify.
type Sealer struct {
	identity  *age.X25519Identity
	recipient age.Recipient
}

// NewSealerFromEnv initialises a Sealer from AGE_SECRET_KEY and/or
// AGE_PUBLIC_KEY. AGE_SECRET_KEY (an age identity capable of both
// sealing and opening) is required to Open; AGE_PUBLIC_KEY (a bare
// recipient) is enough to Seal. At least one must be set.
func NewSealerFromEnv() (*Sealer, error) {
	secret := strings.TrimSpace(os.Getenv(envAgeSecretKey))
	pub := strings.TrimSpace(os.Getenv(envAgePublicKey))

	if secret == "" && pub == "" {
		return nil, fmt.Errorf("%s or %s must be set", envAgeSecretKey, envAgePublicKey)
	}

	var (
		identity  *age.X25519Identity
		recipient age.Recipient
	)

	if secret != "" {
		id, err := age.ParseX25519Identity(secret)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", envAgeSecretKey, err)
		}
		identity = id
		recipient = id.Recipient()
	}

	if pub != "" {
		r, err := age.ParseX25519Recipient(pub)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", envAgePublicKey, err)
		}
		if existing, ok := recipient.(*age.X25519Recipient); ok && existing.String() != r.String() {
			return nil, errors.New("AGE_PUBLIC_KEY does not match AGE_SECRET_KEY")
		}
		recipient = r
	}

	return &Sealer{identity: identity, recipient: recipient}, nil
}

// Seal encrypts plaintext and returns an age-armored ciphertext string
// suitable for storing directly in a text column.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if s == nil || s.recipient == nil {
		return "", errors.New("sealer configured without a recipient")
	}
	if plaintext == "" {
		return "", nil
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return "", fmt.Errorf("seal: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("seal: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("seal: %w", err)
	}
	return buf.String(), nil
}

// Open decrypts a value previously produced by Seal. An empty input
// decrypts to an empty string without requiring an identity.
func (s *Sealer) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	if s == nil || s.identity == nil {
		return "", errors.New("sealer configured without a private identity")
	}

	r, err := age.Decrypt(strings.NewReader(sealed), s.identity)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	return string(plaintext), nil
}
