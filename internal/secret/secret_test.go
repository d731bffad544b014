package secret

import (
	"testing"

	"filippo.io/age"
)

func generateKeypair(t *testing.T) (secretKey, publicKey string) {
	t.Helper()
	id, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity() error = %v", err)
	}
	return id.String(), id.Recipient().String()
}

func TestSealOpenRoundTrip(t *testing.T) {
	secretKey, publicKey := generateKeypair(t)
	t.Setenv("AGE_SECRET_KEY", secretKey)
	t.Setenv("AGE_PUBLIC_KEY", publicKey)

	sealer, err := NewSealerFromEnv()
	if err != nil {
		t.Fatalf("NewSealerFromEnv() error = %v", err)
	}

	sealed, err := sealer.Seal("super-secret-password")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if sealed == "super-secret-password" {
		t.Fatalf("Seal() returned plaintext unchanged")
	}

	opened, err := sealer.Open(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if opened != "super-secret-password" {
		t.Fatalf("Open() = %q, want %q", opened, "super-secret-password")
	}
}

func TestSealEmptyString(t *testing.T) {
	secretKey, _ := generateKeypair(t)
	t.Setenv("AGE_SECRET_KEY", secretKey)

	sealer, err := NewSealerFromEnv()
	if err != nil {
		t.Fatalf("NewSealerFromEnv() error = %v", err)
	}

	sealed, err := sealer.Seal("")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if sealed != "" {
		t.Fatalf("Seal(\"\") = %q, want empty", sealed)
	}
}

func TestOpenWithoutIdentityFails(t *testing.T) {
	_, publicKey := generateKeypair(t)
	t.Setenv("AGE_PUBLIC_KEY", publicKey)

	sealer, err := NewSealerFromEnv()
	if err != nil {
		t.Fatalf("NewSealerFromEnv() error = %v", err)
	}

	sealed, err := sealer.Seal("hunter2")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	if _, err := sealer.Open(sealed); err == nil {
		t.Fatalf("Open() error = nil, want error without a private identity")
	}
}

func TestNewSealerFromEnvRequiresAKey(t *testing.T) {
	t.Setenv("AGE_SECRET_KEY", "")
	t.Setenv("AGE_PUBLIC_KEY", "")

	if _, err := NewSealerFromEnv(); err == nil {
		t.Fatalf("NewSealerFromEnv() error = nil, want error when neither key is set")
	}
}
