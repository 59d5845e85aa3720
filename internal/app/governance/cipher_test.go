package governance

import (
	"strings"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestCipher(t *testing.T) *FieldCipher {
	t.Helper()
	c, err := NewFieldCipher(testKey)
	if err != nil {
		t.Fatalf("building cipher: %v", err)
	}
	return c
}

func TestCipherRoundTrip(t *testing.T) {
	c := newTestCipher(t)

	plain := "patient reports chest pain منذ يومين"
	sealed := c.Encrypt(plain)
	if sealed == plain {
		t.Fatal("ciphertext equals plaintext")
	}
	if got := c.Decrypt(sealed); got != plain {
		t.Fatalf("round trip = %q, want %q", got, plain)
	}
}

func TestCipherEmptyStringIdentity(t *testing.T) {
	c := newTestCipher(t)
	if c.Encrypt("") != "" {
		t.Fatal("Encrypt(\"\") not identity")
	}
	if c.Decrypt("") != "" {
		t.Fatal("Decrypt(\"\") not identity")
	}
}

func TestDecryptNeverFails(t *testing.T) {
	c := newTestCipher(t)

	for _, bad := range []string{"not base64 at all!!!", "YWJj", strings.Repeat("A", 8)} {
		if got := c.Decrypt(bad); got != DecryptErrSentinel {
			t.Fatalf("Decrypt(%q) = %q, want sentinel", bad, got)
		}
	}

	// Tampered ciphertext fails authentication.
	sealed := c.Encrypt("secret")
	tampered := "B" + sealed[1:]
	if got := c.Decrypt(tampered); got != DecryptErrSentinel {
		t.Fatalf("tampered decrypt = %q, want sentinel", got)
	}
}

func TestNewFieldCipherRejectsBadKeys(t *testing.T) {
	if _, err := NewFieldCipher("zznothex"); err == nil {
		t.Fatal("non-hex key accepted")
	}
	if _, err := NewFieldCipher("abcd"); err == nil {
		t.Fatal("short key accepted")
	}
}
