package secret

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipher(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	return c
}

func TestSealOpenRoundTrip(t *testing.T) {
	c := newTestCipher(t)

	s, err := c.Seal("db-password")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if s.IsZero() {
		t.Fatalf("expected non-empty ciphertext")
	}
	pt, err := c.Open(s)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if pt != "db-password" {
		t.Fatalf("got %q", pt)
	}
}

func TestSealEmptyIsZero(t *testing.T) {
	c := newTestCipher(t)
	s, err := c.Seal("")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !s.IsZero() {
		t.Fatalf("expected zero secret")
	}
	v, _ := s.Value()
	if v != nil {
		t.Fatalf("expected NULL db value, got %v", v)
	}
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	c := newTestCipher(t)
	s, _ := c.Seal("api-secret")

	other, _ := NewCipher(bytes.Repeat([]byte{9}, 32))
	if _, err := other.Open(s); err == nil {
		t.Fatalf("expected authentication failure")
	}
}

func TestSecretNeverPrintsPlaintextOrCiphertext(t *testing.T) {
	c := newTestCipher(t)
	s, _ := c.Seal("hunter2")
	ct, _ := s.Value()

	type holder struct {
		Password Secret `json:"password"`
	}
	out, err := json.Marshal(holder{Password: s})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"password":null}` {
		t.Fatalf("unexpected json %s", out)
	}

	for _, rendered := range []string{fmt.Sprint(s), fmt.Sprintf("%v", s), fmt.Sprintf("%#v", s)} {
		if strings.Contains(rendered, "hunter2") || strings.Contains(rendered, ct.(string)) {
			t.Fatalf("secret leaked in %q", rendered)
		}
	}
}

func TestScan(t *testing.T) {
	var s Secret
	if err := s.Scan([]byte("abc")); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if v, _ := s.Value(); v != "abc" {
		t.Fatalf("got %v", v)
	}
	if err := s.Scan(nil); err != nil || !s.IsZero() {
		t.Fatalf("expected zero after NULL scan")
	}
	if err := s.Scan(42); err == nil {
		t.Fatalf("expected error for int")
	}
}

func TestLoadKeyFromBase64(t *testing.T) {
	if _, err := LoadKeyFromBase64("c2hvcnQ="); err == nil {
		t.Fatalf("expected short key to be rejected")
	}
	k, err := LoadKeyFromBase64("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")
	if err != nil || len(k) != 32 {
		t.Fatalf("expected 32 byte key, got %d (%v)", len(k), err)
	}
}
