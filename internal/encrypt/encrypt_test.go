package encrypt

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte(`{"amount":5000000,"k":"abc"}`)
	password := []byte("correct horse battery staple")

	envelope, err := Encrypt(plaintext, password)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	restored, err := Decrypt(envelope, password)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(restored, plaintext) {
		t.Fatal("round trip lost data")
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	envelope, err := Encrypt([]byte("secret note"), []byte("right"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := Decrypt(envelope, []byte("wrong")); err == nil {
		t.Fatal("expected failure for wrong password")
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	if _, err := Decrypt("not base64!!", []byte("pw")); err == nil {
		t.Fatal("expected failure for malformed envelope")
	}
	if _, err := Decrypt("c2hvcnQ=", []byte("pw")); err == nil {
		t.Fatal("expected failure for truncated envelope")
	}
}

func TestEncryptSaltsEveryEnvelope(t *testing.T) {
	plaintext := []byte("same input")
	password := []byte("same password")

	a, err := Encrypt(plaintext, password)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	b, err := Encrypt(plaintext, password)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if a == b {
		t.Fatal("envelopes must differ across calls")
	}
}
