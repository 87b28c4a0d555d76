// Package encrypt provides password-based encryption of note backups using
// NaCl's SecretBox authenticated cipher with an scrypt-derived key.
//
// Losing a note's k and r nonces means losing the funds, so frontends keep
// an encrypted backup of every note they create. The envelope is
// base64(salt || nonce || ciphertext).
package encrypt

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/term"
)

const (
	saltSize  = 16
	nonceSize = 24
)

// Encrypt seals plaintext with a key derived from the password and returns
// the base64 envelope.
func Encrypt(plaintext, password []byte) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key, err := deriveKey(password, salt)
	if err != nil {
		return "", err
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, key)
	return base64.StdEncoding.EncodeToString(append(salt, sealed...)), nil
}

// Decrypt opens an envelope produced by Encrypt. It fails if the password
// is wrong or the data was tampered with.
func Decrypt(envelope string, password []byte) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return nil, fmt.Errorf("invalid envelope encoding: %w", err)
	}
	if len(data) < saltSize+nonceSize {
		return nil, fmt.Errorf("envelope too short")
	}
	key, err := deriveKey(password, data[:saltSize])
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], data[saltSize:saltSize+nonceSize])
	plaintext, ok := secretbox.Open(nil, data[saltSize+nonceSize:], &nonce, key)
	if !ok {
		return nil, fmt.Errorf("decryption error: invalid password or corrupt data")
	}
	return plaintext, nil
}

// PromptPassword reads a password from the terminal without echoing it.
func PromptPassword(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return password, nil
}

// deriveKey derives a 32-byte SecretBox key from a password using scrypt.
func deriveKey(password, salt []byte) (*[32]byte, error) {
	key, err := scrypt.Key(password, salt, 32768, 8, 1, 32)
	if err != nil {
		return nil, err
	}
	var keyArray [32]byte
	copy(keyArray[:], key)
	return &keyArray, nil
}
