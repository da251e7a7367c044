package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	NonceSize       = 12
	SaltSize        = 16
	ProtocolVersion = "netmodel-v1"

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	keySize      = 32
)

// Envelope is the stored form of an encrypted file.
type Envelope struct {
	Protocol   string `json:"protocol"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, keySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt seals data with AES-256-GCM under a key derived from password and
// returns the base64 encoded envelope.
func Encrypt(data []byte, password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("empty password")
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	gcm, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return "", err
	}

	envelope := Envelope{
		Protocol:   ProtocolVersion,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: gcm.Seal(nil, nonce, data, []byte(ProtocolVersion)),
	}

	raw, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decrypt reverses Encrypt.
func Decrypt(encoded, password string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("file is not encrypted or is corrupt: %w", err)
	}

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	if envelope.Protocol != ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %s", envelope.Protocol)
	}
	if len(envelope.Nonce) != NonceSize {
		return nil, fmt.Errorf("invalid nonce size: %d", len(envelope.Nonce))
	}

	gcm, err := newGCM(deriveKey(password, envelope.Salt))
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, envelope.Nonce, envelope.Ciphertext, []byte(ProtocolVersion))
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong password?): %w", err)
	}

	return plaintext, nil
}
