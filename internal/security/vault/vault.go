package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

var (
	ErrInvalidKey      = errors.New("vault: invalid encryption key")
	ErrInvalidPayload  = errors.New("vault: invalid encrypted payload")
	ErrDecryption      = errors.New("vault: decryption failed")
	ErrUnknownProvider = errors.New("vault: unknown provider")
)

// Provider seals secrets stored at rest, such as webhook signing secrets.
type Provider interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}

type Config struct {
	Provider string
	AESKey   string
}

func NewFactory(cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "aes", "":
		return newAESVault(cfg.AESKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

// AESVault implements Provider using AES-256-GCM.
type AESVault struct {
	key []byte
}

var keyInfo = []byte("paycore/vault/v2")

func newAESVault(secret string) (*AESVault, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrInvalidKey
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, keyInfo), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &AESVault{key: key}, nil
}

type EncryptedData struct {
	Version    int    `json:"v"`
	Nonce      string `json:"n"`
	Ciphertext string `json:"c"`
}

const payloadVersion = 2

func (v *AESVault) Encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := v.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return json.Marshal(EncryptedData{
		Version:    payloadVersion,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, nil)),
	})
}

func (v *AESVault) Decrypt(data []byte) ([]byte, error) {
	var payload EncryptedData
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, ErrInvalidPayload
	}
	if payload.Version != payloadVersion {
		return nil, ErrInvalidPayload
	}

	nonce, err := base64.RawStdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return nil, ErrInvalidPayload
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, ErrInvalidPayload
	}

	gcm, err := v.gcm()
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, ErrInvalidPayload
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

func (v *AESVault) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// SealString and OpenString round-trip text columns.
func SealString(p Provider, value string) (string, error) {
	out, err := p.Encrypt([]byte(value))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func OpenString(p Provider, sealed string) (string, error) {
	out, err := p.Decrypt([]byte(sealed))
	if err != nil {
		return "", err
	}
	return string(out), nil
}
