package paytm

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// checksumIV is the static initialization vector mandated by the Paytm
// checksum scheme
const checksumIV = "@@@@&&&&####$$$$"

const saltLength = 4

var saltAlphabet = []byte("AaBbCcDdEeFfGgHhIiJjKkLlMmNnOoPpQqRrSsTtUuVvWwXxYyZz0123456789")

// GenerateSignature computes the Paytm checksum for a request body.
// The scheme is sha256(body + "|" + salt) hex, appended with the salt,
// then AES-128-CBC encrypted with the first 16 bytes of the merchant key
// and base64 encoded.
func GenerateSignature(body, merchantKey string) (string, error) {
	salt, err := generateSalt()
	if err != nil {
		return "", err
	}
	return calculateSignature(body, merchantKey, salt)
}

// VerifySignature checks a checksum produced by GenerateSignature
func VerifySignature(body, merchantKey, signature string) bool {
	decrypted, err := decrypt(signature, merchantKey)
	if err != nil {
		return false
	}
	if len(decrypted) < saltLength {
		return false
	}
	salt := decrypted[len(decrypted)-saltLength:]

	expected, err := calculateSignature(body, merchantKey, salt)
	if err != nil {
		return false
	}

	expectedPlain, err := decrypt(expected, merchantKey)
	if err != nil {
		return false
	}
	return expectedPlain == decrypted
}

func calculateSignature(body, merchantKey, salt string) (string, error) {
	digest := sha256.Sum256([]byte(body + "|" + salt))
	hashed := fmt.Sprintf("%x", digest) + salt
	return encrypt(hashed, merchantKey)
}

func generateSalt() (string, error) {
	raw := make([]byte, saltLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate checksum salt: %w", err)
	}
	for i, b := range raw {
		raw[i] = saltAlphabet[int(b)%len(saltAlphabet)]
	}
	return string(raw), nil
}

func cipherKey(merchantKey string) []byte {
	key := make([]byte, 16)
	copy(key, merchantKey)
	return key
}

func encrypt(plaintext, merchantKey string) (string, error) {
	block, err := aes.NewCipher(cipherKey(merchantKey))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	encrypted := make([]byte, len(padded))
	mode := cipher.NewCBCEncrypter(block, []byte(checksumIV))
	mode.CryptBlocks(encrypted, padded)

	return base64.StdEncoding.EncodeToString(encrypted), nil
}

func decrypt(encoded, merchantKey string) (string, error) {
	encrypted, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(encrypted) == 0 || len(encrypted)%aes.BlockSize != 0 {
		return "", fmt.Errorf("invalid signature length")
	}

	block, err := aes.NewCipher(cipherKey(merchantKey))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	decrypted := make([]byte, len(encrypted))
	mode := cipher.NewCBCDecrypter(block, []byte(checksumIV))
	mode.CryptBlocks(decrypted, encrypted)

	unpadded, err := pkcs7Unpad(decrypted, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded data length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
