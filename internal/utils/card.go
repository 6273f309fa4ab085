package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const panLength = 16

// GeneratePan generates a 16-digit card number starting with the given
// 6-digit BIN. The last digit is the Luhn check digit, so every
// generated number passes ValidLuhn.
func GeneratePan(bin string) (string, error) {
	if len(bin) != 6 {
		return "", fmt.Errorf("BIN must be 6 digits, got %d", len(bin))
	}
	for _, r := range bin {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("BIN must be numeric, got %q", bin)
		}
	}

	// 9 random digits between the BIN and the check digit
	digits := make([]byte, panLength-len(bin)-1)
	if _, err := rand.Read(digits); err != nil {
		return "", fmt.Errorf("failed to generate random digits: %w", err)
	}

	var builder strings.Builder
	builder.WriteString(bin)
	for _, b := range digits {
		builder.WriteByte(b%10 + '0')
	}

	partial := builder.String()
	builder.WriteByte(byte(luhnCheckDigit(partial)) + '0')
	return builder.String(), nil
}

// luhnCheckDigit computes the check digit for the first 15 digits.
func luhnCheckDigit(partial string) int {
	sum := 0
	for i := 0; i < len(partial); i++ {
		digit := int(partial[len(partial)-1-i] - '0')
		if i%2 == 0 {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
	}
	return (10 - sum%10) % 10
}

// ValidLuhn reports whether a full card number passes the Luhn checksum.
func ValidLuhn(pan string) bool {
	if len(pan) < 2 {
		return false
	}
	sum := 0
	for i := 0; i < len(pan); i++ {
		c := pan[len(pan)-1-i]
		if c < '0' || c > '9' {
			return false
		}
		digit := int(c - '0')
		if i%2 == 1 {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
	}
	return sum%10 == 0
}

// Encrypt encrypts a string using AES-CBC with PKCS#7 padding. The IV is
// prepended to the ciphertext and the result is hex-encoded.
func Encrypt(data string, key []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("input data is empty")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	dataBytes := []byte(data)
	padding := aes.BlockSize - len(dataBytes)%aes.BlockSize
	for i := 0; i < padding; i++ {
		dataBytes = append(dataBytes, byte(padding))
	}

	ciphertext := make([]byte, len(dataBytes))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, dataBytes)

	return hex.EncodeToString(append(iv, ciphertext...)), nil
}

// Decrypt reverses Encrypt.
func Decrypt(encryptedData string, key []byte) (string, error) {
	data, err := hex.DecodeString(encryptedData)
	if err != nil {
		return "", fmt.Errorf("failed to decode hex: %w", err)
	}
	if len(data) < aes.BlockSize {
		return "", fmt.Errorf("encrypted data too short: %d bytes", len(data))
	}

	iv := data[:aes.BlockSize]
	ciphertext := data[aes.BlockSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("invalid ciphertext length: %d bytes", len(ciphertext))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	padding := int(plaintext[len(plaintext)-1])
	if padding == 0 || padding > aes.BlockSize {
		return "", fmt.Errorf("invalid padding value: %d", padding)
	}
	for i := len(plaintext) - padding; i < len(plaintext); i++ {
		if int(plaintext[i]) != padding {
			return "", fmt.Errorf("invalid padding byte at position %d", i)
		}
	}

	return string(plaintext[:len(plaintext)-padding]), nil
}
