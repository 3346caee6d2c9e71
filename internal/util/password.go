package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Character classes used by the password generator. Simple passwords draw
// from letters and digits; difficult passwords add punctuation.
const (
	passwordLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	passwordDigits  = "0123456789"
	passwordSymbols = "!@#$%^&*()-_=+[]{};:,.?"
)

// GeneratePasswords returns n independently generated passwords of the given
// length. Each password contains at least one character from every class it
// draws from. Selection uses crypto/rand throughout.
func GeneratePasswords(n, length int, difficult bool) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("password count must be positive, got %d", n)
	}

	classes := []string{passwordLetters, passwordDigits}
	if difficult {
		classes = append(classes, passwordSymbols)
	}
	if length < len(classes) {
		return nil, fmt.Errorf("password length %d cannot cover %d character classes", length, len(classes))
	}

	passwords := make([]string, 0, n)
	for i := 0; i < n; i++ {
		p, err := generateOne(length, classes)
		if err != nil {
			return nil, err
		}
		passwords = append(passwords, p)
	}
	return passwords, nil
}

func generateOne(length int, classes []string) (string, error) {
	alphabet := strings.Join(classes, "")
	chars := make([]byte, 0, length)

	// One guaranteed character per class, the rest from the full alphabet.
	for _, class := range classes {
		c, err := randomByte(class)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	for len(chars) < length {
		c, err := randomByte(alphabet)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	if err := shuffleBytes(chars); err != nil {
		return "", err
	}
	return string(chars), nil
}

func randomByte(alphabet string) (byte, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, fmt.Errorf("failed to read random index: %w", err)
	}
	return alphabet[idx.Int64()], nil
}

// shuffleBytes performs a Fisher-Yates shuffle with crypto/rand indices so
// the guaranteed class characters do not cluster at the front.
func shuffleBytes(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("failed to read random index: %w", err)
		}
		b[i], b[j.Int64()] = b[j.Int64()], b[i]
	}
	return nil
}
