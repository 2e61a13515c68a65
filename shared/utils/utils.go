package utils

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// GenerateID generates a unique ID with the given prefix (usr-, wal-, tan-).
func GenerateID(prefix string) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 10

	result := make([]byte, length)
	for i := range result {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[num.Int64()]
	}

	return fmt.Sprintf("%s-%s", prefix, string(result))
}

// HashPassword hashes a secret (a password, or a short-lived OTP code) using bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword checks if a secret matches a bcrypt hash.
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ValidateUserID validates the user ID format.
func ValidateUserID(userID string) bool {
	return strings.HasPrefix(userID, "usr-")
}

// ValidateTransactionID validates the transaction ID format.
func ValidateTransactionID(transactionID string) bool {
	return strings.HasPrefix(transactionID, "tan-")
}

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// NormalizePhoneNumber validates and returns a phone number in E.164 form.
func NormalizePhoneNumber(phone string) (string, bool) {
	phone = strings.TrimSpace(phone)
	if !e164Pattern.MatchString(phone) {
		return "", false
	}
	return phone, true
}

// ToRawAmount converts a user-facing decimal amount to the token's raw
// integer unit count: raw = round(amount × 10^decimals).
func ToRawAmount(amount float64, decimals int) uint64 {
	factor := math.Pow10(decimals)
	return uint64(math.Round(amount * factor))
}

// FromRawAmount is the inverse of ToRawAmount.
func FromRawAmount(raw uint64, decimals int) float64 {
	factor := math.Pow10(decimals)
	return float64(raw) / factor
}
