package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// GenerateID generates a unique ID with the given prefix
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

// GenerateEventID creates a fresh correlation id for originators that do not
// supply their own.
func GenerateEventID() string {
	return uuid.NewString()
}

// ValidateAccountNumber validates the 8-digit account number format shared by
// all participant services.
func ValidateAccountNumber(accountNumber string) bool {
	if len(accountNumber) != 8 {
		return false
	}
	for _, c := range accountNumber {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ValidateEventID checks that an event id looks like a UUID. True uniqueness
// is enforced by the idempotency ledger, not here.
func ValidateEventID(eventID string) bool {
	_, err := uuid.Parse(eventID)
	return err == nil
}
