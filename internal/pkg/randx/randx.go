/*
Package randx provides functions for generating cryptographically secure random numbers and unique identifiers.

It is primarily used to generate fixed-length Base62 encoded room identifiers and standard UUID event IDs.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// RoomIDLength is the fixed length required for a generated room identifier.
	RoomIDLength = 8
)

// RoomID generates a Base62 encoded room identifier using a cryptographically
// secure random number generator (crypto/rand).
func RoomID() (string, error) {
	result := make([]byte, RoomIDLength)

	for i := 0; i < RoomIDLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for room id: %v", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// EventID generates a standard UUID v4 string to serve as a unique identifier
// for an outbound event or activity record.
func EventID() string {
	return uuid.New().String()
}

// ConnID generates a unique identifier for a transport-level connection.
func ConnID() string {
	return uuid.New().String()
}

// IsValidRoomID checks if the given string is a plausible room identifier:
// fixed length and all characters drawn from the Base62 character set.
func IsValidRoomID(id string) bool {
	if len(id) != RoomIDLength {
		return false
	}

	for _, char := range id {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}

	return true
}
