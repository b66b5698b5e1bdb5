package emailbuilder

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

// NanoIDAlphabet is the character set used for nanoid generation
const NanoIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// IDGenerator produces block ids. Ids must never repeat for the lifetime of a store.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator generates random UUID v4 block ids
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.New().String()
}

// NanoIDGenerator generates short prefixed ids such as "blk_x3k9q2m7a1"
type NanoIDGenerator struct {
	Prefix string
	Length int
}

func (g NanoIDGenerator) NewID() string {
	prefix := g.Prefix
	if prefix == "" {
		prefix = "blk_"
	}
	return prefix + GenerateNanoID(g.Length)
}

// GenerateNanoID generates a cryptographically secure random ID of specified length
// using only lowercase alphanumeric characters (a-z, 0-9)
func GenerateNanoID(length int) string {
	if length <= 0 {
		length = 12
	}

	result := make([]byte, length)
	alphabetLen := big.NewInt(int64(len(NanoIDAlphabet)))

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			// fall back to a uuid-derived character rather than a predictable one
			result[i] = NanoIDAlphabet[int(uuid.New().ID())%len(NanoIDAlphabet)]
			continue
		}
		result[i] = NanoIDAlphabet[num.Int64()]
	}

	return string(result)
}

// NewIDGenerator returns the generator for a configured strategy ("uuid" or "nanoid")
func NewIDGenerator(strategy string) IDGenerator {
	if strategy == "nanoid" {
		return NanoIDGenerator{}
	}
	return UUIDGenerator{}
}
