// Package handid generates sortable identifiers for hands and tables:
// UUIDv7 encoded as a 26-character Crockford base32 string, so ids
// order by creation time.
package handid

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Generator creates ids; the zero source uses crypto/rand
type Generator struct {
	rand io.Reader
	now  func() time.Time
}

// NewGenerator creates a generator reading randomness from r (nil
// means crypto/rand) and time from now (nil means time.Now). Tests
// inject both for deterministic ids.
func NewGenerator(r io.Reader, now func() time.Time) *Generator {
	if r == nil {
		r = rand.Reader
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{rand: r, now: now}
}

// New generates an id with crypto/rand randomness
func New() string {
	return NewGenerator(nil, nil).New()
}

// New generates a fresh id
func (g *Generator) New() string {
	return encodeBase32(g.uuidv7())
}

// uuidv7: 48-bit millisecond timestamp, then random, with version and
// variant bits set
func (g *Generator) uuidv7() [16]byte {
	var uuid [16]byte

	now := g.now().UnixMilli()
	uuid[0] = byte(now >> 40)
	uuid[1] = byte(now >> 32)
	uuid[2] = byte(now >> 24)
	uuid[3] = byte(now >> 16)
	uuid[4] = byte(now >> 8)
	uuid[5] = byte(now)

	if _, err := io.ReadFull(g.rand, uuid[6:]); err != nil {
		panic("handid: randomness failed: " + err.Error())
	}

	uuid[6] = (uuid[6] & 0x0f) | 0x70 // version 7
	uuid[8] = (uuid[8] & 0x3f) | 0x80 // variant 10

	return uuid
}

// encodeBase32 packs 128 bits into 26 base32 characters, 5 bits each
func encodeBase32(data [16]byte) string {
	result := make([]byte, 26)
	for i := 0; i < 26; i++ {
		bitOffset := i * 5
		byteIndex := bitOffset / 8
		bitIndex := bitOffset % 8

		var value uint8
		if byteIndex < 16 {
			if bitIndex <= 3 {
				value = (data[byteIndex] >> (3 - bitIndex)) & 0x1f
			} else {
				value = (data[byteIndex] << (bitIndex - 3)) & 0x1f
				if byteIndex+1 < 16 {
					value |= data[byteIndex+1] >> (11 - bitIndex)
				}
			}
		}
		result[i] = alphabet[value]
	}
	return string(result)
}

// Validate checks that an id is well-formed
func Validate(id string) error {
	if len(id) != 26 {
		return fmt.Errorf("id must be exactly 26 characters, got %d", len(id))
	}
	if id[0] > '7' {
		return fmt.Errorf("id first character must be 0-7, got %c", id[0])
	}
	for i := 0; i < len(id); i++ {
		valid := false
		for j := 0; j < len(alphabet); j++ {
			if id[i] == alphabet[j] {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid character %c at position %d", id[i], i)
		}
	}
	return nil
}
