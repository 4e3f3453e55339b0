package phi

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"strings"
)

const defaultMaskLength = 8

// hashValue returns the hex digest used for deterministic masking.
func hashValue(value, salt string) string {
	digest := sha256.Sum256([]byte(salt + ":" + value))
	return hex.EncodeToString(digest[:])
}

// maskWithPrefix returns a deterministic token with a readable prefix.
func maskWithPrefix(value, prefix, salt string, length int) string {
	if length <= 0 {
		length = defaultMaskLength
	}
	digest := hashValue(value, salt)
	if length > len(digest) {
		length = len(digest)
	}
	return fmt.Sprintf("%s_%s", prefix, digest[:length])
}

// hexToDigits converts a hex digest into a digit-only string of the
// requested length by taking each nibble modulo 10.
func hexToDigits(hexValue string, length int) string {
	var b strings.Builder
	b.Grow(len(hexValue))
	for _, char := range []byte(hexValue) {
		var nibble byte
		switch {
		case char >= '0' && char <= '9':
			nibble = char - '0'
		case char >= 'a' && char <= 'f':
			nibble = char - 'a' + 10
		case char >= 'A' && char <= 'F':
			nibble = char - 'A' + 10
		default:
			continue
		}
		b.WriteByte('0' + nibble%10)
	}
	converted := b.String()
	if len(converted) >= length {
		return converted[:length]
	}
	// Pad deterministically if more digits are needed than the digest holds.
	for len(converted) < length {
		converted += converted
	}
	return converted[:length]
}

// maskPhone masks a phone number while preserving formatting characters:
// every digit is substituted digit-for-digit and every non-digit character
// keeps its position and value.
func maskPhone(value, salt string) string {
	digitCount := 0
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	if digitCount == 0 {
		return maskWithPrefix(value, "PHONE", salt, defaultMaskLength)
	}

	hashedDigits := hexToDigits(hashValue(value, salt), digitCount)
	var b strings.Builder
	b.Grow(len(value))
	next := 0
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteByte(hashedDigits[next])
			next++
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// maskEmail hashes the local part and domain independently and reassembles
// them under the reserved .example TLD so the result never resolves.
func maskEmail(value, salt string) string {
	local, domain, found := strings.Cut(value, "@")
	if !found {
		return maskWithPrefix(value, "EMAIL", salt, defaultMaskLength)
	}

	maskedLocal := strings.ToLower(maskWithPrefix(local, "user", salt, 12))
	maskedDomain := strings.ToLower(maskWithPrefix(domain, "domain", salt, 8))
	return fmt.Sprintf("%s@%s.example", maskedLocal, maskedDomain)
}

// maskDate derives a pseudo-year in [2000, 2030) and a day-of-year offset
// in [0, 365) from the digest and emits a YYYY-DAY-DDD token.
func maskDate(value, salt string) string {
	digest := hashValue(value, salt)
	offset := hexUint(digest[:4]) % 365
	year := 2000 + hexUint(digest[4:8])%30
	return fmt.Sprintf("%04d-DAY-%03d", year, offset)
}

// maskIP derives four octets from the digest, each clamped to [1, 254].
func maskIP(value, salt string) string {
	digest := hashValue(value, salt)
	octets := make([]string, 4)
	for i := 0; i < 4; i++ {
		octet := hexUint(digest[i*2:i*2+2])%254 + 1
		octets[i] = fmt.Sprintf("%d", octet)
	}
	masked := strings.Join(octets, ".")
	if ip := net.ParseIP(masked); ip == nil || ip.To4() == nil {
		return maskWithPrefix(value, "IP", salt, defaultMaskLength)
	}
	return masked
}

// maskNumeric replaces the digit portion of an identifier with hashed
// digits under a readable prefix.
func maskNumeric(value, prefix, salt string) string {
	digitCount := 0
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	if digitCount == 0 {
		return maskWithPrefix(value, prefix, salt, defaultMaskLength)
	}
	return fmt.Sprintf("%s-%s", prefix, hexToDigits(hashValue(value, salt), digitCount))
}

func hexUint(s string) int {
	v := 0
	for _, char := range []byte(s) {
		switch {
		case char >= '0' && char <= '9':
			v = v*16 + int(char-'0')
		case char >= 'a' && char <= 'f':
			v = v*16 + int(char-'a'+10)
		case char >= 'A' && char <= 'F':
			v = v*16 + int(char-'A'+10)
		}
	}
	return v
}
