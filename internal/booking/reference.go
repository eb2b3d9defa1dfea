package booking

import (
	"fmt"
	"io"
	"regexp"
	"time"
)

const (
	referencePrefix = "FFB"
	referenceSuffix = 6
	// 32 symbols without 0/O and 1/I, so byte%32 is unbiased.
	referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var referencePattern = regexp.MustCompile(`^FFB-[0-9]{8}-[A-HJ-NP-Z2-9]{6}$`)

// NewReference returns FFB-YYYYMMDD-XXXXXX for the Dubai calendar date of
// now, with a random suffix read from rnd.
func NewReference(now time.Time, rnd io.Reader) (string, error) {
	var buf [referenceSuffix]byte
	if _, err := io.ReadFull(rnd, buf[:]); err != nil {
		return "", fmt.Errorf("booking: read reference entropy: %w", err)
	}
	suffix := make([]byte, referenceSuffix)
	for i, b := range buf {
		suffix[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return fmt.Sprintf("%s-%s-%s", referencePrefix, now.In(Dubai).Format("20060102"), suffix), nil
}

// ValidReference reports whether s has the reference format.
func ValidReference(s string) bool {
	return referencePattern.MatchString(s)
}
