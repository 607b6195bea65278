package VM

import (
	"fmt"

	"github.com/spaolacci/murmur3"
)

// Fingerprint returns a 128-bit murmur3 digest of the program image as hex.
// Two programs with the same fingerprint run the same instructions.
func (p *Program) Fingerprint() (string, error) {
	raw, err := p.rawImage()
	if err != nil {
		return "", err
	}
	h1, h2 := murmur3.Sum128(raw)
	return fmt.Sprintf("%016x%016x", h1, h2), nil
}
