// Package barcode generates and validates pet claim codes of the form
// PET-<SPECIES>-<4 digits>-<6 digits>-<2 alphanumerics>.
package barcode

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
)

var (
	ErrInvalidFormat   = errors.New("invalid barcode format")
	ErrInvalidChecksum = errors.New("invalid barcode checksum")
)

// Species is the three-letter species block of a code.
type Species string

const (
	SpeciesDog    Species = "DOG"
	SpeciesCat    Species = "CAT"
	SpeciesRabbit Species = "RAB"
	SpeciesOther  Species = "OTH"
)

// MaxAttempts bounds Generate. About one candidate in seven passes the checksum.
const MaxAttempts = 50

const (
	checksumModulus = 7
	alphanumerics   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var codePattern = regexp.MustCompile(`^PET-(DOG|CAT|RAB|OTH)-[0-9]{4}-[0-9]{6}-[A-Z0-9]{2}$`)

// ParseSpecies accepts a species tag in any case.
func ParseSpecies(s string) (Species, error) {
	switch sp := Species(strings.ToUpper(strings.TrimSpace(s))); sp {
	case SpeciesDog, SpeciesCat, SpeciesRabbit, SpeciesOther:
		return sp, nil
	}
	return "", fmt.Errorf("unknown species %q: %w", s, ErrInvalidFormat)
}

// Validate checks the layout first and the checksum second.
func Validate(code string) error {
	if !codePattern.MatchString(code) {
		return fmt.Errorf("%q: %w", code, ErrInvalidFormat)
	}
	if checksum(code)%checksumModulus != 0 {
		return fmt.Errorf("%q: %w", code, ErrInvalidChecksum)
	}
	return nil
}

// checksum sums the value of every alphanumeric rune: digits count as
// themselves, letters as their code point minus 55 (A=10 ... Z=35).
func checksum(code string) int {
	sum := 0
	for _, r := range code {
		switch {
		case r >= '0' && r <= '9':
			sum += int(r - '0')
		case r >= 'A' && r <= 'Z':
			sum += int(r) - 55
		}
	}
	return sum
}

// Generator produces random valid codes.
type Generator struct {
	intN func(n int) int
}

// NewGenerator returns a Generator using the global math/rand source.
func NewGenerator() *Generator {
	return &Generator{intN: rand.IntN}
}

// NewGeneratorWithSource returns a Generator drawing from intN, which must
// return a value in [0, n).
func NewGeneratorWithSource(intN func(n int) int) *Generator {
	return &Generator{intN: intN}
}

// Generate draws candidates until one validates, giving up with
// ErrInvalidChecksum after MaxAttempts. species is matched case-insensitively.
func (g *Generator) Generate(species Species) (string, error) {
	species, err := ParseSpecies(string(species))
	if err != nil {
		return "", err
	}
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		code := fmt.Sprintf("PET-%s-%04d-%06d-%c%c",
			species,
			g.intN(10000),
			g.intN(1000000),
			alphanumerics[g.intN(len(alphanumerics))],
			alphanumerics[g.intN(len(alphanumerics))],
		)
		if err := Validate(code); err == nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("no valid %s code after %d attempts: %w", species, MaxAttempts, ErrInvalidChecksum)
}
