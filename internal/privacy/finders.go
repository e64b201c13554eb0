package privacy

import (
	"fmt"
	"regexp"
	"strings"
)

// Finder names shared across the built-in catalogue
const (
	EmailFinderName        = "Email"
	CreditCardFinderName   = "Credit_Card"
	NonLocalIPv4FinderName = "Non_Local_IpV4_Address"
	StreetAddressName      = "Street_Address"
	SSNSpacesFinderName    = "SSN-spaces"
	SSNDashesFinderName    = "SSN-dashes"
	PhoneNumberFinderName  = "Phone_Number"
)

const ipv4Octet = `(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)`

var (
	// embeddedIPv4 finds dotted quads anywhere in a string
	embeddedIPv4 = regexp.MustCompile(`\b(?:` + ipv4Octet + `\.){3}` + ipv4Octet + `\b`)
	// strictIPv4 matches a string that is exactly one dotted quad
	strictIPv4 = regexp.MustCompile(`^(?:` + ipv4Octet + `\.){3}` + ipv4Octet + `$`)

	cardCandidate = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)
)

var localIPv4Prefixes = []string{"10.", "192.168.", "127.0.0."}

// RegexFinder reports every non-overlapping match of a pattern
type RegexFinder struct {
	name    string
	pattern *regexp.Regexp
}

// NewRegexFinder compiles pattern with the optional RE2 flags (e.g. "i", "ms")
func NewRegexFinder(name, pattern, flags string) (*RegexFinder, error) {
	if name == "" {
		return nil, fmt.Errorf("regex finder requires a name")
	}
	if pattern == "" {
		return nil, fmt.Errorf("regex finder %s requires a pattern", name)
	}

	expr := pattern
	if flags != "" {
		expr = "(?" + flags + ")" + pattern
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern for %s: %w", name, err)
	}

	return &RegexFinder{name: name, pattern: re}, nil
}

func (f *RegexFinder) Name() string { return f.name }

func (f *RegexFinder) Find(input string) []string {
	return f.pattern.FindAllString(input, -1)
}

// CreditCardFinder reports card-number-shaped digit runs that pass the Luhn check
type CreditCardFinder struct{}

func NewCreditCardFinder() *CreditCardFinder {
	return &CreditCardFinder{}
}

func (f *CreditCardFinder) Name() string { return CreditCardFinderName }

func (f *CreditCardFinder) Find(input string) []string {
	var matches []string
	for _, candidate := range cardCandidate.FindAllString(input, -1) {
		digits := strings.NewReplacer(" ", "", "-", "").Replace(candidate)
		if len(digits) < 13 || len(digits) > 19 {
			continue
		}
		if luhnValid(digits) {
			matches = append(matches, candidate)
		}
	}
	return matches
}

// luhnValid expects a string of ASCII digits
func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// NonLocalIPv4Finder reports IPv4 addresses outside the loopback and common
// private ranges.
type NonLocalIPv4Finder struct{}

func NewNonLocalIPv4Finder() *NonLocalIPv4Finder {
	return &NonLocalIPv4Finder{}
}

func (f *NonLocalIPv4Finder) Name() string { return NonLocalIPv4FinderName }

func (f *NonLocalIPv4Finder) Find(input string) []string {
	var matches []string
	for _, address := range embeddedIPv4.FindAllString(input, -1) {
		if isLocalIPv4(address) {
			continue
		}
		matches = append(matches, address)
	}
	return matches
}

func isLocalIPv4(address string) bool {
	for _, prefix := range localIPv4Prefixes {
		if strings.HasPrefix(address, prefix) {
			return true
		}
	}
	return false
}
