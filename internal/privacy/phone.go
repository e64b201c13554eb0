package privacy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegions is the ordered region list tried by the composite
// phone finder: the G7 economies.
var DefaultPhoneRegions = []string{"CA", "FR", "DE", "IT", "JP", "GB", "US"}

var (
	alphas     = regexp.MustCompile(`[A-Za-z]`)
	allNumbers = regexp.MustCompile(`^\d+$`)
)

// regionNames maps CLDR-style names accepted in configuration to ISO codes
var regionNames = map[string]string{
	"ARGENTINA":      "AR",
	"AUSTRALIA":      "AU",
	"BRAZIL":         "BR",
	"CANADA":         "CA",
	"CHINA":          "CN",
	"FRANCE":         "FR",
	"GERMANY":        "DE",
	"INDIA":          "IN",
	"INDONESIA":      "ID",
	"IRELAND":        "IE",
	"ITALY":          "IT",
	"JAPAN":          "JP",
	"MEXICO":         "MX",
	"NETHERLANDS":    "NL",
	"NEW_ZEALAND":    "NZ",
	"RUSSIA":         "RU",
	"SAUDI_ARABIA":   "SA",
	"SOUTH_AFRICA":   "ZA",
	"SOUTH_KOREA":    "KR",
	"SPAIN":          "ES",
	"TURKEY":         "TR",
	"UNITED_KINGDOM": "GB",
	"UNITED_STATES":  "US",
}

// PhoneValidator decides whether input is a valid number for a region
type PhoneValidator interface {
	IsValid(input, region string) bool
}

// LibPhoneValidator validates with the libphonenumber metadata
type LibPhoneValidator struct{}

func (LibPhoneValidator) IsValid(input, region string) bool {
	number, err := phonenumbers.ParseAndKeepRawInput(input, region)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumberForRegion(number, region)
}

// ResolveRegion turns an ISO code or a CLDR-style name into a region code
// known to the phone metadata.
func ResolveRegion(region string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(region))
	if mapped, ok := regionNames[code]; ok {
		code = mapped
	}
	if phonenumbers.GetCountryCodeForRegion(code) == 0 {
		return "", fmt.Errorf("unknown region %q", region)
	}
	return code, nil
}

// PhoneNumberFinder reports the raw input when it is a valid phone number
// for a single region.
type PhoneNumberFinder struct {
	region    string
	validator PhoneValidator
}

func NewPhoneNumberFinder(region string, validator PhoneValidator) *PhoneNumberFinder {
	if validator == nil {
		validator = LibPhoneValidator{}
	}
	return &PhoneNumberFinder{region: region, validator: validator}
}

func (f *PhoneNumberFinder) Name() string { return PhoneNumberFinderName }

// Region returns the configured region code
func (f *PhoneNumberFinder) Region() string { return f.region }

func (f *PhoneNumberFinder) Find(input string) []string {
	if excludedFromPhoneCheck(input) {
		return nil
	}
	if f.validator.IsValid(input, f.region) {
		return []string{input}
	}
	return nil
}

// CompositePhoneNumberFinder tries each region in order and reports the raw
// input on the first region that validates it.
type CompositePhoneNumberFinder struct {
	regions   []string
	validator PhoneValidator
}

func NewCompositePhoneNumberFinder(regions []string, validator PhoneValidator) *CompositePhoneNumberFinder {
	if len(regions) == 0 {
		regions = DefaultPhoneRegions
	}
	if validator == nil {
		validator = LibPhoneValidator{}
	}
	return &CompositePhoneNumberFinder{
		regions:   append([]string(nil), regions...),
		validator: validator,
	}
}

func (f *CompositePhoneNumberFinder) Name() string { return PhoneNumberFinderName }

// Regions returns the region codes in evaluation order
func (f *CompositePhoneNumberFinder) Regions() []string {
	return append([]string(nil), f.regions...)
}

func (f *CompositePhoneNumberFinder) Find(input string) []string {
	if excludedFromPhoneCheck(input) {
		return nil
	}
	for _, region := range f.regions {
		if f.validator.IsValid(input, region) {
			return []string{input}
		}
	}
	return nil
}

// excludedFromPhoneCheck applies the cheap exclusions in order: letters,
// a whole-string IPv4 address, then a bare run of digits.
func excludedFromPhoneCheck(input string) bool {
	if alphas.MatchString(input) {
		return true
	}
	if strictIPv4.MatchString(input) {
		return true
	}
	return allNumbers.MatchString(input)
}
