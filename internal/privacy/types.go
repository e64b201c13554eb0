package privacy

import "sort"

// Finder is a named detector for one category of confidential data.
// Implementations must be safe for concurrent use; several finders may
// share a name, in which case their results are reported together.
type Finder interface {
	Name() string
	Find(input string) []string
}

// Findings maps a finder name to an ordered list of values or locations.
type Findings map[string][]string

// Add appends value under name, preserving insertion order.
func (f Findings) Add(name, value string) {
	f[name] = append(f[name], value)
}

// Merge appends every entry of other into f.
func (f Findings) Merge(other Findings) {
	for name, values := range other {
		f[name] = append(f[name], values...)
	}
}

// Names returns the finder names in sorted order.
func (f Findings) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the total number of entries across all names.
func (f Findings) Count() int {
	total := 0
	for _, values := range f {
		total += len(values)
	}
	return total
}

// Kind identifies which constructor builds a finder definition
type Kind string

const (
	KindRegex                Kind = "regex"
	KindCreditCard           Kind = "credit_card"
	KindNonLocalIPv4         Kind = "non_local_ipv4"
	KindPhoneNumber          Kind = "phone_number"
	KindCompositePhoneNumber Kind = "composite_phone_number"
)

// Definition is the declarative form of a finder as read from configuration
type Definition struct {
	Name    string   `yaml:"name" mapstructure:"name"`
	Kind    Kind     `yaml:"kind" mapstructure:"kind"`
	Pattern string   `yaml:"pattern" mapstructure:"pattern"`
	Flags   string   `yaml:"flags" mapstructure:"flags"`
	Region  string   `yaml:"region" mapstructure:"region"`
	Regions []string `yaml:"regions" mapstructure:"regions"`
	Enabled *bool    `yaml:"enabled" mapstructure:"enabled"`
}

// IsEnabled reports whether the definition should be built. Definitions
// without an explicit flag are enabled.
func (d Definition) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}
