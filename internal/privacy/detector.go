package privacy

import (
	"errors"
	"fmt"

	"github.com/raaihank/trace-sentinel/internal/config"
	"github.com/raaihank/trace-sentinel/internal/logger"
	"go.uber.org/zap"
)

// ErrUnknownKind is returned for definitions whose kind has no constructor
var ErrUnknownKind = errors.New("unknown finder kind")

type factory func(def Definition, validator PhoneValidator) (Finder, error)

// factories resolves definition kinds to finder constructors
var factories = map[Kind]factory{
	KindRegex: func(def Definition, _ PhoneValidator) (Finder, error) {
		return NewRegexFinder(def.Name, def.Pattern, def.Flags)
	},
	KindCreditCard: func(Definition, PhoneValidator) (Finder, error) {
		return NewCreditCardFinder(), nil
	},
	KindNonLocalIPv4: func(Definition, PhoneValidator) (Finder, error) {
		return NewNonLocalIPv4Finder(), nil
	},
	KindPhoneNumber: func(def Definition, validator PhoneValidator) (Finder, error) {
		region, err := ResolveRegion(def.Region)
		if err != nil {
			return nil, fmt.Errorf("problem with region: %w", err)
		}
		return NewPhoneNumberFinder(region, validator), nil
	},
	KindCompositePhoneNumber: func(def Definition, validator PhoneValidator) (Finder, error) {
		regions := make([]string, 0, len(def.Regions))
		for _, r := range def.Regions {
			region, err := ResolveRegion(r)
			if err != nil {
				return nil, fmt.Errorf("problem with region: %w", err)
			}
			regions = append(regions, region)
		}
		return NewCompositePhoneNumberFinder(regions, validator), nil
	},
}

// DefaultDefinitions returns the built-in catalogue in evaluation order
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			Name:    EmailFinderName,
			Kind:    KindRegex,
			Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
		},
		{Name: CreditCardFinderName, Kind: KindCreditCard},
		{Name: NonLocalIPv4FinderName, Kind: KindNonLocalIPv4},
		{
			Name:    StreetAddressName,
			Kind:    KindRegex,
			Pattern: `\b\d{1,6}(?:\s+[A-Za-z0-9.'-]+){1,4}\s+(?:street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr|court|ct|way|place|pl|terrace|parkway|pkwy|highway|hwy)\b\.?`,
			Flags:   "i",
		},
		{Name: SSNSpacesFinderName, Kind: KindRegex, Pattern: `\b\d{3} \d{2} \d{4}\b`},
		{Name: SSNDashesFinderName, Kind: KindRegex, Pattern: `\b\d{3}-\d{2}-\d{4}\b`},
		{Name: PhoneNumberFinderName, Kind: KindCompositePhoneNumber, Regions: DefaultPhoneRegions},
	}
}

// BuildFinders turns definitions into finders. Disabled entries are skipped
// silently; entries that cannot be built are logged and skipped.
func BuildFinders(defs []Definition, validator PhoneValidator, log *zap.Logger) []Finder {
	if log == nil {
		log = zap.NewNop()
	}

	finders := make([]Finder, 0, len(defs))
	for _, def := range defs {
		if !def.IsEnabled() {
			log.Debug("Finder disabled", zap.String("finder", def.Name))
			continue
		}

		build, ok := factories[def.Kind]
		if !ok {
			log.Error("Skipping finder definition",
				zap.String("finder", def.Name),
				zap.String("kind", string(def.Kind)),
				zap.Error(ErrUnknownKind))
			continue
		}

		finder, err := build(def, validator)
		if err != nil {
			log.Error("Skipping finder definition",
				zap.String("finder", def.Name),
				zap.String("kind", string(def.Kind)),
				zap.Error(err))
			continue
		}
		finders = append(finders, finder)
	}

	return finders
}

// New builds the detection engine described by the configuration
func New(cfg config.DetectionConfig, log *logger.Logger, opts ...Option) *Engine {
	defs := definitionsFromConfig(cfg)
	finders := BuildFinders(defs, LibPhoneValidator{}, log.Logger)

	names := make([]string, 0, len(finders))
	for _, f := range finders {
		names = append(names, f.Name())
	}

	if len(finders) == 0 {
		log.Warn("Detection engine has no finders; nothing will be detected")
	}

	log.Info("Detection engine initialized",
		zap.Int("total_definitions", len(defs)),
		zap.Int("enabled_finders", len(finders)),
		zap.Strings("finders", names),
	)

	return NewEngine(finders, append([]Option{WithLogger(log.Logger)}, opts...)...)
}

// definitionsFromConfig falls back to the built-in catalogue when no
// finders are configured
func definitionsFromConfig(cfg config.DetectionConfig) []Definition {
	if len(cfg.Finders) == 0 {
		defs := DefaultDefinitions()
		if len(cfg.PhoneRegions) > 0 {
			for i := range defs {
				if defs[i].Kind == KindCompositePhoneNumber {
					defs[i].Regions = cfg.PhoneRegions
				}
			}
		}
		return defs
	}

	defs := make([]Definition, 0, len(cfg.Finders))
	for _, fc := range cfg.Finders {
		defs = append(defs, Definition{
			Name:    fc.Name,
			Kind:    Kind(fc.Kind),
			Pattern: fc.Pattern,
			Flags:   fc.Flags,
			Region:  fc.Region,
			Regions: fc.Regions,
			Enabled: fc.Enabled,
		})
	}
	return defs
}
