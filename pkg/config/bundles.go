package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ork/pkg/bundle"
)

// Bundles is the bundle configuration file, $ORK_HOME/bundles.yaml. It is
// read-only input to the router: it can disable shipped handlers, override
// their matchers, and annotate bundle modes, but it cannot invent handlers
// (business logic is compiled in) and it cannot demote a denial-capable
// bundle to fire-and-forget.
type Bundles struct {
	Bundles map[string]BundleConfig `yaml:"bundles"`
}

// BundleConfig configures one bundle.
type BundleConfig struct {
	// Mode optionally restates the bundle's execution mode. Restating is
	// allowed for documentation value; contradicting the contract is a
	// load error.
	Mode string `yaml:"mode,omitempty"`

	Handlers []HandlerConfig `yaml:"handlers,omitempty"`
}

// HandlerConfig configures one shipped handler.
type HandlerConfig struct {
	ID      string `yaml:"id"`
	Matcher string `yaml:"matcher,omitempty"`
	Enabled *bool  `yaml:"enabled,omitempty"`
}

// LoadBundles reads and validates bundle configuration. A missing file
// means "ship defaults" and returns an empty, valid value.
func LoadBundles(path string) (*Bundles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Bundles{}, nil
		}
		return nil, fmt.Errorf("read bundle config: %w", err)
	}

	var b Bundles
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &b, nil
}

// Validate rejects unknown bundle names, unknown modes, and any mode
// override that violates the execution contract.
func (b *Bundles) Validate() error {
	for name, bc := range b.Bundles {
		if _, ok := bundle.ContractFor(bundle.Category(name)); !ok {
			return fmt.Errorf("unknown bundle %q", name)
		}
		switch bundle.Mode(bc.Mode) {
		case "", bundle.Blocking, bundle.NonBlocking:
		default:
			return fmt.Errorf("bundle %s: unknown mode %q", name, bc.Mode)
		}
		for _, h := range bc.Handlers {
			if h.ID == "" {
				return fmt.Errorf("bundle %s: handler with empty id", name)
			}
		}
	}
	return bundle.ValidateContracts(effectiveContracts(b))
}

// Apply reshapes a registry per the configuration: disabled handlers are
// removed and matcher overrides are applied in place.
func (b *Bundles) Apply(reg *bundle.Registry) {
	for name, bc := range b.Bundles {
		cat := bundle.Category(name)
		for _, h := range bc.Handlers {
			if h.Enabled != nil && !*h.Enabled {
				reg.Unregister(cat, h.ID)
				continue
			}
			if h.Matcher != "" {
				reg.SetMatcher(cat, h.ID, h.Matcher)
			}
		}
	}
}
