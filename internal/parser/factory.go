package parser

import (
	"fmt"

	"invoicesplit/internal/config"
	"invoicesplit/internal/port"
)

// ProviderFactory is a function that creates a TextCompleter from a provider config.
type ProviderFactory func(cfg *config.ParserProviderConfig) (port.TextCompleter, error)

// registry of completion provider factories, populated explicitly via
// RegisterProvider at startup.
var providers = map[string]ProviderFactory{}

// RegisterProvider registers a completion provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// NewCompleter creates a TextCompleter from a provider config using the registered factory.
func NewCompleter(cfg *config.ParserProviderConfig) (port.TextCompleter, error) {
	factory, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown completion provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// NewCompleterChain builds the primary completer and, when a secondary provider
// is configured, wraps both in a FallbackCompleter.
func NewCompleterChain(cfg *config.ParserConfig) (port.TextCompleter, error) {
	primary, err := NewCompleter(&cfg.Primary)
	if err != nil {
		return nil, fmt.Errorf("primary provider: %w", err)
	}
	secondaryCfg := cfg.SecondaryConfig()
	if secondaryCfg == nil {
		return primary, nil
	}
	secondary, err := NewCompleter(secondaryCfg)
	if err != nil {
		return nil, fmt.Errorf("secondary provider: %w", err)
	}
	return NewFallbackCompleter(
		[]port.TextCompleter{primary, secondary},
		[]string{cfg.Primary.Provider, secondaryCfg.Provider},
	), nil
}
