// Package utils holds input validation shared by the facade and examples.
package utils

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/freepay/freepay/types"
)

var validate = validator.New()

var hexAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidateAmount parses a positive decimal amount string.
func ValidateAmount(amount string) (decimal.Decimal, error) {
	if amount == "" {
		return decimal.Decimal{}, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount format: %w", err)
	}
	if dec.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("amount must be positive")
	}
	return dec, nil
}

// ValidateAddress checks the 0x-prefixed 40-hex address shape.
func ValidateAddress(address string) error {
	if !hexAddressRe.MatchString(address) {
		return fmt.Errorf("invalid address: %q", address)
	}
	return nil
}

// ValidateNetworkConfig runs struct-tag validation plus the semantic checks
// on one network entry.
func ValidateNetworkConfig(cfg *types.NetworkConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return types.Errorf(types.ErrConfigError, "network config validation failed: %v", err)
	}
	for i := range cfg.Tokens {
		if err := ValidateAddress(cfg.Tokens[i].Contract); err != nil {
			return types.Errorf(types.ErrConfigError,
				"token %s on %s: %v", cfg.Tokens[i].Symbol, cfg.Network, err)
		}
	}
	return cfg.Validate()
}
