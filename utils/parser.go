package utils

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/q402/q402-go/types"
)

var validate = validator.New()

// ParsePaymentDetails parses and validates a PaymentDetails offer from JSON.
func ParsePaymentDetails(data []byte) (*types.PaymentDetails, error) {
	var details types.PaymentDetails

	if err := json.Unmarshal(data, &details); err != nil {
		return nil, &types.Q402Error{
			Code:    types.ErrInvalidDetails,
			Message: fmt.Sprintf("failed to parse payment details: %v", err),
		}
	}

	if err := validate.Struct(&details); err != nil {
		return nil, &types.Q402Error{
			Code:    types.ErrInvalidDetails,
			Message: fmt.Sprintf("payment details validation failed: %v", err),
		}
	}

	if err := details.Validate(); err != nil {
		return nil, err
	}

	return &details, nil
}

// ParseQ402Config parses a Q402Config from JSON and checks every registered
// network entry.
func ParseQ402Config(data []byte) (*types.Q402Config, error) {
	var config types.Q402Config

	if err := json.Unmarshal(data, &config); err != nil {
		return nil, &types.Q402Error{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("failed to parse config: %v", err),
		}
	}

	for name, network := range config.Networks {
		if err := validate.Struct(&network); err != nil {
			return nil, &types.Q402Error{
				Code:    types.ErrConfigError,
				Message: fmt.Sprintf("network %q: %v", name, err),
			}
		}
	}

	return &config, nil
}
