package models

import (
	"errors"
	"fmt"
)

// Tier represents the resource tier a worker belongs to
type Tier string

const (
	DEVICE Tier = "device"
	EDGE   Tier = "edge"
	CLOUD  Tier = "cloud"
)

// EvaluationOrder is the fixed order in which tiers are considered.
// Earlier tiers win ties.
var EvaluationOrder = []Tier{DEVICE, EDGE, CLOUD}

// ValidTiers returns all valid tiers
func ValidTiers() []Tier {
	return []Tier{DEVICE, EDGE, CLOUD}
}

// IsValid checks if a Tier is valid
func (t Tier) IsValid() bool {
	for _, valid := range ValidTiers() {
		if t == valid {
			return true
		}
	}
	return false
}

// IsRemote reports whether reaching the tier costs a network transfer
func (t Tier) IsRemote() bool {
	return t == EDGE || t == CLOUD
}

// String returns the string representation of Tier
func (t Tier) String() string {
	return string(t)
}

// ParseTier converts a string to a Tier
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: unknown tier %q", ErrInvalidConfiguration, s)
	}
	return t, nil
}

var (
	// ErrInvalidConfiguration is returned for empty worker sets, non-positive rates
	// and other setup mistakes. It is fatal at initialization time.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrMissingTierMapping signals a worker id without a recorded tier.
	ErrMissingTierMapping = errors.New("missing tier mapping")

	// ErrInvalidUtilization signals a utilization outside [0,1].
	ErrInvalidUtilization = errors.New("invalid utilization")
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s",
		ve.Field, ve.Value, ve.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", ve[0].Error(), len(ve)-1)
}

// HasErrors returns true if there are validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a validation error
func (ve *ValidationErrors) Add(field string, value interface{}, message string) {
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// AddIf adds a validation error if the condition is true
func (ve *ValidationErrors) AddIf(condition bool, field string, value interface{}, message string) {
	if condition {
		ve.Add(field, value, message)
	}
}

// AsConfigError wraps collected validation errors as an invalid configuration.
// Returns nil when nothing was collected.
func (ve ValidationErrors) AsConfigError() error {
	if !ve.HasErrors() {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfiguration, ve)
}
