package evolution

import (
	"errors"
	"fmt"

	"github.com/seantiz/hamevo/internal/operator"
)

// Parameter names reported by InvalidParameterError.
const (
	FieldEvoTime        = "evo_time"
	FieldNumTimeSlices  = "num_time_slices"
	FieldExpansionMode  = "expansion_mode"
	FieldExpansionOrder = "expansion_order"
)

// ErrInvalidParameter matches every InvalidParameterError via errors.Is.
var ErrInvalidParameter = errors.New("invalid parameter")

// InvalidParameterError reports the first configuration value rejected at
// construction.
type InvalidParameterError struct {
	Field string
	Value any
}

func (e *InvalidParameterError) Error() string {
	switch e.Field {
	case FieldExpansionMode:
		return fmt.Sprintf("%s value %q: allowed values are %q, %q", e.Field, e.Value, operator.Trotter, operator.Suzuki)
	case FieldExpansionOrder:
		return fmt.Sprintf("%s value %v: minimum allowed is 1", e.Field, e.Value)
	default:
		return fmt.Sprintf("%s value %v: minimum allowed is 0", e.Field, e.Value)
	}
}

// Is reports whether target is ErrInvalidParameter.
func (e *InvalidParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// Config holds the scalar parameters of the evolution approximation.
type Config struct {
	EvoTime        float64                `json:"evo_time" yaml:"evo_time"`
	NumTimeSlices  int                    `json:"num_time_slices" yaml:"num_time_slices"`
	ExpansionMode  operator.ExpansionMode `json:"expansion_mode" yaml:"expansion_mode"`
	ExpansionOrder int                    `json:"expansion_order" yaml:"expansion_order"`
}

// DefaultConfig returns evo_time 1, one time slice, first-order Trotter.
func DefaultConfig() Config {
	return Config{
		EvoTime:        1,
		NumTimeSlices:  1,
		ExpansionMode:  operator.Trotter,
		ExpansionOrder: 1,
	}
}

// Validate checks the parameters in a fixed order and returns the first
// failure as an *InvalidParameterError.
func (c Config) Validate() error {
	if c.EvoTime < 0 {
		return &InvalidParameterError{Field: FieldEvoTime, Value: c.EvoTime}
	}
	if c.NumTimeSlices < 0 {
		return &InvalidParameterError{Field: FieldNumTimeSlices, Value: c.NumTimeSlices}
	}
	if !c.ExpansionMode.Valid() {
		return &InvalidParameterError{Field: FieldExpansionMode, Value: string(c.ExpansionMode)}
	}
	if c.ExpansionOrder < 1 {
		return &InvalidParameterError{Field: FieldExpansionOrder, Value: c.ExpansionOrder}
	}
	return nil
}

func (c Config) evolutionParams() operator.EvolutionParams {
	return operator.EvolutionParams{
		Time:      c.EvoTime,
		NumSlices: c.NumTimeSlices,
		Mode:      c.ExpansionMode,
		Order:     c.ExpansionOrder,
	}
}
