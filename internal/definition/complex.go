package definition

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Complex is a complex number written either as a plain number or as a
// two-element [re, im] list.
type Complex complex128

// UnmarshalJSON implements json.Unmarshaler.
func (c *Complex) UnmarshalJSON(data []byte) error {
	var re float64
	if err := json.Unmarshal(data, &re); err == nil {
		*c = Complex(complex(re, 0))
		return nil
	}
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("complex value %s: want a number or [re, im]", data)
	}
	return c.setPair(pair)
}

// MarshalJSON writes real values as plain numbers and the rest as [re, im].
func (c Complex) MarshalJSON() ([]byte, error) {
	v := complex128(c)
	if imag(v) == 0 {
		return json.Marshal(real(v))
	}
	return json.Marshal([2]float64{real(v), imag(v)})
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Complex) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var re float64
		if err := value.Decode(&re); err != nil {
			return fmt.Errorf("line %d: complex value %q: %w", value.Line, value.Value, err)
		}
		*c = Complex(complex(re, 0))
		return nil
	case yaml.SequenceNode:
		var pair []float64
		if err := value.Decode(&pair); err != nil {
			return fmt.Errorf("line %d: complex value: %w", value.Line, err)
		}
		return c.setPair(pair)
	default:
		return fmt.Errorf("line %d: complex value: want a number or [re, im]", value.Line)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (c Complex) MarshalYAML() (any, error) {
	v := complex128(c)
	if imag(v) == 0 {
		return real(v), nil
	}
	return []float64{real(v), imag(v)}, nil
}

func (c *Complex) setPair(pair []float64) error {
	if len(pair) != 2 {
		return fmt.Errorf("complex value: want [re, im], got %d elements", len(pair))
	}
	*c = Complex(complex(pair[0], pair[1]))
	return nil
}
