// Package definition reads declarative experiment documents and turns them
// into the operators, initial state and parameters of an evolution
// experiment.
//
// A document names an observable, an optional evolution operator (the
// observable is reused when it is omitted), an initial state, the four
// evolution parameters and the backend to run on. Operators are given either
// as a list of weighted Pauli labels or as a dense matrix.
package definition

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seantiz/hamevo/internal/circuit"
	"github.com/seantiz/hamevo/internal/evolution"
	"github.com/seantiz/hamevo/internal/initialstate"
	"github.com/seantiz/hamevo/internal/operator"
)

// Initial state kinds.
const (
	KindZero    = "zero"
	KindUniform = "uniform"
	KindBasis   = "basis"
	KindVector  = "vector"
)

// ErrInvalidDocument is returned for documents that cannot describe an experiment.
var ErrInvalidDocument = errors.New("invalid experiment document")

// FieldError rejects a single document field. It matches ErrInvalidDocument
// via errors.Is.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidDocument, e.Field, e.Reason)
}

// Is reports whether target is ErrInvalidDocument.
func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidDocument
}

// PauliTerm is one weighted Pauli label.
type PauliTerm struct {
	Label string  `json:"label" yaml:"label"`
	Coeff Complex `json:"coeff" yaml:"coeff"`
}

// OperatorSpec describes an operator. Exactly one of Paulis and Matrix is set.
type OperatorSpec struct {
	Paulis []PauliTerm `json:"paulis,omitempty" yaml:"paulis,omitempty"`
	Matrix [][]Complex `json:"matrix,omitempty" yaml:"matrix,omitempty"`
}

// InitialStateSpec describes the state the evolution starts from.
type InitialStateSpec struct {
	Kind       string    `json:"kind" yaml:"kind"`
	Bits       string    `json:"bits,omitempty" yaml:"bits,omitempty"`
	Amplitudes []Complex `json:"amplitudes,omitempty" yaml:"amplitudes,omitempty"`
}

// Document is an experiment definition. Unset evolution parameters take the
// values of evolution.DefaultConfig.
type Document struct {
	Operator          OperatorSpec      `json:"operator" yaml:"operator"`
	EvolutionOperator *OperatorSpec     `json:"evolution_operator,omitempty" yaml:"evolution_operator,omitempty"`
	InitialState      *InitialStateSpec `json:"initial_state,omitempty" yaml:"initial_state,omitempty"`

	EvoTime        *float64 `json:"evo_time,omitempty" yaml:"evo_time,omitempty"`
	NumTimeSlices  *int     `json:"num_time_slices,omitempty" yaml:"num_time_slices,omitempty"`
	ExpansionMode  *string  `json:"expansion_mode,omitempty" yaml:"expansion_mode,omitempty"`
	ExpansionOrder *int     `json:"expansion_order,omitempty" yaml:"expansion_order,omitempty"`

	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	Shots   int    `json:"shots,omitempty" yaml:"shots,omitempty"`
}

// Built holds the collaborators described by a document.
type Built struct {
	Operator          operator.Operator
	EvolutionOperator operator.Operator
	InitialState      initialstate.Preparer
	Config            evolution.Config
	Backend           string
	Shots             int
}

// ParseJSON decodes a JSON document. Unknown fields are rejected.
func ParseJSON(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return &doc, nil
}

// ParseYAML decodes a YAML document. Unknown fields are rejected.
func ParseYAML(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return &doc, nil
}

// Load reads a document from path. Files ending in .yaml or .yml are parsed
// as YAML, everything else as JSON.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// JSON returns the canonical JSON encoding of the document.
func (d *Document) JSON() ([]byte, error) {
	return json.Marshal(d)
}

// EvolutionConfig returns the document's evolution parameters with defaults
// filled in. Values are not validated here.
func (d *Document) EvolutionConfig() evolution.Config {
	cfg := evolution.DefaultConfig()
	if d.EvoTime != nil {
		cfg.EvoTime = *d.EvoTime
	}
	if d.NumTimeSlices != nil {
		cfg.NumTimeSlices = *d.NumTimeSlices
	}
	if d.ExpansionMode != nil {
		cfg.ExpansionMode = operator.ExpansionMode(*d.ExpansionMode)
	}
	if d.ExpansionOrder != nil {
		cfg.ExpansionOrder = *d.ExpansionOrder
	}
	return cfg
}

// Build converts the document into experiment collaborators.
func (d *Document) Build() (*Built, error) {
	if d.Shots < 0 {
		return nil, fmt.Errorf("%w: shots %d is negative", ErrInvalidDocument, d.Shots)
	}
	if d.EvoTime != nil && (math.IsNaN(*d.EvoTime) || math.IsInf(*d.EvoTime, 0)) {
		return nil, &FieldError{Field: evolution.FieldEvoTime, Reason: fmt.Sprintf("value %v is not finite", *d.EvoTime)}
	}
	op, err := d.Operator.build("operator")
	if err != nil {
		return nil, err
	}
	evo := op
	if d.EvolutionOperator != nil {
		if evo, err = d.EvolutionOperator.build("evolution_operator"); err != nil {
			return nil, err
		}
	}
	prep, err := d.InitialState.build()
	if err != nil {
		return nil, err
	}
	return &Built{
		Operator:          op,
		EvolutionOperator: evo,
		InitialState:      prep,
		Config:            d.EvolutionConfig(),
		Backend:           d.Backend,
		Shots:             d.Shots,
	}, nil
}

// NewExperiment builds the document and constructs the experiment it
// describes.
func (d *Document) NewExperiment(opts ...evolution.Option) (*evolution.Experiment, *Built, error) {
	b, err := d.Build()
	if err != nil {
		return nil, nil, err
	}
	exp, err := evolution.New(b.Operator, b.InitialState, b.EvolutionOperator, b.Config, opts...)
	if err != nil {
		return nil, nil, err
	}
	return exp, b, nil
}

// CheckCircuitSize rejects experiments whose evolution fragment would exceed
// limit instructions. The error names the parameter driving the growth. A
// limit of zero or less disables the check.
func CheckCircuitSize(exp *evolution.Experiment, limit int) error {
	if limit <= 0 {
		return nil
	}
	n, ok := exp.EvolutionSize()
	if !ok || n <= float64(limit) {
		return nil
	}
	cfg := exp.Config()
	field := evolution.FieldNumTimeSlices
	if cfg.ExpansionMode == operator.Suzuki && cfg.ExpansionOrder > 1 {
		field = evolution.FieldExpansionOrder
	}
	return &FieldError{
		Field:  field,
		Reason: fmt.Sprintf("evolution needs about %.3g instructions, limit is %d", n, limit),
	}
}

func (s *OperatorSpec) build(field string) (operator.Operator, error) {
	switch {
	case len(s.Paulis) > 0 && len(s.Matrix) > 0:
		return nil, fmt.Errorf("%w: %s: paulis and matrix are mutually exclusive", ErrInvalidDocument, field)
	case len(s.Paulis) > 0:
		terms := make([]operator.Term, len(s.Paulis))
		for i, p := range s.Paulis {
			label, err := circuit.ParsePauli(p.Label)
			if err != nil {
				return nil, fmt.Errorf("%w: %s.paulis[%d]: %w", ErrInvalidDocument, field, i, err)
			}
			terms[i] = operator.Term{Coeff: complex128(p.Coeff), Pauli: label}
		}
		op, err := operator.NewWeightedPauli(terms...)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDocument, field, err)
		}
		return op, nil
	case len(s.Matrix) > 0:
		m := make([][]complex128, len(s.Matrix))
		for i, row := range s.Matrix {
			m[i] = make([]complex128, len(row))
			for j, v := range row {
				m[i][j] = complex128(v)
			}
		}
		op, err := operator.NewMatrixOperator(m)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDocument, field, err)
		}
		return op, nil
	default:
		return nil, fmt.Errorf("%w: %s: paulis or matrix is required", ErrInvalidDocument, field)
	}
}

func (s *InitialStateSpec) build() (initialstate.Preparer, error) {
	if s == nil {
		return initialstate.Zero{}, nil
	}
	switch strings.ToLower(s.Kind) {
	case "", KindZero:
		return initialstate.Zero{}, nil
	case KindUniform:
		return initialstate.Uniform{}, nil
	case KindBasis:
		b, err := initialstate.NewBasis(s.Bits)
		if err != nil {
			return nil, fmt.Errorf("%w: initial_state: %w", ErrInvalidDocument, err)
		}
		return b, nil
	case KindVector:
		amps := make([]complex128, len(s.Amplitudes))
		for i, a := range s.Amplitudes {
			amps[i] = complex128(a)
		}
		v, err := initialstate.NewVector(amps)
		if err != nil {
			return nil, fmt.Errorf("%w: initial_state: %w", ErrInvalidDocument, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: initial_state: unknown kind %q", ErrInvalidDocument, s.Kind)
	}
}
