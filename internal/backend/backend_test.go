package backend_test

import (
	"context"
	"errors"
	"testing"

	"github.com/seantiz/hamevo/internal/backend"
	"github.com/seantiz/hamevo/internal/circuit"
)

// mockBackend is a minimal Backend implementation used to verify the interface
// is implementable and the domain types are usable.
type mockBackend struct {
	executeFn func(ctx context.Context, circuits []*circuit.Circuit) (*backend.Result, error)
}

func (m *mockBackend) Execute(ctx context.Context, circuits []*circuit.Circuit) (*backend.Result, error) {
	if m.executeFn != nil {
		return m.executeFn(ctx, circuits)
	}
	return &backend.Result{
		Backend:      "mock",
		Statevectors: map[string][]complex128{"psi": {1, 0}},
	}, nil
}

func (m *mockBackend) IsStatevector() bool { return true }

func (m *mockBackend) Capabilities() backend.BackendCapabilities {
	return backend.BackendCapabilities{
		Name:        "mock",
		Statevector: true,
		MaxQubits:   4,
	}
}

// Compile-time check that mockBackend satisfies the Backend interface.
var _ backend.Backend = (*mockBackend)(nil)

func TestBackendInterface_Implementable(t *testing.T) {
	var b backend.Backend = &mockBackend{}

	c := circuit.New("psi", circuit.NewRegister("q", 1))
	result, err := b.Execute(context.Background(), []*circuit.Circuit{c})
	if err != nil {
		t.Fatalf("Execute returned unexpected error: %v", err)
	}
	sv, err := result.Statevector("psi")
	if err != nil {
		t.Fatalf("Statevector: %v", err)
	}
	if len(sv) != 2 || sv[0] != 1 {
		t.Errorf("statevector = %v, want [1 0]", sv)
	}
}

func TestResultMissingEntries(t *testing.T) {
	r := &backend.Result{Backend: "mock"}
	if _, err := r.Statevector("psi"); err == nil {
		t.Error("expected error for missing statevector, got nil")
	}
	if _, err := r.CountsFor("psi"); err == nil {
		t.Error("expected error for missing counts, got nil")
	}
}

func TestResultCountsFor(t *testing.T) {
	r := &backend.Result{
		Backend: "mock",
		Shots:   10,
		Counts:  map[string]map[string]int{"psi_Z": {"0": 7, "1": 3}},
	}
	counts, err := r.CountsFor("psi_Z")
	if err != nil {
		t.Fatalf("CountsFor: %v", err)
	}
	if counts["0"] != 7 || counts["1"] != 3 {
		t.Errorf("counts = %v, want map[0:7 1:3]", counts)
	}
}

func TestExecuteErrorPath(t *testing.T) {
	expectedErr := errors.New("execution failed")
	b := &mockBackend{
		executeFn: func(_ context.Context, _ []*circuit.Circuit) (*backend.Result, error) {
			return nil, expectedErr
		},
	}

	result, err := b.Execute(context.Background(), nil)
	if !errors.Is(err, expectedErr) {
		t.Fatalf("expected error %v, got %v", expectedErr, err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %+v", result)
	}
}
