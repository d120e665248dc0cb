package app

import (
	"testing"

	"go.uber.org/fx"
)

// TestModuleGraph validates the dependency graph without instantiating
// anything (no lock acquisition, no database).
func TestModuleGraph(t *testing.T) {
	if err := fx.ValidateApp(Module(Params{Profile: "test"})); err != nil {
		t.Fatalf("fx graph invalid: %v", err)
	}
}
