package db

import (
	"context"
	"errors"
	"testing"
)

func TestTxFromContext_Empty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil tx for empty context")
	}
	if conn := ConnFromContext(context.Background()); conn != nil {
		t.Error("expected nil conn for empty context")
	}
}

func TestNopTransactor_PropagatesError(t *testing.T) {
	want := errors.New("boom")
	called := false
	err := NopTransactor{}.WithinTx(context.Background(), func(ctx context.Context) error {
		called = true
		return want
	})
	if !called {
		t.Fatal("expected fn to be called")
	}
	if !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestSchemaPattern(t *testing.T) {
	tests := []struct {
		schema string
		ok     bool
	}{
		{"public", true},
		{"kinetic_test", true},
		{"_private", true},
		{"1abc", false},
		{"public; DROP TABLE x", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := schemaPattern.MatchString(tt.schema); got != tt.ok {
			t.Errorf("schemaPattern(%q) = %v, want %v", tt.schema, got, tt.ok)
		}
	}
}
