package app

import (
	"errors"
	"testing"
	"time"

	"ibk-go/internal/ibk"
)

func TestNewOperation(t *testing.T) {
	started := time.Date(2024, 2, 28, 9, 0, 0, 0, time.UTC)
	op := NewOperation(KindBackup, "/src -> /dst", started)

	if op.Kind != KindBackup {
		t.Errorf("Kind = %q, want %q", op.Kind, KindBackup)
	}
	if op.Parameters != "/src -> /dst" {
		t.Errorf("Parameters = %q", op.Parameters)
	}
	if op.Status != ibk.OperationRunning {
		t.Errorf("Status = %q, want %q", op.Status, ibk.OperationRunning)
	}
	if !op.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", op.StartedAt, started)
	}
	if op.Persisted() {
		t.Error("new operation reports Persisted()")
	}
}

func TestOperation_Persisted(t *testing.T) {
	tests := []struct {
		name string
		id   int64
		want bool
	}{
		{name: "not persisted when ID is 0", id: 0, want: false},
		{name: "persisted when ID is positive", id: 1, want: true},
		{name: "persisted when ID is large", id: 99999, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := &Operation{ID: tt.id}
			if got := op.Persisted(); got != tt.want {
				t.Errorf("Persisted() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOperationStatus(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		clean bool
		want  string
	}{
		{"clean run", nil, true, ibk.OperationSuccess},
		{"some files failed", nil, false, ibk.OperationPartial},
		{"fatal error wins", errors.New("boom"), true, ibk.OperationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := operationStatus(tt.err, tt.clean); got != tt.want {
				t.Errorf("operationStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}
