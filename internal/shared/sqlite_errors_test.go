package shared

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsSQLiteConflictError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "busy text", err: errors.New("exec: SQLITE_BUSY (5)"), want: true},
		{name: "locked text", err: fmt.Errorf("put setting: %w", errors.New("database is locked")), want: true},
		{name: "constraint", err: errors.New("UNIQUE constraint failed: settings.key"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSQLiteConflictError(tt.err); got != tt.want {
				t.Errorf("IsSQLiteConflictError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
