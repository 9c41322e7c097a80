package database

import (
	"errors"
	"testing"
	"time"
)

func TestRecordQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		err       error
	}{
		{name: "successful query", operation: "find_by_hash", err: nil},
		{name: "failed query", operation: "insert_movie", err: errors.New("disk I/O error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			recordQuery(tt.operation, time.Now(), tt.err)
		})
	}
}

func TestDefaultTimeoutConstant(t *testing.T) {
	if defaultTimeout != 5*time.Second {
		t.Errorf("defaultTimeout = %v, want 5s", defaultTimeout)
	}
}
