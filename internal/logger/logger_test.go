package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	for _, tc := range []struct {
		name  string
		json  bool
		debug bool
	}{
		{name: "console info"},
		{name: "json debug", json: true, debug: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			l, err := New(tc.json, tc.debug)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := l.Core().Enabled(zapcore.DebugLevel); got != tc.debug {
				t.Fatalf("debug enabled = %v, want %v", got, tc.debug)
			}
		})
	}
}
