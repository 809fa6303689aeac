package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func defaultOutput() *os.File { return os.Stderr }

func TestModuleConfig_LevelFor(t *testing.T) {
	mc := NewModuleConfig(slog.LevelInfo)
	mc.SetModuleLevel("runtime", slog.LevelWarn)
	mc.SetModuleLevel("runtime.session", slog.LevelDebug)
	mc.SetModuleLevel("runtime.transport", slog.LevelError)

	tests := []struct {
		module   string
		expected slog.Level
	}{
		{"runtime", slog.LevelWarn},
		{"runtime.session", slog.LevelDebug},
		{"runtime.transport", slog.LevelError},
		{"runtime.session.inner", slog.LevelDebug},
		{"runtime.transcript", slog.LevelWarn},
		{"tools.museumctl", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			if got := mc.LevelFor(tt.module); got != tt.expected {
				t.Errorf("LevelFor(%q) = %v, want %v", tt.module, got, tt.expected)
			}
		})
	}

	if got := mc.MinLevel(); got != slog.LevelDebug {
		t.Errorf("MinLevel() = %v, want debug", got)
	}
}

func TestModuleConfig_SetDefaultLevel(t *testing.T) {
	mc := NewModuleConfig(slog.LevelInfo)
	mc.SetDefaultLevel(slog.LevelDebug)
	if mc.LevelFor("anything") != slog.LevelDebug {
		t.Error("Expected default to change to Debug")
	}
}

func TestModuleFromFunction(t *testing.T) {
	tests := map[string]string{
		"github.com/tccoin/museum-agent/runtime/session.(*Controller).Connect": "runtime.session",
		"github.com/tccoin/museum-agent/runtime/metrics/prometheus.RecordHandoff": "runtime.metrics.prometheus",
		"github.com/tccoin/museum-agent/runtime/transport.(*Conn).Send.func1":   "runtime.transport",
		"main.main":        "",
		"":                 "",
	}
	for fn, want := range tests {
		if got := moduleFromFunction(fn); got != want {
			t.Errorf("moduleFromFunction(%q) = %q, want %q", fn, got, want)
		}
	}
}

func TestConfigure_JSONWithCommonFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(defaultOutput())

	err := Configure(&LoggingConfigSpec{
		DefaultLevel: "warn",
		Format:       FormatJSON,
		CommonFields: map[string]string{"service": "museum-agent"},
	})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	Info("dropped")
	WarnContext(WithAgent(context.Background(), "Fetch"), "kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, `"service":"museum-agent"`) || !strings.Contains(out, `"agent":"Fetch"`) {
		t.Errorf("expected common and context fields: %q", out)
	}
}

func TestConfigure_ModuleLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(defaultOutput())

	err := Configure(&LoggingConfigSpec{
		DefaultLevel: "error",
		Modules:      []ModuleLoggingSpec{{Name: "runtime.logger", Level: "debug"}},
	})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	// Calls from this test resolve to the runtime.logger module.
	DefaultLogger.Debug("module debug")
	if !strings.Contains(buf.String(), "module debug") {
		t.Errorf("module-level debug should be emitted: %q", buf.String())
	}
}

func TestConfigure_Nil(t *testing.T) {
	if err := Configure(nil); err != nil {
		t.Errorf("Configure(nil) error = %v", err)
	}
}
