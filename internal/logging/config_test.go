package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestRuntimeProfileHonorsEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvLogTimestamp, "false")
	t.Setenv(EnvLogNoColor, "true")

	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg)

	if cfg.Level != zerolog.WarnLevel {
		t.Fatalf("level override ignored: %v", cfg.Level)
	}
	if cfg.Timestamp {
		t.Fatalf("timestamp override ignored")
	}
	if !cfg.NoColor {
		t.Fatalf("nocolor override ignored")
	}
}

func TestTestProfileDefaults(t *testing.T) {
	cfg := defaultConfig(ProfileTest)
	if cfg.Level != zerolog.DebugLevel || cfg.Timestamp {
		t.Fatalf("unexpected test profile defaults: %+v", cfg)
	}
}

func TestInitLoggerDerivesFromConfiguredLogger(t *testing.T) {
	ConfigureTests()

	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	logger := InitLogger("fusiond")
	logger.Info().Msg("started")

	line := buf.String()
	if !strings.Contains(line, `"app":"fusiond"`) {
		t.Fatalf("app tag missing: %q", line)
	}
	// The configured logger carries no timestamp; InitLogger must not
	// replace it with one of its own.
	if strings.Contains(line, `"time"`) {
		t.Fatalf("InitLogger replaced the configured logger: %q", line)
	}
}
