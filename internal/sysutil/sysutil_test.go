package sysutil

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// restoreLogging puts the zerolog globals back after a test mutates them.
func restoreLogging(t *testing.T) {
	t.Helper()
	l, lvl, ctxL := log.Logger, zerolog.GlobalLevel(), zerolog.DefaultContextLogger
	t.Cleanup(func() {
		log.Logger = l
		zerolog.SetGlobalLevel(lvl)
		zerolog.DefaultContextLogger = ctxL
	})
}

func TestSetLogLevel(t *testing.T) {
	restoreLogging(t)

	want := map[string]zerolog.Level{
		"trace":     zerolog.TraceLevel,
		"  DeBuG  ": zerolog.DebugLevel,
		"":          zerolog.InfoLevel,
		"INFO":      zerolog.InfoLevel,
		" Warning":  zerolog.WarnLevel,
		"warn":      zerolog.WarnLevel,
		"error":     zerolog.ErrorLevel,
		"fatal":     zerolog.FatalLevel,
		"panic":     zerolog.PanicLevel,
		"verbose":   zerolog.InfoLevel,
		"disabled":  zerolog.InfoLevel,
	}
	for in, lvl := range want {
		SetLogLevel(in)
		if got := zerolog.GlobalLevel(); got != lvl {
			t.Fatalf("SetLogLevel(%q) set %v; want %v", in, got, lvl)
		}
	}
}

func TestConfigureLogger_JSON(t *testing.T) {
	restoreLogging(t)

	var buf bytes.Buffer
	ConfigureLogger(&buf, "warn", false)
	log.Info().Msg("filtered")
	log.Ctx(context.Background()).Warn().Str("template.code", "welcome").Msg("stale cache")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("want only the warn line, got:\n%s", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["service"] != "template-service" || entry["template.code"] != "welcome" || entry["time"] == nil {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestConfigureLogger_Console(t *testing.T) {
	restoreLogging(t)

	var buf bytes.Buffer
	ConfigureLogger(&buf, "debug", true)
	log.Debug().Msg("seeded templates")
	out := strings.TrimSpace(buf.String())
	if strings.HasPrefix(out, "{") || !strings.Contains(out, "seeded templates") {
		t.Fatalf("expected console output, got: %s", out)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{" ", "\t", "\n"}, ""},
		{[]string{"", "  v1.4.0  ", "dev"}, "  v1.4.0  "},
		{[]string{"v2", "dev"}, "v2"},
	}
	for _, tc := range cases {
		if got := FirstNonEmpty(tc.in...); got != tc.want {
			t.Fatalf("FirstNonEmpty(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}
