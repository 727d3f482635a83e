package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Format: "json", Output: &buf})
	l.With(String("run", "abc")).Warn(context.Background(), "spot discarded", Int("field", 2), Float("mu", 0.5))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "spot discarded" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["run"] != "abc" {
		t.Errorf("run = %v", rec["run"])
	}
	if rec["field"] != float64(2) {
		t.Errorf("field = %v", rec["field"])
	}
}

func TestNew_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Output: &buf})
	l.Info(context.Background(), "hidden")
	l.Error(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("error record missing: %q", out)
	}
}

func TestContextLogger(t *testing.T) {
	if _, ok := FromContext(context.Background()).(noopLogger); !ok {
		t.Error("FromContext without logger should return noop")
	}
	var buf bytes.Buffer
	l := New(Config{Output: &buf})
	ctx := ContextWithLogger(context.Background(), l)
	FromContext(ctx).Info(ctx, "hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("context logger not used: %q", buf.String())
	}
}
