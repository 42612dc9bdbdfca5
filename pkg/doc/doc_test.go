package doc

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestBuilderPreservesOrderJSON(t *testing.T) {
	b := NewBuilder()
	b.Append("zulu", "z")
	b.Int("alpha", 1)
	b.Bool("mike", true)

	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"zulu":"z","alpha":1,"mike":true}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestBuilderNestedObjects(t *testing.T) {
	b := NewBuilder()
	stage := b.Object("running")
	stage.Duration("min", 3*time.Millisecond)
	stage.Duration("max", 7*time.Millisecond)
	b.Int("operations", 2)

	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"running":{"min":"3ms","max":"7ms"},"operations":2}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestBuilderDurationsAreParseable(t *testing.T) {
	b := NewBuilder()
	b.Duration("other", 1500*time.Microsecond)

	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	d, err := time.ParseDuration(decoded["other"])
	if err != nil {
		t.Fatalf("parse duration %q: %v", decoded["other"], err)
	}
	if d != 1500*time.Microsecond {
		t.Errorf("round trip = %v, want 1.5ms", d)
	}
}

func TestBuilderYAML(t *testing.T) {
	b := NewBuilder()
	b.Append("name", "egress")
	nested := b.Object("stats")
	nested.Duration("avg", 5*time.Millisecond)

	data, err := yaml.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "name: egress") {
		t.Errorf("missing scalar field in %q", out)
	}
	if !strings.Contains(out, "avg: 5ms") {
		t.Errorf("missing nested duration in %q", out)
	}
	// Top-level key order must survive.
	if strings.Index(out, "name:") > strings.Index(out, "stats:") {
		t.Errorf("field order not preserved in %q", out)
	}
}

func TestBuilderString(t *testing.T) {
	b := NewBuilder()
	b.Int("operations", 3)
	if got := b.String(); got != `{"operations":3}` {
		t.Errorf("String() = %s", got)
	}
}
