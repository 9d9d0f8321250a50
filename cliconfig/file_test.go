package cliconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFileLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "wheelhouse.cfg")
	content := `# wheelhouse config
destination = "s3://my-wheels/nightly"
agent-tags=queue=cpu_queue
no-gates = true

# trailing comment
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("os.WriteFile error = %v", err)
	}

	f := File{Path: path}
	if !f.Exists() {
		t.Fatalf("f.Exists() = false, want true")
	}
	if err := f.Load(); err != nil {
		t.Fatalf("f.Load() error = %v", err)
	}

	want := map[string]string{
		"destination": "s3://my-wheels/nightly",
		"agent-tags":  "queue=cpu_queue",
		"no-gates":    "true",
	}
	if diff := cmp.Diff(f.Config, want); diff != "" {
		t.Errorf("config diff (-got +want):\n%s", diff)
	}
}

func TestFileLoadBadLine(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "wheelhouse.cfg")
	if err := os.WriteFile(path, []byte("not a key value line\n"), 0o644); err != nil {
		t.Fatalf("os.WriteFile error = %v", err)
	}

	f := File{Path: path}
	if err := f.Load(); err == nil {
		t.Error("f.Load() error = nil, want parse error")
	}
}

func TestFileExistsMissing(t *testing.T) {
	t.Parallel()

	f := File{Path: filepath.Join(t.TempDir(), "nope.cfg")}
	if f.Exists() {
		t.Error("f.Exists() = true, want false")
	}
}

func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line, wantKey, wantValue string
		wantErr                  bool
	}{
		{line: "key=value", wantKey: "key", wantValue: "value"},
		{line: "key = spaced out ", wantKey: "key", wantValue: "spaced out"},
		{line: `key="quoted value"`, wantKey: "key", wantValue: "quoted value"},
		{line: "key=a=b", wantKey: "key", wantValue: "a=b"},
		{line: "no separator", wantErr: true},
	}
	for _, test := range tests {
		key, value, err := parseLine(test.line)
		if gotErr := err != nil; gotErr != test.wantErr {
			t.Errorf("parseLine(%q) error = %v, wantErr = %t", test.line, err, test.wantErr)
			continue
		}
		if key != test.wantKey || value != test.wantValue {
			t.Errorf("parseLine(%q) = %q, %q, want %q, %q", test.line, key, value, test.wantKey, test.wantValue)
		}
	}
}
