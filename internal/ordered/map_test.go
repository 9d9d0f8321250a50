package ordered

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestSetGetRoundTrip(t *testing.T) {
	t.Parallel()

	m := NewMap[string, string](0)
	m.Set("cuda_version", "12.1.0")
	m.Set("python_version", "3.11")

	v, ok := m.Get("cuda_version")
	if !ok || v != "12.1.0" {
		t.Errorf(`m.Get("cuda_version") = %q, %t, want "12.1.0", true`, v, ok)
	}
	if got, want := m.Len(), 2; got != want {
		t.Errorf("m.Len() = %d, want %d", got, want)
	}
}

func TestSetPreservesInsertionOrder(t *testing.T) {
	t.Parallel()

	m := NewMap[string, int](0)
	m.Set("c", 1)
	m.Set("a", 2)
	m.Set("b", 3)
	m.Set("a", 4) // update in place

	var keys []string
	m.Range(func(k string, v int) error {
		keys = append(keys, k)
		return nil
	})
	want := []string{"c", "a", "b"}
	if diff := cmp.Diff(keys, want); diff != "" {
		t.Errorf("key order diff (-got +want):\n%s", diff)
	}

	if v, _ := m.Get("a"); v != 4 {
		t.Errorf(`m.Get("a") = %d, want 4`, v)
	}
}

func TestDeleteAndCompact(t *testing.T) {
	t.Parallel()

	m := NewMap[string, int](0)
	for _, k := range []string{"a", "b", "c", "d"} {
		m.Set(k, 0)
	}
	m.Delete("a")
	m.Delete("c")

	if m.Contains("a") || m.Contains("c") {
		t.Errorf("m still contains deleted keys")
	}

	var keys []string
	m.Range(func(k string, v int) error {
		keys = append(keys, k)
		return nil
	})
	if diff := cmp.Diff(keys, []string{"b", "d"}); diff != "" {
		t.Errorf("key order diff after delete (-got +want):\n%s", diff)
	}
}

func TestReplaceKeepsPosition(t *testing.T) {
	t.Parallel()

	m := MapFromItems(
		TupleSS{Key: "one", Value: "1"},
		TupleSS{Key: "two", Value: "2"},
		TupleSS{Key: "three", Value: "3"},
	)
	m.Replace("two", "deux", "2")

	var keys []string
	m.Range(func(k, v string) error {
		keys = append(keys, k)
		return nil
	})
	if diff := cmp.Diff(keys, []string{"one", "deux", "three"}); diff != "" {
		t.Errorf("key order diff after replace (-got +want):\n%s", diff)
	}
}

func TestUnmarshalYAMLPreservesOrder(t *testing.T) {
	t.Parallel()

	const doc = `cuda_version: "12.1.0"
python_version: "3.11"
arch: x86_64
`
	m := NewMap[string, any](0)
	if err := yaml.Unmarshal([]byte(doc), m); err != nil {
		t.Fatalf("yaml.Unmarshal = %v", err)
	}

	var keys []string
	m.Range(func(k string, v any) error {
		keys = append(keys, k)
		return nil
	})
	want := []string{"cuda_version", "python_version", "arch"}
	if diff := cmp.Diff(keys, want); diff != "" {
		t.Errorf("key order diff (-got +want):\n%s", diff)
	}
}

func TestUnmarshalYAMLMerges(t *testing.T) {
	t.Parallel()

	const doc = `defaults: &defaults
  queue: cpu_queue
  os: linux
agents:
  <<: *defaults
  queue: gpu_queue
`
	m := NewMap[string, any](0)
	if err := yaml.Unmarshal([]byte(doc), m); err != nil {
		t.Fatalf("yaml.Unmarshal = %v", err)
	}

	a, ok := m.Get("agents")
	if !ok {
		t.Fatalf("m.Get(agents) = _, false, want true")
	}
	agents, ok := a.(*MapSA)
	if !ok {
		t.Fatalf("agents is %T, want *MapSA", a)
	}

	// The outer key wins over the merged one.
	if q, _ := agents.Get("queue"); q != "gpu_queue" {
		t.Errorf(`agents.Get("queue") = %v, want "gpu_queue"`, q)
	}
	if o, _ := agents.Get("os"); o != "linux" {
		t.Errorf(`agents.Get("os") = %v, want "linux"`, o)
	}
}

func TestMarshalJSONOrdered(t *testing.T) {
	t.Parallel()

	m := MapFromItems(
		TupleSA{Key: "z", Value: "last?"},
		TupleSA{Key: "a", Value: 1},
	)
	b, err := m.MarshalJSON()
	if err != nil {
		t.Fatalf("m.MarshalJSON() = %v", err)
	}
	got := strings.ReplaceAll(string(b), "\n", "")
	const want = `{"z":"last?","a":1}`
	if got != want {
		t.Errorf("m.MarshalJSON() = %q, want %q", got, want)
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()

	a := MapFromItems(TupleSS{Key: "k", Value: "v"}, TupleSS{Key: "l", Value: "w"})
	b := MapFromItems(TupleSS{Key: "k", Value: "v"}, TupleSS{Key: "l", Value: "w"})
	c := MapFromItems(TupleSS{Key: "l", Value: "w"}, TupleSS{Key: "k", Value: "v"})

	if !EqualSS(a, b) {
		t.Errorf("EqualSS(a, b) = false, want true")
	}
	if EqualSS(a, c) {
		t.Errorf("EqualSS(a, c) = true, want false (order differs)")
	}
}
