package stdin_test

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"testing"

	"github.com/wheelhouse-ci/wheelhouse/stdin"
)

func TestMain(m *testing.M) {
	switch os.Getenv("GO_TEST_MODE") {
	case "":
		// Normal test mode.
		os.Exit(m.Run())

	case "stdin_check":
		fmt.Printf("%v", stdin.IsPipe())
		os.Exit(0)
	}
}

func TestStdinIsNotPipe(t *testing.T) {
	cmd := exec.Command(os.Args[0])
	cmd.Env = []string{"GO_TEST_MODE=stdin_check"}
	cmd.Stdin = nil

	output, err := cmd.Output()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(output), "false"; got != want {
		t.Errorf("stdin_check = %q, want %q", got, want)
	}
}

func TestStdinIsPipe(t *testing.T) {
	cmd := exec.Command(os.Args[0])
	cmd.Env = []string{"GO_TEST_MODE=stdin_check"}
	cmd.Stdin = bytes.NewBufferString("wheels")

	output, err := cmd.Output()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(output), "true"; got != want {
		t.Errorf("stdin_check = %q, want %q", got, want)
	}
}
