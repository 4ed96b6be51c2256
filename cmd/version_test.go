package cmd

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	originalAppVersion := AppVersion
	originalBuildTime := BuildTime
	originalGitCommit := GitCommit
	defer func() {
		AppVersion = originalAppVersion
		BuildTime = originalBuildTime
		GitCommit = originalGitCommit
	}()

	AppVersion = "1.2.3"
	BuildTime = "2026-01-01T00:00:00Z"
	GitCommit = "abc1234"

	// The version command prints via fmt.Printf; capture stdout.
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() failed: %v", err)
	}
	os.Stdout = w

	versionCmd.Run(versionCmd, nil)

	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("reading captured output: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"SynaGraph 1.2.3",
		"Build Time: 2026-01-01T00:00:00Z",
		"Git Commit: abc1234",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("version output missing %q, got:\n%s", want, out)
		}
	}
}

func TestRootCommand_HasVersionSubcommand(t *testing.T) {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "version" {
			return
		}
	}
	t.Error("root command is missing the version subcommand")
}
