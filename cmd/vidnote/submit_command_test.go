package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"vidnote/internal/api"
)

func TestWriteResultIntoDirectory(t *testing.T) {
	dir := t.TempDir()
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	resp := &api.ResultResponse{
		Task:   api.TaskView{TaskID: "abc123def456"},
		Result: api.ResultView{Title: "How to: Build/Deploy?", Markdown: "# Note\n"},
	}
	if err := writeResult(cmd, resp, dir); err != nil {
		t.Fatalf("writeResult: %v", err)
	}

	target := filepath.Join(dir, "How to- Build-Deploy.md")
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	if string(data) != "# Note\n" {
		t.Fatalf("unexpected contents %q", data)
	}
	if !strings.Contains(out.String(), target) {
		t.Fatalf("output should mention %s, got %q", target, out.String())
	}
}

func TestWriteResultToExplicitFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "note.md")
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	resp := &api.ResultResponse{
		Result: api.ResultView{Title: "Demo", Markdown: "# Demo\n"},
	}
	if err := writeResult(cmd, resp, target); err != nil {
		t.Fatalf("writeResult: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	if string(data) != "# Demo\n" {
		t.Fatalf("unexpected contents %q", data)
	}
}
