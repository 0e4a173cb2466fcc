package deps_test

import (
	"testing"

	"vidnote/internal/deps"
	"vidnote/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	testsupport.NewConfig(t, testsupport.WithStubbedBinaries("yt-dlp"))

	statuses := deps.CheckBinaries([]deps.Requirement{
		{Name: "yt-dlp", Command: "yt-dlp"},
		{Name: "missing", Command: "definitely-not-installed-on-this-host"},
		{Name: "blank", Command: "  "},
	})
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if !statuses[0].Available {
		t.Fatalf("stubbed binary should be available: %+v", statuses[0])
	}
	if statuses[1].Available || statuses[1].Detail == "" {
		t.Fatalf("missing binary should report detail: %+v", statuses[1])
	}
	if statuses[2].Available || statuses[2].Detail != "command not configured" {
		t.Fatalf("blank command should be unconfigured: %+v", statuses[2])
	}
}

func TestRequirementsFollowConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	reqs := deps.Requirements(cfg)
	if len(reqs) != 3 {
		t.Fatalf("local transcription needs three binaries, got %d", len(reqs))
	}

	cfg.Transcriber.Kind = "openai"
	reqs = deps.Requirements(cfg)
	for _, req := range reqs {
		if req.Name == "whisper-cli" {
			t.Fatal("cloud transcription should drop the whisper requirement")
		}
	}
}
