package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/zen-systems/drrepo/pkg/logging"
	"github.com/zen-systems/drrepo/pkg/readme"
	"github.com/zen-systems/drrepo/pkg/repo"
	"github.com/zen-systems/drrepo/pkg/workflow"
)

func TestEvidenceWriter(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewWriter(dir, "run-123")
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	if err := writer.WriteRun(RunRecord{ID: "run-123", Stages: []string{"stage1"}}); err != nil {
		t.Fatalf("write run: %v", err)
	}
	if err := writer.WriteStage(StageRecord{Name: "stage1", Succeeded: true}); err != nil {
		t.Fatalf("write stage: %v", err)
	}
	if err := writer.WriteStage(StageRecord{Name: "../escape"}); err == nil {
		t.Fatal("expected error for stage name with a path separator")
	}

	if _, err := os.Stat(filepath.Join(writer.RunDir(), "run.json")); err != nil {
		t.Fatalf("missing run.json: %v", err)
	}
	if _, err := os.Stat(filepath.Join(writer.RunDir(), "stages", "stage1.json")); err != nil {
		t.Fatalf("missing stage file: %v", err)
	}

	if runtime.GOOS != "windows" {
		assertPerm(t, writer.RunDir(), 0700)
		assertPerm(t, filepath.Join(writer.RunDir(), "stages"), 0700)
		assertPerm(t, filepath.Join(writer.RunDir(), "blobs"), 0700)
		assertPerm(t, filepath.Join(writer.RunDir(), "run.json"), 0600)
		assertPerm(t, filepath.Join(writer.RunDir(), "stages", "stage1.json"), 0600)
	}
}

func TestNewWriterValidation(t *testing.T) {
	if _, err := NewWriter("", "run"); err == nil {
		t.Error("expected error for empty base dir")
	}
	if _, err := NewWriter(t.TempDir(), ""); err == nil {
		t.Error("expected error for empty run ID")
	}
}

func TestWriteBlob(t *testing.T) {
	writer, err := NewWriter(t.TempDir(), "run1")
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	content := []byte("hello")
	sum := sha256.Sum256(content)
	expectedSha := hex.EncodeToString(sum[:])

	ref, sha, err := writer.WriteBlob("readme", content)
	if err != nil {
		t.Fatalf("write blob: %v", err)
	}
	if sha != expectedSha {
		t.Fatalf("sha mismatch: %s", sha)
	}

	blobPath := filepath.Join(writer.RunDir(), ref)
	data, err := os.ReadFile(blobPath)
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if string(data) != string(content) {
		t.Fatalf("content mismatch: %q", string(data))
	}
	if runtime.GOOS != "windows" {
		assertPerm(t, blobPath, 0600)
	}

	ref2, sha2, err := writer.WriteBlob("readme", content)
	if err != nil {
		t.Fatalf("write blob again: %v", err)
	}
	if ref2 != ref || sha2 != sha {
		t.Fatalf("expected same ref and sha")
	}
}

func TestWriteBlobKindSanitization(t *testing.T) {
	writer, err := NewWriter(t.TempDir(), "run2")
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	ref, _, err := writer.WriteBlob("Readme 123/../", []byte("x"))
	if err != nil {
		t.Fatalf("write blob: %v", err)
	}
	if !strings.HasPrefix(ref, "blobs/readme123-") {
		t.Fatalf("unexpected ref: %s", ref)
	}
	if strings.Count(ref, "/") != 1 {
		t.Fatalf("unexpected path separators in ref: %s", ref)
	}

	ref, _, err = writer.WriteBlob("!!!", []byte("y"))
	if err != nil {
		t.Fatalf("write blob: %v", err)
	}
	if !strings.HasPrefix(ref, "blobs/blob-") {
		t.Fatalf("expected blob kind fallback in ref: %s", ref)
	}
}

func TestWriterObservesRun(t *testing.T) {
	writer, err := NewWriter(t.TempDir(), "run-obs")
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	stages := []workflow.Stage{
		workflow.StageFunc{
			StageName: "fetch",
			Fields:    []workflow.Field{workflow.FieldRepo, workflow.FieldReadme, workflow.FieldAnalyses},
			Fn: func(context.Context, *workflow.State) (workflow.Update, error) {
				return workflow.Update{
					Repo:     &repo.Snapshot{Name: "widget", Readme: "# Widget\n"},
					Readme:   readme.Analyze("# Widget\n"),
					Analyses: []workflow.Finding{{Summary: "fine"}},
				}, nil
			},
		},
		workflow.StageFunc{
			StageName: "broken",
			Fields:    []workflow.Field{workflow.FieldQualityReviews},
			Fn: func(context.Context, *workflow.State) (workflow.Update, error) {
				return workflow.Update{}, errors.New("boom")
			},
		},
	}
	synth := synthFunc(func(s *workflow.State) (*workflow.Report, error) {
		return &workflow.Report{Subject: s.Input.ID(), Score: 42}, nil
	})
	e, err := workflow.NewExecutor(synth, stages, workflow.WithObserver(writer), workflow.WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	writer.SetStages(e.Stages())

	if _, err := e.Run(context.Background(), workflow.Input{RepoURL: "https://github.com/octo/widget"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := writer.Err(); err != nil {
		t.Fatalf("writer error: %v", err)
	}

	var run RunRecord
	readJSON(t, filepath.Join(writer.RunDir(), "run.json"), &run)
	if run.Status != workflow.StatusCompletedWithErrors || run.Score == nil || *run.Score != 42 {
		t.Errorf("run record = %+v", run)
	}
	if diff := cmp.Diff([]string{"fetch", "broken"}, run.Stages); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
	if run.ReadmeBlob == "" || run.FinishedAt.IsZero() || len(run.Errors) != 1 {
		t.Errorf("run record incomplete: %+v", run)
	}

	var fetch StageRecord
	readJSON(t, filepath.Join(writer.RunDir(), "stages", "fetch.json"), &fetch)
	if !fetch.Succeeded || len(fetch.Findings) != 1 {
		t.Errorf("fetch record = %+v", fetch)
	}
	var broken StageRecord
	readJSON(t, filepath.Join(writer.RunDir(), "stages", "broken.json"), &broken)
	if broken.Succeeded || broken.Error != "boom" {
		t.Errorf("broken record = %+v", broken)
	}

	var report workflow.Report
	readJSON(t, filepath.Join(writer.RunDir(), "report.json"), &report)
	if report.Score != 42 {
		t.Errorf("report score = %d", report.Score)
	}
}

func TestWriterTotalsTokens(t *testing.T) {
	writer, err := NewWriter(t.TempDir(), "run-tokens")
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	exchange := func(prompt, completion int) []workflow.Message {
		return []workflow.Message{
			{Role: "user", Content: "q"},
			{Role: "assistant", Content: "a", PromptTokens: prompt, CompletionTokens: completion},
		}
	}
	stages := []workflow.Stage{
		workflow.StageFunc{
			StageName: "first",
			Fields:    []workflow.Field{workflow.FieldMessages},
			Fn: func(context.Context, *workflow.State) (workflow.Update, error) {
				return workflow.Update{Messages: exchange(10, 4)}, nil
			},
		},
		workflow.StageFunc{
			StageName: "second",
			Fields:    []workflow.Field{workflow.FieldMessages},
			Fn: func(context.Context, *workflow.State) (workflow.Update, error) {
				return workflow.Update{Messages: exchange(7, 3)}, nil
			},
		},
		workflow.StageFunc{
			StageName: "rejected",
			Fields:    []workflow.Field{workflow.FieldMessages},
			Fn: func(context.Context, *workflow.State) (workflow.Update, error) {
				return workflow.Update{Messages: exchange(100, 100)}, errors.New("boom")
			},
		},
	}
	synth := synthFunc(func(s *workflow.State) (*workflow.Report, error) {
		return &workflow.Report{Subject: s.Input.ID()}, nil
	})
	e, err := workflow.NewExecutor(synth, stages, workflow.WithObserver(writer), workflow.WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	if _, err := e.Run(context.Background(), workflow.Input{RepoURL: "https://github.com/octo/widget"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var first StageRecord
	readJSON(t, filepath.Join(writer.RunDir(), "stages", "first.json"), &first)
	if diff := cmp.Diff(workflow.TokenCount{Prompt: 10, Completion: 4, Total: 14}, first.Tokens); diff != "" {
		t.Errorf("stage tokens mismatch (-want +got):\n%s", diff)
	}
	var rejected StageRecord
	readJSON(t, filepath.Join(writer.RunDir(), "stages", "rejected.json"), &rejected)
	if rejected.Tokens != (workflow.TokenCount{}) {
		t.Errorf("failed stage should record no tokens, got %+v", rejected.Tokens)
	}

	var run RunRecord
	readJSON(t, filepath.Join(writer.RunDir(), "run.json"), &run)
	if diff := cmp.Diff(workflow.TokenCount{Prompt: 17, Completion: 7, Total: 24}, run.Tokens); diff != "" {
		t.Errorf("run tokens mismatch (-want +got):\n%s", diff)
	}
}

type synthFunc func(*workflow.State) (*workflow.Report, error)

func (f synthFunc) Synthesize(s *workflow.State) (*workflow.Report, error) { return f(s) }

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
}

func assertPerm(t *testing.T, path string, expected os.FileMode) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if info.Mode().Perm() != expected {
		t.Fatalf("expected %s mode %o, got %o", path, expected, info.Mode().Perm())
	}
}
