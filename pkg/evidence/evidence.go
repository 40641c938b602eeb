// Package evidence records what happened during a run as a directory of
// JSON files: run.json, one file per stage, the final report, and
// content-addressed blobs.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zen-systems/drrepo/pkg/logging"
	"github.com/zen-systems/drrepo/pkg/workflow"
)

// RunRecord captures run-level metadata.
type RunRecord struct {
	ID           string                `json:"id"`
	StartedAt    time.Time             `json:"started_at"`
	FinishedAt   time.Time             `json:"finished_at,omitempty"`
	Input        workflow.Input        `json:"input"`
	Stages       []string              `json:"stages"`
	Status       workflow.Status       `json:"status"`
	Score        *int                  `json:"score,omitempty"`
	Errors       []workflow.StageError `json:"errors,omitempty"`
	ReadmeBlob   string                `json:"readme_blob,omitempty"`
	Tokens       workflow.TokenCount   `json:"tokens"`
	ToolVersions map[string]string     `json:"tool_versions,omitempty"`
}

// StageRecord captures evidence for a single stage.
type StageRecord struct {
	Name           string              `json:"name"`
	Succeeded      bool                `json:"succeeded"`
	Error          string              `json:"error,omitempty"`
	Fields         []workflow.Field    `json:"fields,omitempty"`
	Findings       []workflow.Finding  `json:"findings,omitempty"`
	Messages       []workflow.Message  `json:"messages,omitempty"`
	Tokens         workflow.TokenCount `json:"tokens"`
	DurationMillis int64               `json:"duration_ms"`
}

// Writer writes evidence bundles to disk. It implements workflow.Observer
// for a single run.
type Writer struct {
	baseDir string
	runDir  string
	logger  *slog.Logger

	mu       sync.Mutex
	run      RunRecord
	firstErr error
}

// NewWriter creates a new evidence writer rooted at baseDir/runID.
func NewWriter(baseDir, runID string) (*Writer, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	runDir := filepath.Join(baseDir, runID)
	for _, dir := range []string{runDir, filepath.Join(runDir, "stages"), filepath.Join(runDir, "blobs")} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}

	return &Writer{
		baseDir: baseDir,
		runDir:  runDir,
		logger:  logging.New("evidence"),
		run:     RunRecord{ID: runID},
	}, nil
}

// RunDir returns the run directory path.
func (w *Writer) RunDir() string {
	return w.runDir
}

// Err returns the first write error seen by the observer callbacks.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.firstErr
}

// SetStages records the planned stage order in run.json.
func (w *Writer) SetStages(names []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.run.Stages = append([]string(nil), names...)
}

// WriteRun writes run metadata to run.json.
func (w *Writer) WriteRun(record RunRecord) error {
	return writeJSON(filepath.Join(w.runDir, "run.json"), record)
}

// WriteStage writes a stage record to stages/<stage>.json.
func (w *Writer) WriteStage(record StageRecord) error {
	if record.Name == "" || strings.ContainsAny(record.Name, `/\`) {
		return fmt.Errorf("invalid stage name %q", record.Name)
	}
	path := filepath.Join(w.runDir, "stages", fmt.Sprintf("%s.json", record.Name))
	return writeJSON(path, record)
}

// WriteReport writes the final report to report.json.
func (w *Writer) WriteReport(r *workflow.Report) error {
	return writeJSON(filepath.Join(w.runDir, "report.json"), r)
}

// WriteBlob stores content under blobs/<kind>-<sha256>.txt and returns the
// path relative to the run directory and the hex digest. Writing the same
// content twice is a no-op.
func (w *Writer) WriteBlob(kind string, content []byte) (string, string, error) {
	sum := sha256.Sum256(content)
	sha := hex.EncodeToString(sum[:])
	ref := "blobs/" + sanitizeKind(kind) + "-" + sha + ".txt"
	path := filepath.Join(w.runDir, filepath.FromSlash(ref))
	if _, err := os.Stat(path); err == nil {
		return ref, sha, nil
	}
	if err := os.WriteFile(path, content, 0600); err != nil {
		return "", "", err
	}
	return ref, sha, nil
}

// RunStarted writes the initial run.json.
func (w *Writer) RunStarted(s *workflow.State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.run.StartedAt = time.Now().UTC()
	w.run.Input = s.Input
	w.run.Status = s.Status
	w.record(w.WriteRun(w.run))
}

// StageFinished writes stages/<stage>.json.
func (w *Writer) StageFinished(stage string, u workflow.Update, err error, elapsed time.Duration) {
	rec := StageRecord{
		Name:           stage,
		Succeeded:      err == nil,
		DurationMillis: elapsed.Milliseconds(),
	}
	if err != nil {
		rec.Error = err.Error()
	} else {
		rec.Fields = u.Fields()
		for _, group := range [][]workflow.Finding{u.Analyses, u.MetadataRecommendations, u.ContentImprovements, u.QualityReviews, u.FactChecks} {
			rec.Findings = append(rec.Findings, group...)
		}
		rec.Messages = u.Messages
		rec.Tokens = workflow.CountTokens(u.Messages)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.record(w.WriteStage(rec))
}

// RunFinished writes report.json, the README blob and the final run.json.
func (w *Writer) RunFinished(s *workflow.State) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.run.FinishedAt = time.Now().UTC()
	w.run.Status = s.Status
	w.run.Errors = append([]workflow.StageError(nil), s.Errors...)
	w.run.Tokens = workflow.CountTokens(s.Messages)
	if s.Report != nil {
		score := s.Report.Score
		w.run.Score = &score
		w.record(w.WriteReport(s.Report))
	}
	if s.Repo != nil && s.Repo.Readme != "" {
		ref, _, err := w.WriteBlob("readme", []byte(s.Repo.Readme))
		w.record(err)
		w.run.ReadmeBlob = ref
	}
	w.record(w.WriteRun(w.run))
}

func (w *Writer) record(err error) {
	if err == nil {
		return
	}
	w.logger.Error("failed to write evidence", "run_dir", w.runDir, "error", err)
	if w.firstErr == nil {
		w.firstErr = err
	}
}

func sanitizeKind(kind string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(kind) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "blob"
	}
	return b.String()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
