package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/orc-engine/orc/internal/core"
)

// FileStore is a Store backed by an in-memory index (for fast reads) mirrored
// to JSON documents on disk, so executions survive a process restart. Writes
// go through writeFileAtomic, following the teacher's state-persistence
// convention; artifact content is additionally mirrored to a plain text file
// per spec.md §4.6's "optional durable file mirror".
type FileStore struct {
	*MemoryStore
	baseDir string
}

// NewFileStore opens (creating if necessary) a file-backed store rooted at
// baseDir, hydrating its in-memory index from any documents already there.
func NewFileStore(baseDir string) (*FileStore, error) {
	for _, sub := range []string{"executions", "artifacts", "budget", "approvals", "templates"} {
		if err := os.MkdirAll(filepath.Join(baseDir, sub), 0o755); err != nil {
			return nil, err
		}
	}
	fs := &FileStore{MemoryStore: NewMemoryStore(), baseDir: baseDir}
	if err := fs.hydrate(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) path(parts ...string) string {
	return filepath.Join(append([]string{fs.baseDir}, parts...)...)
}

func (fs *FileStore) hydrate() error {
	if err := hydrateDir(fs.path("executions"), func(data []byte) error {
		var e core.WorkflowExecution
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		return fs.MemoryStore.CreateExecution(&e)
	}); err != nil {
		return err
	}
	if err := hydrateDir(fs.path("artifacts"), func(data []byte) error {
		var a core.Artifact
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		return fs.MemoryStore.CreateArtifact(&a)
	}); err != nil {
		return err
	}
	if err := hydrateDir(fs.path("budget"), func(data []byte) error {
		var b core.BudgetRow
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		return fs.MemoryStore.UpsertBudgetRow(&b)
	}); err != nil {
		return err
	}
	entries, err := os.ReadDir(fs.path("approvals"))
	if err != nil {
		return err
	}
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".jsonl") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(fs.path("approvals"), ent.Name()))
		if err != nil {
			return err
		}
		for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			if line == "" {
				continue
			}
			var rec core.ApprovalRecord
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				return err
			}
			_ = fs.MemoryStore.AppendApproval(rec)
		}
	}
	return hydrateDir(fs.path("templates"), func(data []byte) error {
		var t core.WorkflowTemplate
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		return fs.MemoryStore.SaveTemplate(&t)
	})
}

func hydrateDir(dir string, load func([]byte) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if err := load(data); err != nil {
			return fmt.Errorf("hydrate %s: %w", name, err)
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data, 0o644)
}

func (fs *FileStore) CreateExecution(e *core.WorkflowExecution) error {
	if err := fs.MemoryStore.CreateExecution(e); err != nil {
		return err
	}
	return writeJSON(fs.path("executions", e.ID+".json"), e)
}

func (fs *FileStore) UpdateExecution(e *core.WorkflowExecution) error {
	if err := fs.MemoryStore.UpdateExecution(e); err != nil {
		return err
	}
	return writeJSON(fs.path("executions", e.ID+".json"), e)
}

func (fs *FileStore) DeleteExecution(id string) error {
	if err := fs.MemoryStore.DeleteExecution(id); err != nil {
		return err
	}
	_ = os.Remove(fs.path("executions", id+".json"))
	_ = os.Remove(fs.path("approvals", id+".jsonl"))
	return nil
}

func (fs *FileStore) CreateArtifact(a *core.Artifact) error {
	if err := fs.MemoryStore.CreateArtifact(a); err != nil {
		return err
	}
	if err := writeJSON(fs.path("artifacts", a.ID+".json"), a); err != nil {
		return err
	}
	if a.WorkflowExecutionID == "" {
		return nil
	}
	rel := artifactFileName(a.WorkflowExecutionID, a.ID, a.Name)
	full := fs.path("content", rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return writeFileAtomic(full, []byte(a.Content), 0o644)
}

func (fs *FileStore) UpdateArtifact(a *core.Artifact) error {
	if err := fs.MemoryStore.UpdateArtifact(a); err != nil {
		return err
	}
	if err := writeJSON(fs.path("artifacts", a.ID+".json"), a); err != nil {
		return err
	}
	rel := artifactFileName(a.WorkflowExecutionID, a.ID, a.Name)
	full := fs.path("content", rel)
	return writeFileAtomic(full, []byte(a.Content), 0o644)
}

func (fs *FileStore) DeleteArtifact(id string) error {
	a, err := fs.MemoryStore.GetArtifact(id)
	if err == nil && a.WorkflowExecutionID != "" {
		rel := artifactFileName(a.WorkflowExecutionID, a.ID, a.Name)
		_ = os.Remove(fs.path("content", rel))
	}
	if err := fs.MemoryStore.DeleteArtifact(id); err != nil {
		return err
	}
	_ = os.Remove(fs.path("artifacts", id+".json"))
	return nil
}

func (fs *FileStore) CleanupWorkflow(workflowExecutionID string) error {
	artifacts, _ := fs.MemoryStore.ListArtifactsByWorkflow(workflowExecutionID)
	if err := fs.MemoryStore.CleanupWorkflow(workflowExecutionID); err != nil {
		return err
	}
	for _, a := range artifacts {
		_ = os.Remove(fs.path("artifacts", a.ID+".json"))
	}
	dir := fs.path("content", workflowExecutionID)
	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) == 0 {
		_ = os.Remove(dir)
	}
	return nil
}

func (fs *FileStore) UpsertBudgetRow(row *core.BudgetRow) error {
	if err := fs.MemoryStore.UpsertBudgetRow(row); err != nil {
		return err
	}
	name := string(row.Scope) + "_" + sanitizeName(row.ScopeID) + ".json"
	return writeJSON(fs.path("budget", name), row)
}

func (fs *FileStore) AppendApproval(rec core.ApprovalRecord) error {
	if err := fs.MemoryStore.AppendApproval(rec); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(fs.path("approvals", rec.ExecutionID+".jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}

func (fs *FileStore) SaveTemplate(t *core.WorkflowTemplate) error {
	if err := fs.MemoryStore.SaveTemplate(t); err != nil {
		return err
	}
	return writeJSON(fs.path("templates", t.ID+".json"), t)
}

var _ Store = (*FileStore)(nil)
