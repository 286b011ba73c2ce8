package workflow

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/slidewise/deckd/internal/core"
)

// Checkpointer persists workflow state snapshots to disk after each
// phase, so a crashed process can inspect or resume in-flight requests.
// Files are written atomically; a torn checkpoint is never observable.
type Checkpointer struct {
	dir string
}

// NewCheckpointer creates the checkpoint directory if needed.
func NewCheckpointer(dir string) (*Checkpointer, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory: %w", err)
	}
	return &Checkpointer{dir: dir}, nil
}

func (c *Checkpointer) path(requestID string) string {
	return filepath.Join(c.dir, requestID+".yaml")
}

// Save writes the state snapshot for its request.
func (c *Checkpointer) Save(state *core.WorkflowState) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}
	if err := atomicWriteFile(c.path(state.RequestID), data, 0o600); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	return nil
}

// Load reads a checkpointed state by request id. Request ids can come
// from a resuming client, so the read is scoped to the checkpoint
// directory.
func (c *Checkpointer) Load(requestID string) (*core.WorkflowState, error) {
	data, err := readScoped(c.path(requestID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrNotFound("checkpoint", requestID)
		}
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}
	var state core.WorkflowState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshaling checkpoint: %w", err)
	}
	return &state, nil
}

// Delete removes a request's checkpoint. Missing files are fine.
func (c *Checkpointer) Delete(requestID string) error {
	err := os.Remove(c.path(requestID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing checkpoint: %w", err)
	}
	return nil
}
