// Package checkpoint implements the Checkpoint Store (spec.md §4.7,
// C7): atomic save/load of a run's recovery record, and resuming a
// chunk list against it so already-completed chunks are skipped.
package checkpoint

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/pacepace/robocurse/chunker"
	"github.com/pacepace/robocurse/internal/atomicwrite"
)

// SchemaVersion is bumped whenever State's on-disk shape changes
// incompatibly. Load rejects a file with a newer version and treats a
// mismatch as CorruptState (spec.md §7: "Checkpoint schema mismatch").
const SchemaVersion = 1

// State is the persisted recovery record (spec.md §3 Checkpoint, §4.7).
type State struct {
	SessionID                  string   `json:"sessionId"`
	ProfileName                string   `json:"profileName"`
	SchemaVersion              int      `json:"schemaVersion"`
	CompletedChunkFingerprints []string `json:"completedChunkFingerprints"`
	CompletedBytes             int64    `json:"completedBytes"`
	CompletedFiles             int64    `json:"completedFiles"`
}

// Store persists checkpoints under a directory, one file per profile
// (spec.md §6 persisted state layout: "Checkpoint/<profile>.json").
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) pathFor(profileName string) string {
	return s.dir + string(os.PathSeparator) + profileName + ".json"
}

// Save writes state to disk via write-temp-then-rename (spec.md §4.7).
func (s *Store) Save(state State) error {
	state.SchemaVersion = SchemaVersion

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding checkpoint")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(err, "creating checkpoint directory")
	}

	return atomicwrite.WriteFile(s.pathFor(state.ProfileName), data)
}

// CorruptCheckpointError is returned by Load when the on-disk record
// can't be parsed or carries an unsupported schema version (spec.md
// §7 CorruptState policy: "Drop the bad artifact, log Warning, continue
// without it" — callers should treat this error as "no checkpoint").
type CorruptCheckpointError struct {
	Path string
	Err  error
}

func (e *CorruptCheckpointError) Error() string {
	return "corrupt checkpoint at " + e.Path + ": " + e.Err.Error()
}

func (e *CorruptCheckpointError) Unwrap() error { return e.Err }

// Load reads the checkpoint for profileName. A missing file returns
// (nil, nil) — no prior run. A malformed or too-new file returns
// (nil, *CorruptCheckpointError) so callers can log and proceed
// without it rather than failing the run.
func (s *Store) Load(profileName string) (*State, error) {
	path := s.pathFor(profileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "reading checkpoint")
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, &CorruptCheckpointError{Path: path, Err: err}
	}

	if state.SchemaVersion > SchemaVersion {
		return nil, &CorruptCheckpointError{Path: path, Err: errors.Errorf("unsupported schema version %d", state.SchemaVersion)}
	}

	return &state, nil
}

// Resume marks each chunk in chunks whose Fingerprint() is present in
// checkpoint's completed set as chunker.Complete, without running it,
// and returns the count of chunks resumed plus the cumulative bytes
// and files those chunks represent (spec.md §4.7: "bumping
// CompletedChunks and cumulative counters so downstream aggregates are
// exact").
func Resume(chunks []*chunker.Chunk, checkpoint *State) (resumedCount int, resumedBytes, resumedFiles int64) {
	if checkpoint == nil {
		return 0, 0, 0
	}

	completed := make(map[string]bool, len(checkpoint.CompletedChunkFingerprints))
	for _, fp := range checkpoint.CompletedChunkFingerprints {
		completed[fp] = true
	}

	for _, c := range chunks {
		if !completed[c.Fingerprint()] {
			continue
		}

		c.Status = chunker.Complete
		resumedCount++
		resumedBytes += c.EstimatedSize
		resumedFiles += c.EstimatedFiles
	}

	return resumedCount, resumedBytes, resumedFiles
}
