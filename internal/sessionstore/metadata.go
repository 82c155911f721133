package sessionstore

import (
	"encoding/json"
	"fmt"
)

// Metadata is metadata.json: workspace path, created/last-used epoch, and
// a unique session id minted once at Initialize time (spec.md 6.3).
type Metadata struct {
	Workspace          string `json:"workspace"`
	CreatedAtEpochSecs int64  `json:"created_at_epoch_secs"`
	LastUsedEpochSecs  int64  `json:"last_used_epoch_secs"`
	SessionID          string `json:"session_id,omitempty"`
}

// SessionMeta is meta.json: the session's human-facing title, creation
// time, optional stack description, and optional deterministic test
// command (spec.md 6.2).
type SessionMeta struct {
	Title            string  `json:"title"`
	CreatedAt        string  `json:"created_at"`
	StackDescription string  `json:"stack_description,omitempty"`
	TestCommand      *string `json:"test_command,omitempty"`
}

// TaskFailure is one exhaustion record appended to task-fails.json
// (spec.md 3.4, 6.4).
type TaskFailure struct {
	Kind               string `json:"kind"`
	TopTaskID          string `json:"top_task_id"`
	TopTaskTitle       string `json:"top_task_title"`
	Attempts           int    `json:"attempts"`
	Reason             string `json:"reason"`
	ActionTaken        string `json:"action_taken"`
	CreatedAtEpochSecs int64  `json:"created_at_epoch_secs"`
}

func (s *Store) readMetadata() (Metadata, error) {
	data, err := s.readFileOptional(metadataFilename)
	if err != nil {
		return Metadata{}, err
	}
	if data == nil {
		return Metadata{}, nil
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("sessionstore: parsing %s: %w", metadataFilename, err)
	}
	return m, nil
}

// SessionID returns the session's unique id, minted once at Initialize
// time and stable across OpenExisting calls for the life of the session
// directory. Sessions created before this field existed return "".
func (s *Store) SessionID() (string, error) {
	m, err := s.readMetadata()
	if err != nil {
		return "", err
	}
	return m.SessionID, nil
}

func (s *Store) writeMetadata(m Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("sessionstore: encoding %s: %w", metadataFilename, err)
	}
	return s.writeFile(metadataFilename, data)
}

// ReadSessionMeta reads meta.json. A missing file returns the zero value,
// matching spec.md 4.1's "read of a missing optional file returns the
// empty equivalent" guarantee — meta.json is operator-authored; Initialize
// writes it as an empty object.
func (s *Store) ReadSessionMeta() (SessionMeta, error) {
	data, err := s.readFileOptional(metaFilename)
	if err != nil {
		return SessionMeta{}, err
	}
	if data == nil {
		return SessionMeta{}, nil
	}
	var m SessionMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return SessionMeta{}, fmt.Errorf("sessionstore: parsing %s: %w", metaFilename, err)
	}
	return m, nil
}
