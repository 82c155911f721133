package sessionstore

import (
	"encoding/json"
	"fmt"

	"github.com/zjrosen/metaagentd/internal/log"
	"github.com/zjrosen/metaagentd/internal/taskgraph"
)

// ReadTasks decodes tasks.json into its wire-format entries. A missing file
// returns an empty slice (spec.md 4.1).
func (s *Store) ReadTasks() ([]taskgraph.Entry, error) {
	data, err := s.readFileOptional(tasksFilename)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return taskgraph.ParseEntries(data)
}

// WriteTasks serializes entries back to tasks.json.
func (s *Store) WriteTasks(entries []taskgraph.Entry) error {
	if entries == nil {
		entries = []taskgraph.Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("sessionstore: encoding %s: %w", tasksFilename, err)
	}
	return s.writeFile(tasksFilename, data)
}

// ReadPlanner returns planner.md's contents, or "" if absent.
func (s *Store) ReadPlanner() (string, error) {
	data, err := s.readFileOptional(plannerFilename)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WritePlanner replaces planner.md's contents.
func (s *Store) WritePlanner(content string) error {
	return s.writeFile(plannerFilename, []byte(content))
}

// ReadProjectInfo returns project-info.md's contents, or "" if absent.
func (s *Store) ReadProjectInfo() (string, error) {
	data, err := s.readFileOptional(projectInfoFilename)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteProjectInfo replaces project-info.md's contents.
func (s *Store) WriteProjectInfo(content string) error {
	return s.writeFile(projectInfoFilename, []byte(content))
}

// ReadRollingContext decodes rolling_context.json's string array. A missing
// file returns an empty slice.
func (s *Store) ReadRollingContext() ([]string, error) {
	data, err := s.readFileOptional(rollingContextFilename)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("sessionstore: parsing %s: %w", rollingContextFilename, err)
	}
	return entries, nil
}

// WriteRollingContext replaces rolling_context.json's contents.
func (s *Store) WriteRollingContext(entries []string) error {
	if entries == nil {
		entries = []string{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("sessionstore: encoding %s: %w", rollingContextFilename, err)
	}
	return s.writeFile(rollingContextFilename, data)
}

// ReadTaskFails decodes task-fails.json. If the existing file is
// unparseable it is treated as empty rather than returned as an error
// (spec.md 4.1's "log-and-replace" recovery rule), since this file is an
// append-only audit log, not authoritative state.
func (s *Store) ReadTaskFails() ([]TaskFailure, error) {
	data, err := s.readFileOptional(taskFailsFilename)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var fails []TaskFailure
	if err := json.Unmarshal(data, &fails); err != nil {
		log.ErrorErr(log.CatSession, "task-fails.json unparseable, treating as empty", err)
		return nil, nil
	}
	return fails, nil
}

// AppendTaskFail reads the existing task-fails.json (recovering to empty on
// parse failure per ReadTaskFails), appends failure, and writes the result
// back.
func (s *Store) AppendTaskFail(failure TaskFailure) error {
	existing, err := s.ReadTaskFails()
	if err != nil {
		return err
	}
	existing = append(existing, failure)
	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("sessionstore: encoding %s: %w", taskFailsFilename, err)
	}
	return s.writeFile(taskFailsFilename, data)
}
