package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// FileSink writes reports to a file. ".yaml"/".yml" paths get one YAML
// document per report, ".jsonl" paths are appended as JSON lines, and any
// other path is overwritten with indented JSON.
type FileSink struct {
	path string
	mu   sync.Mutex
}

// NewFileSink creates a file sink, failing early if path cannot be written.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening report file: %w", err)
	}
	_ = f.Close()
	return &FileSink{path: path}, nil
}

// Name returns the sink identifier.
func (s *FileSink) Name() string { return "file" }

// Send writes the report in the format chosen by the file extension.
func (s *FileSink) Send(_ context.Context, report types.SuiteReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".yaml", ".yml":
		data, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		return s.append(append([]byte("---\n"), data...))
	case ".jsonl":
		data, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		return s.append(append(data, '\n'))
	default:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		return os.WriteFile(s.path, append(data, '\n'), 0o644)
	}
}

func (s *FileSink) append(data []byte) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = f.Write(data)
	return err
}
