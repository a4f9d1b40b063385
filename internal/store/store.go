package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const reportsFile = "reports.jsonl"

// Store is the station's local archive: one JSON report per line under
// history/ and one serial transcript per board run under logs/.
type Store struct {
	root string
	mu   sync.Mutex
}

// New creates a Store rooted at the given directory (typically .paneltester/).
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) historyDir() string {
	return filepath.Join(s.root, "history")
}

func (s *Store) logsDir() string {
	return filepath.Join(s.root, "logs")
}

// AddReport appends a report record.
func (s *Store) AddReport(r ReportRecord) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.historyDir(), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(s.historyDir(), reportsFile), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	// A torn last line must not swallow this record.
	if info, err := f.Stat(); err == nil && info.Size() > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, info.Size()-1); err == nil && last[0] != '\n' {
			raw = append([]byte{'\n'}, raw...)
		}
	}
	if _, err := f.Write(append(raw, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Reports returns all report records in the order they were archived.
// Lines that do not decode, such as a write cut short by a power loss, are
// skipped.
func (s *Store) Reports() ([]ReportRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(filepath.Join(s.historyDir(), reportsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var records []ReportRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r ReportRecord
		if json.Unmarshal(line, &r) != nil {
			continue
		}
		records = append(records, r)
	}
	return records, scanner.Err()
}

// SaveSerialLog writes the serial transcript of one board and returns the
// file path.
func (s *Store) SaveSerialLog(id string, at time.Time, lines []string) (string, error) {
	dir, err := s.LogsDir()
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s.log", strings.ReplaceAll(id, ":", ""), at.UTC().Format("20060102T150405"))
	path := filepath.Join(dir, name)
	data := strings.Join(lines, "\n")
	if len(lines) > 0 {
		data += "\n"
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// LogsDir returns the path to the logs directory, creating it if needed.
func (s *Store) LogsDir() (string, error) {
	dir := s.logsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
