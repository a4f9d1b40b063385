package store

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Recent is a bounded FIFO of recently committed board identities backed
// by an append-only text file.
type Recent struct {
	path     string
	capacity int
	mu       sync.Mutex
	ids      []string
}

// OpenRecent loads the last capacity identities from path. A missing file
// is an empty registry. The registry always keeps at least the newest
// identity.
func OpenRecent(path string, capacity int) (*Recent, error) {
	if capacity < 1 {
		capacity = 1
	}
	r := &Recent{path: path, capacity: capacity}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if id := strings.TrimSpace(scanner.Text()); id != "" {
			r.push(id)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return r, nil
}

func (r *Recent) push(id string) {
	r.ids = append(r.ids, id)
	if over := len(r.ids) - r.capacity; over > 0 {
		r.ids = append(r.ids[:0:0], r.ids[over:]...)
	}
}

// Contains reports whether id is among the most recent identities.
func (r *Recent) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.ids {
		if v == id {
			return true
		}
	}
	return false
}

// Add records id, evicting the oldest entry when full, and appends it to
// the file. The in-memory set is updated even if the write fails.
func (r *Recent) Add(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.push(id)

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(id + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// IDs returns the identities, oldest first.
func (r *Recent) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}
