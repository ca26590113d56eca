// Package queryfile manages the pending and historic discovery query lists,
// plain text files with one query per line.
package queryfile

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Store struct {
	PendingPath  string
	HistoricPath string

	mu sync.Mutex
}

func New(pendingPath, historicPath string) *Store {
	return &Store{PendingPath: pendingPath, HistoricPath: historicPath}
}

// Pending returns the queries still to run, blank lines dropped.
func (s *Store) Pending() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readLines(s.PendingPath)
}

func (s *Store) Historic() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readLines(s.HistoricPath)
}

// MarkDone removes query from the pending file and prepends it to the historic file.
func (s *Store) MarkDone(query string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	pending, err := readLines(s.PendingPath)
	if err != nil {
		return err
	}
	remaining := pending[:0]
	for _, q := range pending {
		if q != query {
			remaining = append(remaining, q)
		}
	}

	historic, err := readLines(s.HistoricPath)
	if err != nil {
		return err
	}
	historic = append([]string{query}, historic...)

	if err := writeLines(s.HistoricPath, historic); err != nil {
		return err
	}
	return writeLines(s.PendingPath, remaining)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

// writeLines replaces path atomically through a temp file in the same directory.
func writeLines(path string, lines []string) error {
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".queries-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
