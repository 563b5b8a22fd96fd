package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the ledger as a single JSON document mapping user ID to
// an ordered array of records. Every mutation rewrites the whole document;
// there is no cross-process coordination. A missing file is an empty ledger,
// a malformed one is an error surfaced to the caller.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file-backed ledger at path. The file is created
// lazily on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() (map[string][]Record, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string][]Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	var doc map[string][]Record
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse order ledger: %w", err)
	}
	if doc == nil {
		doc = map[string][]Record{}
	}
	return doc, nil
}

func (s *FileStore) save(doc map[string][]Record) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, raw, 0o644)
}

func (s *FileStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	doc[rec.UserID] = append(doc[rec.UserID], rec)
	return s.save(doc)
}

func (s *FileStore) Orders(_ context.Context, userID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc[userID], nil
}

func (s *FileStore) All(_ context.Context) (map[string][]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) Find(_ context.Context, orderID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, records := range doc {
		for i := range records {
			if records[i].OrderID == orderID {
				rec := records[i]
				return &rec, nil
			}
		}
	}
	return nil, ErrOrderNotFound
}

func (s *FileStore) FindLatestUnpaidConfirmed(_ context.Context, userID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	records := doc[userID]
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Confirmed && !records[i].Paid {
			rec := records[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func (s *FileStore) Update(_ context.Context, orderID string, mutate func(*Record) error) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	for userID, records := range doc {
		for i := range records {
			if records[i].OrderID != orderID {
				continue
			}
			if err := mutate(&records[i]); err != nil {
				return nil, err
			}
			doc[userID] = records
			if err := s.save(doc); err != nil {
				return nil, err
			}
			rec := records[i]
			return &rec, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(map[string][]Record{})
}
