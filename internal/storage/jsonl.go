package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"extrinsicScope/internal/model"
)

// JsonlStorage appends outcome records to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutOutcomeBatch appends a batch of outcome records as JSON lines.
func (s *JsonlStorage) PutOutcomeBatch(ctx context.Context, records []model.OutcomeRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal outcome record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write outcome record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// Multi fans a batch out to several sinks, stopping at the first failure.
type Multi []Storage

func (m Multi) PutOutcomeBatch(ctx context.Context, records []model.OutcomeRecord) error {
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.PutOutcomeBatch(ctx, records); err != nil {
			return err
		}
	}
	return nil
}
