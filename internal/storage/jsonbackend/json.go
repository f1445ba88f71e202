package jsonbackend

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/FranksOps/sitescope/internal/storage"
	"github.com/goccy/go-json"
)

// ensure jsonBackend implements storage.Backend
var _ storage.Backend = (*jsonBackend)(nil)

type jsonBackend struct {
	mu   sync.Mutex
	file *os.File
}

// New creates a new NDJSON-backed storage.Backend. Records are appended one
// per line.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("jsonbackend: open %s: %w", filePath, err)
	}

	return &jsonBackend{file: f}, nil
}

func (b *jsonBackend) Save(ctx context.Context, record *storage.FetchRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("jsonbackend: marshal: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("jsonbackend: write: %w", err)
	}

	return nil
}

func (b *jsonBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.FetchRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("jsonbackend: seek: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	// Records are appended in time order, so reversing the filtered set
	// yields newest first.
	var matched []*storage.FetchRecord

	scanner := bufio.NewScanner(b.file)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var r storage.FetchRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("jsonbackend: decode: %w", err)
		}
		if filter.Matches(&r) {
			matched = append(matched, &r)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("jsonbackend: scan: %w", err)
	}

	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*storage.FetchRecord{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
