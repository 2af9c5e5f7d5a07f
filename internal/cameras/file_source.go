package cameras

import (
	"context"
	"fmt"
	"os"
	"time"
)

// FileSource reads a classification results JSON file
type FileSource struct {
	path string
	now  func() time.Time
}

// NewFileSource creates a new FileSource for path
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, now: time.Now}
}

func (f *FileSource) Name() string {
	return "file:" + f.path
}

// Load reads and parses the file. The file's modification time is the
// snapshot's source update time.
func (f *FileSource) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(f.path)
	if err != nil {
		return nil, fmt.Errorf("results file not found: %w", err)
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}

	results, err := ParseResults(data)
	if err != nil {
		return nil, err
	}

	return results.Snapshot(info.ModTime().UTC(), f.now().UTC()), nil
}
