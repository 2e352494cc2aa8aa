package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/berfenger/solarcharge2mqtt/internal/core/domain"
	"github.com/berfenger/solarcharge2mqtt/internal/core/port"

	"github.com/spf13/afero"
)

var ErrRecordNotFound = errors.New("credential record not found")

// FileRepository keeps the credential record as an indented JSON document.
// Fields it does not know about are written back untouched.
type FileRepository struct {
	mtx   sync.Mutex
	fs    afero.Fs
	path  string
	extra map[string]json.RawMessage
}

func NewFileRepository(fs afero.Fs, path string) *FileRepository {
	return &FileRepository{
		fs:   fs,
		path: path,
	}
}

func (r *FileRepository) Path() string {
	return r.path
}

func (r *FileRepository) Load(_ context.Context) (domain.CredentialRecord, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.CredentialRecord{}, fmt.Errorf("%w: %s", ErrRecordNotFound, r.path)
		}
		return domain.CredentialRecord{}, fmt.Errorf("read %s: %w", r.path, err)
	}

	var rec domain.CredentialRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.CredentialRecord{}, fmt.Errorf("decode %s: %w", r.path, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return domain.CredentialRecord{}, fmt.Errorf("decode %s: %w", r.path, err)
	}
	r.extra = fields
	return rec, nil
}

// Save replaces the document atomically through a temp file in the same directory
func (r *FileRepository) Save(_ context.Context, rec domain.CredentialRecord) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	data, err := r.merge(rec)
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := afero.TempFile(r.fs, dir, "."+filepath.Base(r.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = r.fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = r.fs.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := r.fs.Rename(tmpName, r.path); err != nil {
		_ = r.fs.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", tmpName, err)
	}
	return nil
}

func (r *FileRepository) merge(rec domain.CredentialRecord) ([]byte, error) {
	known, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	merged := make(map[string]json.RawMessage, len(r.extra)+len(fields))
	for k, v := range r.extra {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	// an id token missing from a refreshed record is gone, not unknown
	if rec.IdToken == "" {
		delete(merged, "id_token")
	}
	r.extra = merged
	return json.MarshalIndent(merged, "", "  ")
}

// ensure interface compliance
var _ port.CredentialRepository = (*FileRepository)(nil)
