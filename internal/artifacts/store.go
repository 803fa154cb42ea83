// Package artifacts provides persistent file storage for operation output.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileInfo contains metadata about a stored file.
type FileInfo struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
}

// Store defines the interface for output file storage.
type Store interface {
	// Save writes content under the output directory.
	// Saving the same name with the same content yields the same path
	// and the same bytes on disk.
	Save(fileName string, content []byte) (*FileInfo, error)

	// Get retrieves a previously saved file.
	Get(fileName string) ([]byte, error)

	// List lists all saved files.
	List() ([]FileInfo, error)

	// Delete removes a previously saved file. Deleting a file that
	// does not exist is not an error.
	Delete(fileName string) error
}

// FilesystemStore implements Store using the local filesystem.
// Files are stored flat in {baseDir}/output/{fileName}; the directory is
// created on first use so the store works regardless of working directory.
type FilesystemStore struct {
	outputDir string
	mu        sync.RWMutex
}

// NewFilesystemStore creates a new FilesystemStore rooted at baseDir.
// The output directory is created if it doesn't exist.
func NewFilesystemStore(baseDir string) (*FilesystemStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory cannot be empty")
	}

	outputDir := filepath.Join(baseDir, "output")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &FilesystemStore{
		outputDir: outputDir,
	}, nil
}

// Save writes content to {outputDir}/{fileName}.
// Thread-safe for concurrent writes; same-name writers race last-wins.
func (fs *FilesystemStore) Save(fileName string, content []byte) (*FileInfo, error) {
	if fileName == "" {
		return nil, fmt.Errorf("file_name is required")
	}

	// file_name must be a bare name, never a path
	if filepath.Base(fileName) != fileName {
		return nil, fmt.Errorf("file_name cannot contain path separators")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(fs.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	filePath := filepath.Join(fs.outputDir, fileName)
	if err := os.WriteFile(filePath, content, 0644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &FileInfo{
		Name:      fileName,
		Path:      filePath,
		SizeBytes: int64(len(content)),
	}, nil
}

// Get retrieves a saved file by name.
func (fs *FilesystemStore) Get(fileName string) ([]byte, error) {
	if fileName == "" {
		return nil, fmt.Errorf("file_name is required")
	}
	if filepath.Base(fileName) != fileName {
		return nil, fmt.Errorf("file_name cannot contain path separators")
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(fs.outputDir, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", fileName)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return data, nil
}

// Delete removes a saved file by name. A missing file is a no-op.
func (fs *FilesystemStore) Delete(fileName string) error {
	if fileName == "" {
		return fmt.Errorf("file_name is required")
	}
	if filepath.Base(fileName) != fileName {
		return fmt.Errorf("file_name cannot contain path separators")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(filepath.Join(fs.outputDir, fileName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// List lists all saved files.
func (fs *FilesystemStore) List() ([]FileInfo, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []FileInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:      entry.Name(),
			Path:      filepath.Join(fs.outputDir, entry.Name()),
			SizeBytes: info.Size(),
		})
	}

	return files, nil
}

// OutputDir returns the directory files are written to.
func (fs *FilesystemStore) OutputDir() string {
	return fs.outputDir
}
