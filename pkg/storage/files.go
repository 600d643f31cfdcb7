package storage

import "sync"

// StoredFile is an upload held by MemoryFileStore.
type StoredFile struct {
	ContentType string
	Data        []byte
}

type fileMap struct {
	mu    sync.RWMutex
	files map[string]StoredFile
}

func newFileMap() *fileMap {
	return &fileMap{files: make(map[string]StoredFile)}
}

func (f *fileMap) put(key string, file StoredFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = file
}

func (f *fileMap) get(key string) (StoredFile, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	file, ok := f.files[key]
	return file, ok
}
