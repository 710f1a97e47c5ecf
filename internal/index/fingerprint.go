package index

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// fileStat is the per-file component of the corpus fingerprint.
type fileStat struct {
	Size     int64 `json:"size"`
	Modified int64 `json:"modified"`
}

// Fingerprint computes a change-detection signature over the PDF files in
// dir: an md5 hex digest of the sorted {filename: {size, mtime}} mapping.
//
// This is a deliberate size/mtime proxy, not a content hash: rewriting a
// file's bytes while preserving its size and modification time is NOT
// detected. A missing directory fingerprints to "".
func Fingerprint(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading directory: %w", err)
	}

	stats := make(map[string]fileStat)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pdf") {
			continue
		}
		info, err := os.Stat(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		stats[e.Name()] = fileStat{
			Size:     info.Size(),
			Modified: info.ModTime().UnixNano(),
		}
	}

	// json.Marshal emits map keys in sorted order, giving a stable digest.
	data, err := json.Marshal(stats)
	if err != nil {
		return "", fmt.Errorf("marshalling fingerprint data: %w", err)
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}
