package persist

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNoSnapshot is returned by the inspection helpers when dir holds no
// committed snapshot.
var ErrNoSnapshot = errors.New("persist: no snapshot")

// checksum hashes each file's relative path and contents in order.
func checksum(files []file) (string, int64) {
	sum := sha256.New()
	var n int64
	for _, f := range files {
		sum.Write([]byte(f.path))
		sum.Write(f.data)
		n += int64(len(f.data))
	}
	return hex.EncodeToString(sum.Sum(nil)), n
}

// ReadHeader decodes the header of the snapshot under dir without loading
// any entity.
func ReadHeader(dir string) (Header, error) {
	raw, err := os.ReadFile(filepath.Join(dir, savesDir, headerFile))
	if errors.Is(err, fs.ErrNotExist) {
		return Header{}, ErrNoSnapshot
	}
	if err != nil {
		return Header{}, fmt.Errorf("read world header: %w", err)
	}
	return decodeHeader(raw)
}

// Checksum recomputes the checksum of the snapshot under dir. It matches
// SaveInfo.Checksum and the catalog record of an untouched snapshot.
func Checksum(dir string) (sum string, size int64, err error) {
	hdr, err := ReadHeader(dir)
	if err != nil {
		return "", 0, err
	}
	root := filepath.Join(dir, savesDir)

	var rel []string
	for _, set := range kindSets {
		for _, ext := range []string{".tdb", ".idx", ".bin"} {
			rel = append(rel, filepath.Join(set.name, set.name+ext))
		}
	}
	for _, name := range hdr.Participants {
		rel = append(rel, filepath.Join(partsDir, name+".bin"))
	}
	rel = append(rel, headerFile)

	files := make([]file, 0, len(rel))
	for _, p := range rel {
		data, err := os.ReadFile(filepath.Join(root, p))
		if err != nil {
			return "", 0, fmt.Errorf("%w: %s: %v", ErrCorrupt, p, err)
		}
		files = append(files, file{path: p, data: data})
	}
	sum, size = checksum(files)
	return sum, size, nil
}

// Backups lists the retained backup snapshots under dir, oldest first.
func Backups(dir string) ([]string, error) {
	return listBackups(dir)
}
