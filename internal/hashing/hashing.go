// Package hashing computes content digests for a project's tracked
// dependency artifacts: the lockfile and the private package library.
//
// Digests are CRC-32 checksums rendered as lowercase hex. They are change
// detectors, not security primitives: the only requirement is sensitivity
// to content changes under normal operation. The package provides a real
// filesystem-backed implementation and a fake implementation for testing.
package hashing

import (
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path/filepath"
)

// DescriptionFile is the package metadata file name whose contents summarize
// the library state for hashing.
const DescriptionFile = "DESCRIPTION"

// Computer provides an abstraction for artifact hashing operations.
type Computer interface {
	// LockfileHash computes the digest of the lockfile content. A missing
	// lockfile is a legitimate transient state and yields ("", nil).
	LockfileHash() (string, error)

	// LibraryHash digests the concatenated content of every DESCRIPTION
	// file under the library tree, in traversal order. No DESCRIPTION
	// files (or no library directory) yields ("", nil).
	LibraryHash() (string, error)
}

// CRC32Computer implements Computer against the real filesystem.
type CRC32Computer struct {
	lockfilePath string
	libraryDir   string
}

// NewCRC32Computer creates a Computer for the given lockfile path and
// library directory.
func NewCRC32Computer(lockfilePath, libraryDir string) *CRC32Computer {
	return &CRC32Computer{lockfilePath: lockfilePath, libraryDir: libraryDir}
}

// LockfileHash computes the CRC-32 hex digest of the lockfile content.
func (c *CRC32Computer) LockfileHash() (string, error) {
	content, err := os.ReadFile(c.lockfilePath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read lockfile: %w", err)
	}
	return hexDigest(content), nil
}

// LibraryHash walks the library tree and digests the concatenation of all
// DESCRIPTION file contents.
func (c *CRC32Computer) LibraryHash() (string, error) {
	var content []byte
	err := filepath.WalkDir(c.libraryDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != DescriptionFile {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		content = append(content, data...)
		return nil
	})
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("walk library: %w", err)
	}
	if len(content) == 0 {
		return "", nil
	}
	return hexDigest(content), nil
}

func hexDigest(content []byte) string {
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE(content))
}

// FakeComputer implements Computer with scripted results for testing.
type FakeComputer struct {
	Lockfile    string
	Library     string
	LockfileErr error
	LibraryErr  error
}

// NewFakeComputer creates a FakeComputer.
func NewFakeComputer() *FakeComputer {
	return &FakeComputer{}
}

// LockfileHash returns the scripted lockfile hash.
func (f *FakeComputer) LockfileHash() (string, error) {
	return f.Lockfile, f.LockfileErr
}

// LibraryHash returns the scripted library hash.
func (f *FakeComputer) LibraryHash() (string, error) {
	return f.Library, f.LibraryErr
}
