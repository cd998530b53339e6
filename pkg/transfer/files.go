// Package transfer implements the sender and receiver state machines
// that drive a session from signaling through key exchange, transport
// selection, chunked streaming, and completion (spec.md §4.6).
package transfer

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/relaytransfer/relay/pkg/protocol"
)

// ChunkSize is the fixed plaintext chunk size, spec.md §6.
const ChunkSize = 262144

// FileDescriptor names one file offered in a transfer, plus the local
// path the sender reads it from. RelativePath and the wire fields mirror
// protocol.FileDescriptor; LocalPath never leaves this process.
type FileDescriptor struct {
	Name         string
	Size         int64
	RelativePath string
	LocalPath    string
}

// ToWire converts a sender-side descriptor to the wire shape carried in
// a FileOffer message.
func (f FileDescriptor) ToWire() protocol.FileDescriptor {
	return protocol.FileDescriptor{
		Name:         f.Name,
		Size:         uint64(f.Size),
		RelativePath: f.RelativePath,
	}
}

// BuildFileList resolves the paths passed to start_send into a flat list
// of FileDescriptors. A directory is walked recursively; its entries get
// a RelativePath rooted at the directory's own name. A bad entry aborts
// the whole call rather than silently skipping it, matching the "one bad
// descriptor fails the whole offer" rule applied at build time as well
// as at receive time (spec.md §9).
func BuildFileList(paths []string) ([]FileDescriptor, error) {
	var out []FileDescriptor
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("transfer: stat %s: %w", p, err)
		}
		if !info.IsDir() {
			out = append(out, FileDescriptor{
				Name:      filepath.Base(p),
				Size:      info.Size(),
				LocalPath: p,
			})
			continue
		}

		root := filepath.Clean(p)
		base := filepath.Base(root)
		err = filepath.WalkDir(root, func(walkPath string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, walkPath)
			if err != nil {
				return err
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			relPath := path.Join(base, filepath.ToSlash(rel))
			if _, err := SanitizeRelativePath(relPath); err != nil {
				return fmt.Errorf("transfer: building descriptor for %s: %w", walkPath, err)
			}
			out = append(out, FileDescriptor{
				Name:         filepath.Base(walkPath),
				Size:         fi.Size(),
				RelativePath: relPath,
				LocalPath:    walkPath,
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SanitizeRelativePath normalizes and validates a descriptor's relative
// path per spec.md §3/§9: it must not be absolute, must not contain
// parent-directory components, and must not contain control characters
// or NUL bytes. An empty path (single-file transfer) is valid and
// returned unchanged.
func SanitizeRelativePath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	for _, r := range p {
		if r == 0 || r < 0x20 {
			return "", fmt.Errorf("transfer: path %q contains a control character", p)
		}
	}
	if path.IsAbs(p) || strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("transfer: path %q is absolute", p)
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("transfer: path %q escapes the transfer root", p)
	}
	for _, part := range strings.Split(clean, "/") {
		if part == ".." {
			return "", fmt.Errorf("transfer: path %q escapes the transfer root", p)
		}
	}
	return clean, nil
}

// SanitizeOffer validates every descriptor in an offer up front so a
// single bad entry rejects the whole FileOffer rather than failing
// midway through streaming (spec.md §9).
func SanitizeOffer(files []protocol.FileDescriptor) error {
	for _, f := range files {
		if _, err := SanitizeRelativePath(f.RelativePath); err != nil {
			return err
		}
	}
	return nil
}

// DestinationPath resolves where the receiver should write a descriptor,
// joining its sanitized relative path (or bare name, for single-file
// transfers) under saveDir.
func DestinationPath(saveDir string, f protocol.FileDescriptor) (string, error) {
	rel, err := SanitizeRelativePath(f.RelativePath)
	if err != nil {
		return "", err
	}
	if rel == "" {
		rel = f.Name
	}
	return filepath.Join(saveDir, filepath.FromSlash(rel)), nil
}
