// Package artifact persists compiled keymaps under a path derived from their
// RMLVO tuple and reads them back for comparison.
//
// Layout: <dir>/<model>/<layout>[(<variant>)][+<option>][.gz]. Every file
// starts with a single header line
//
//	// rmlvo: {rules: "evdev", model: "pc105", layout: "us", variant: null, option: null}
//
// followed by the keymap bytes. Compressed artifacts carry the header inside
// the gzip stream. Output contains no timestamps, so reruns are byte-identical.
package artifact

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/roach88/keymapcheck/internal/rmlvo"
)

// GzipSuffix is appended to compressed artifact names.
const GzipSuffix = ".gz"

const headerPrefix = "// rmlvo: "

// DirectoryExistsError is returned by CreateDir for a pre-existing directory.
type DirectoryExistsError struct {
	Path string
}

func (e *DirectoryExistsError) Error() string {
	return fmt.Sprintf("output directory %s already exists", e.Path)
}

// CreateDir creates the artifact root. Parents are created as needed but dir
// itself must not exist, so two runs never share a tree.
func CreateDir(dir string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return fmt.Errorf("create output parent: %w", err)
	}
	if err := os.Mkdir(dir, 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &DirectoryExistsError{Path: dir}
		}
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}

// Path returns where the artifact for r is stored.
func Path(dir string, r rmlvo.RMLVO, compression int) string {
	name := r.LayoutSpec()
	if compression > 0 {
		name += GzipSuffix
	}
	return filepath.Join(dir, r.Model, name)
}

// Header returns the first line of every artifact for r.
func Header(r rmlvo.RMLVO) string {
	return headerPrefix + r.FlowMap() + "\n"
}

// Write stores keymap for r below dir. A compression level above zero gzips
// the file at that level.
//
// Concurrent writers for the same model may race on the model directory;
// MkdirAll tolerates that.
func Write(dir string, r rmlvo.RMLVO, keymap []byte, compression int) error {
	path := Path(dir, r, compression)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := encode(f, r, keymap, compression); err != nil {
		f.Close()
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	return nil
}

func encode(w io.Writer, r rmlvo.RMLVO, keymap []byte, compression int) error {
	if compression <= 0 {
		if _, err := io.WriteString(w, Header(r)); err != nil {
			return err
		}
		_, err := w.Write(keymap)
		return err
	}

	zw, err := gzip.NewWriterLevel(w, compression)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(zw, Header(r)); err != nil {
		return err
	}
	if _, err := zw.Write(keymap); err != nil {
		return err
	}
	return zw.Close()
}

// Artifact is a decoded artifact file.
type Artifact struct {
	RMLVO  rmlvo.RMLVO
	Keymap []byte
}

// Read decodes the artifact at path, decompressing .gz files.
func Read(path string) (*Artifact, error) {
	data, err := ReadRaw(path)
	if err != nil {
		return nil, err
	}

	line, rest, found := bytes.Cut(data, []byte("\n"))
	if !found || !bytes.HasPrefix(line, []byte(headerPrefix)) {
		return nil, fmt.Errorf("read artifact %s: missing rmlvo header", path)
	}
	r, err := rmlvo.ParseFlowMap(strings.TrimPrefix(string(line), headerPrefix))
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	return &Artifact{RMLVO: r, Keymap: rest}, nil
}

// ReadRaw returns the file contents, header included, decompressed if needed.
func ReadRaw(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, GzipSuffix) {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("read artifact %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	return data, nil
}

// Walk lists every artifact below dir as slash-separated relative paths,
// sorted.
func Walk(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk artifacts: %w", err)
	}
	sort.Strings(files)
	return files, nil
}
