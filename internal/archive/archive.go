// Package archive lists and reads files of an in-memory zip package.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultIgnore lists package paths that never hold handler source.
var DefaultIgnore = []string{
	"__pycache__/",
	"*.pyc",
	"*.pyo",
	"node_modules/",
	"*.dist-info/",
	"*.egg-info/",
	"__MACOSX/",
	".*",
}

// ErrClosed is returned when reading from a closed archive.
var ErrClosed = errors.New("archive closed")

// Archive is a decompressed view of a package. Close releases the buffer.
type Archive struct {
	data   []byte
	reader *zip.Reader
	ignore *ignore.GitIgnore
}

// Open reads a zip package from data. patterns are gitignore-style lines
// filtering Names; nil selects DefaultIgnore.
func Open(data []byte, patterns []string) (*Archive, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening package: %w", err)
	}
	if patterns == nil {
		patterns = DefaultIgnore
	}
	return &Archive{
		data:   data,
		reader: r,
		ignore: ignore.CompileIgnoreLines(patterns...),
	}, nil
}

// Names returns regular file names in archive order, minus ignored paths.
func (a *Archive) Names() []string {
	if a.reader == nil {
		return nil
	}
	var names []string
	for _, f := range a.reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if a.ignore.MatchesPath(f.Name) {
			continue
		}
		names = append(names, f.Name)
	}
	return names
}

// ReadFile returns the decompressed content of name.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	if a.reader == nil {
		return nil, ErrClosed
	}
	for _, f := range a.reader.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", name, err)
		}
		defer rc.Close()
		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		return content, nil
	}
	return nil, fmt.Errorf("%s: file not in package", name)
}

// Close drops the package buffer and the decompression index.
func (a *Archive) Close() error {
	a.data = nil
	a.reader = nil
	return nil
}
