package report

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileExistsMessage is printed when the output file already exists.
const FileExistsMessage = "This file already exists..... Printing output on the command line"

// Destination is where a report is written: a newly created file, or
// stdout when no file was requested or the file already exists.
type Destination struct {
	io.Writer

	file *os.File

	// Redirected is true when output goes to a file.
	Redirected bool
}

// OpenDestination prepares the report destination.
// An existing file is never overwritten: FileExistsMessage is written to
// stderr and stdout is used instead. Missing parent directories are created.
func OpenDestination(path string, stdout, stderr io.Writer) (*Destination, error) {
	if path == "" {
		return &Destination{Writer: stdout}, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			fmt.Fprintf(stderr, "\n%s\n\n", FileExistsMessage)
			return &Destination{Writer: stdout}, nil
		}
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	return &Destination{Writer: f, file: f, Redirected: true}, nil
}

// Close closes the output file, if any.
func (d *Destination) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}
