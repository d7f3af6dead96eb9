package driver

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/tools/txtar"
)

// File is one generated artifact
type File struct {
	Name string
	Data []byte
}

// Sink receives the complete set of generated files at once
type Sink interface {
	Write(files []File) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(files []File) error

func (f SinkFunc) Write(files []File) error { return f(files) }

// DirSink writes every file into Dir, the working directory when empty
type DirSink struct {
	Dir string
}

func (s DirSink) Write(files []File) error {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.Name), f.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	return nil
}

// BundleSink writes all files into one txtar archive at Path
type BundleSink struct {
	Path    string
	Comment string
}

func (s BundleSink) Write(files []File) error {
	ar := &txtar.Archive{Comment: []byte(s.Comment)}
	for _, f := range files {
		ar.Files = append(ar.Files, txtar.File{Name: f.Name, Data: f.Data})
	}
	if err := os.WriteFile(s.Path, txtar.Format(ar), 0o644); err != nil {
		return fmt.Errorf("write bundle %s: %w", s.Path, err)
	}
	return nil
}
