// Package project resolves BinaryFile references for the project that owns a
// publish step. References are local paths, resolved against the project
// directory, or s3://bucket/key object URIs.
package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// S3Scheme prefixes object-storage references.
const S3Scheme = "s3://"

// ErrNoObjectStore is returned for s3:// references when no object store is configured.
var ErrNoObjectStore = errors.New("no object store is configured for s3:// references")

// Dir resolves references against a project directory.
type Dir struct {
	// Root is the project directory. Empty means the working directory.
	Root string
}

// ReadFile reads ref. Relative references are joined to Root.
func (d Dir) ReadFile(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.Root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Reader reads a reference.
type Reader interface {
	ReadFile(ctx context.Context, ref string) ([]byte, error)
}

// Resolver routes references by scheme.
type Resolver struct {
	// Local serves plain paths.
	Local Dir
	// Objects serves s3:// references. Nil rejects them.
	Objects Reader
}

// ReadFile reads ref from the store its scheme selects.
func (r *Resolver) ReadFile(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, S3Scheme) {
		if r.Objects == nil {
			return nil, ErrNoObjectStore
		}
		return r.Objects.ReadFile(ctx, ref)
	}
	return r.Local.ReadFile(ctx, ref)
}
