// Package pdbgen writes program databases: the companion debug files that
// describe a linked Windows image to debuggers, profilers and symbol servers.
//
// Given the object modules that were linked into an image, pdbgen merges
// their CodeView type records into one deduplicated type table, rewrites
// every module's symbols against it, builds the global and public symbol
// directories and lays everything out as an MSF 7.00 container.
//
// # Core Features
//
//   - Content-addressed deduplication of type, id and global symbol records
//   - Lexical scope reconstruction in per-module symbol streams
//   - Elimination of symbols whose code or data was discarded by the linker
//   - Parallel pre-scan of modules with deterministic, serial merging
//   - Optional content-derived GUID for reproducible builds
//
// # Basic Usage
//
// A linker implements input.Image over its own data and writes the artifact
// next to the image:
//
//	import "github.com/arloliu/pdbgen"
//
//	img := &input.Static{
//	    ModuleList:  modules,
//	    Sections:    outputSections,
//	    Headers:     sectionHeaderTable,
//	    PublicList:  publics,
//	    MachineType: format.MachineAMD64,
//	}
//
//	err := pdbgen.WriteFile(ctx, img, guid, "app.pdb",
//	    builder.WithAge(1),
//	    builder.WithToolVersion("14.11.0"),
//	)
//
// # Package Structure
//
// This package provides top-level wrappers around the builder package. Use
// builder directly to keep the encoded artifact in memory, and inspect to
// read an artifact back.
package pdbgen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/arloliu/pdbgen/builder"
	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/input"
)

// Build encodes img in memory.
//
// Parameters:
//   - ctx: cancels the encode between modules
//   - img: the linked image
//   - guid: artifact GUID; uuid.Nil generates one
//   - opts: builder options, applied after the GUID
//
// Returns:
//   - *builder.Artifact: the encoded artifact
//   - error: option, input or stream error
func Build(ctx context.Context, img input.Image, guid uuid.UUID, opts ...builder.Option) (*builder.Artifact, error) {
	b, err := builder.New(append([]builder.Option{builder.WithGUID(guid)}, opts...)...)
	if err != nil {
		return nil, err
	}

	return b.Build(ctx, img)
}

// WriteFile encodes img and writes the artifact to path.
//
// The artifact is written to a temporary file in the destination directory
// and renamed over path only once it is complete. On any failure the
// temporary file is removed and path is left untouched.
//
// Parameters:
//   - ctx: cancels the encode between modules
//   - img: the linked image
//   - guid: artifact GUID; uuid.Nil generates one
//   - path: destination file
//   - opts: builder options
//
// Returns:
//   - error: nil on success; otherwise the encode error or ErrWriteArtifact
//     wrapping the file system error
func WriteFile(ctx context.Context, img input.Image, guid uuid.UUID, path string, opts ...builder.Option) error {
	art, err := Build(ctx, img, guid, opts...)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrWriteArtifact, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := art.WriteTo(tmp); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrWriteArtifact, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrWriteArtifact, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrWriteArtifact, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrWriteArtifact, err)
	}
	committed = true

	return nil
}
