// Package engine drives the build-file and subbuild lifecycles described by
// this module: sanitizing arguments, consulting the previous build's cache,
// replaying validated results, executing user functions when nothing can be
// reused, and committing or rolling back the virtual filesystem view at the
// end of a root build.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/btrekkie/file-builder/builddirs"
	"github.com/btrekkie/file-builder/cache"
	"github.com/btrekkie/file-builder/filebackups"
	"github.com/btrekkie/file-builder/jsoncanon"
	"github.com/btrekkie/file-builder/logging"
	"github.com/btrekkie/file-builder/operation"
	"github.com/btrekkie/file-builder/simpleops"
)

// WalkEntry describes one directory visited by Walk: its absolute name, and
// the names of its immediate subdirectories and regular files.
type WalkEntry = simpleops.WalkEntry

// FileFunc produces the contents of a build-file output. b is a fresh
// Builder scoped to this call; absoluteFilename is the file being built;
// args are this call's declared arguments.
type FileFunc func(b *Builder, absoluteFilename string, args []jsoncanon.Value) (jsoncanon.Value, error)

// SubFunc computes a cacheable value. b is a fresh Builder scoped to this
// call.
type SubFunc func(b *Builder, args []jsoncanon.Value, kwargs map[string]jsoncanon.Value) (jsoncanon.Value, error)

// RootFunc drives an entire build. Its return value is not cached; wrap it
// in a Subbuild call if caching the root computation itself is desired.
type RootFunc func(b *Builder) (any, error)

// Options configures a root build. The zero value (or a nil *Options) uses
// a disabled logger and no deadline.
type Options struct {
	Logger *logging.Logger
}

func loggerFromOptions(opts *Options) *logging.Logger {
	if opts == nil || opts.Logger == nil {
		return logging.Disabled
	}
	return opts.Logger
}

// Builder drives one complex operation scope: the root build, or one nested
// build-file or subbuild call. A Builder instance is valid only until the
// operation it was created for finishes; using it afterward returns an
// error rather than panicking, matching the teacher's own "already closed"
// guard idiom.
type Builder struct {
	ctx context.Context

	// record is nil for the root Builder, and otherwise the
	// *operation.BuildFileOp or *operation.SubbuildOp this scope is
	// recording into.
	record   operation.Record
	oldCache *cache.Cache
	newCache *cache.Cache
	executor *simpleops.Executor
	backups  *filebackups.Backups
	dirs     *builddirs.Dirs
	logger   *logging.Logger

	mu sync.Mutex
	// isFinishedBuild is only meaningful when record is nil.
	isFinishedBuild bool
}

// complexOf returns the addressable embedded ComplexOp of r, or nil if r
// isn't a complex operation. This lets code that only has an
// operation.Record reach the mutable fields (Suboperations, Raised,
// SetupFailed, ReturnValue, HasReturn, IsFinished) that the Record interface
// itself doesn't expose, without widening that interface for every caller.
func complexOf(r operation.Record) *operation.ComplexOp {
	switch o := r.(type) {
	case *operation.BuildFileOp:
		return &o.ComplexOp
	case *operation.SubbuildOp:
		return &o.ComplexOp
	default:
		return nil
	}
}

func (b *Builder) describeOperation() string {
	switch op := b.record.(type) {
	case *operation.BuildFileOp:
		return "the build_file* call for " + op.Filename
	case *operation.SubbuildOp:
		return "the subbuild function " + op.FuncName
	default:
		return "the build function"
	}
}

// assertNotFinished reports an error if this Builder's operation (or, at
// the root, the build itself) has already finished.
func (b *Builder) assertNotFinished() error {
	var finished bool
	if b.record != nil {
		finished = complexOf(b.record).IsFinished
	} else {
		finished = b.isFinishedBuild
	}
	if finished {
		return fmt.Errorf("this builder has already finished executing %s", b.describeOperation())
	}
	return nil
}

// checkContext reports ctx's error, if this Builder's root was given one
// and it has since been canceled or timed out. The engine never originates
// cancellation itself; this only lets a caller's own deadline abort the
// user function between simple-op calls.
func (b *Builder) checkContext() error {
	if b.ctx == nil {
		return nil
	}
	return b.ctx.Err()
}

// appendSuboperation appends sub to this scope's operation record, after
// checking that the scope (and, transitively, the whole build) hasn't
// already finished. At the root, where there is no record to append to,
// this only performs that check.
func (b *Builder) appendSuboperation(sub operation.Record) error {
	if b.record == nil {
		return b.assertNotFinished()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.assertNotFinished(); err != nil {
		return err
	}
	complexOf(b.record).AppendSuboperation(sub)
	return nil
}

func copyArgs(args []jsoncanon.Value) []jsoncanon.Value {
	cp := make([]jsoncanon.Value, len(args))
	copy(cp, args)
	return cp
}

func copyKwargs(kwargs map[string]jsoncanon.Value) map[string]jsoncanon.Value {
	if kwargs == nil {
		return nil
	}
	cp := make(map[string]jsoncanon.Value, len(kwargs))
	for k, v := range kwargs {
		cp[k] = v
	}
	return cp
}
