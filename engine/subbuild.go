package engine

import (
	"github.com/btrekkie/file-builder/cache"
	"github.com/btrekkie/file-builder/createdfiles"
	"github.com/btrekkie/file-builder/jsoncanon"
	"github.com/btrekkie/file-builder/operation"
)

// Subbuild computes a cacheable value by calling fn, or reuses a previous
// build's result for it if fn was previously called with an equal funcName,
// args, and kwargs and nothing relevant has changed since.
func (b *Builder) Subbuild(
	funcName string, fn SubFunc, args []jsoncanon.Value, kwargs map[string]jsoncanon.Value,
) (jsoncanon.Value, error) {
	if err := b.assertNotFinished(); err != nil {
		return jsoncanon.Value{}, err
	}
	if err := b.checkContext(); err != nil {
		return jsoncanon.Value{}, err
	}

	sub := &operation.SubbuildOp{
		ComplexOp: operation.ComplexOp{FuncName: funcName, ArgsValue: copyArgs(args), Kwargs: copyKwargs(kwargs)},
	}
	child := &Builder{
		ctx:      b.ctx,
		record:   sub,
		oldCache: b.oldCache,
		newCache: b.newCache,
		executor: b.executor,
		backups:  b.backups,
		dirs:     b.dirs,
		logger:   b.logger.Sublogger("subbuild"),
	}

	runErr := child.runSubbuild(fn)
	if runErr != nil && !sub.Raised {
		sub.Raised = true
		sub.SetupFailed = true
	}
	sub.IsFinished = true

	if err := b.appendSuboperation(sub); err != nil {
		return jsoncanon.Value{}, err
	}
	return sub.ReturnValue, runErr
}

// runSubbuild implements the subbuild protocol on child, whose record is
// already populated with the function name, arguments, and keyword
// arguments: reserve the (func, args, kwargs) key against a duplicate call,
// probe the cache for a reusable result, and otherwise execute fn.
func (b *Builder) runSubbuild(fn SubFunc) error {
	op := b.record.(*operation.SubbuildOp)
	key := cache.SubbuildKey(op.FuncName, op.ArgsValue, op.Kwargs)

	if err := b.newCache.AssertDoesntHaveSubbuild(key, op); err != nil {
		return err
	}

	if cached := b.subbuildCacheLookup(op, key); cached != nil {
		if err := b.applyCachedSuboperations(cached); err != nil {
			return err
		}
		op.Suboperations = cached.Suboperations
		op.ReturnValue = cached.ReturnValue
		op.HasReturn = cached.HasReturn
		op.IsFinished = true
		return b.newCache.UseCachedOperation(op)
	}

	if err := b.newCache.StartSubbuild(key, op); err != nil {
		return err
	}

	result, fnErr := fn(b, copyArgs(op.ArgsValue), copyKwargs(op.Kwargs))
	if fnErr != nil {
		op.Raised = true
	} else {
		op.ReturnValue = result
		op.HasReturn = true
	}
	op.IsFinished = true
	b.newCache.FinishSubbuild(key, op)
	return fnErr
}

// subbuildCacheLookup returns the previous build's SubbuildOp for key if it
// is eligible to be replayed: same function version, and every
// suboperation it performed is still cache-valid. Returns nil if no such
// record is reusable.
func (b *Builder) subbuildCacheLookup(op *operation.SubbuildOp, key string) *operation.SubbuildOp {
	cached := b.oldCache.GetSubbuild(key)
	if cached == nil || cached.Raised {
		return nil
	}
	if !jsoncanon.Equal(b.oldCache.GetFuncVersion(op.FuncName), b.newCache.GetFuncVersion(op.FuncName)) {
		return nil
	}
	if ok, err := b.areSuboperationsCached(cached, createdfiles.New()); err != nil || !ok {
		return nil
	}
	return cached
}
