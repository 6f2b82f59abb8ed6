package simpleops

import (
	"github.com/btrekkie/file-builder/buildfile"
	"github.com/btrekkie/file-builder/createdfiles"
	"github.com/btrekkie/file-builder/jsoncanon"
	"github.com/btrekkie/file-builder/operation"
)

// Exec dispatches one of the seven simple operations by name, returning its
// sanitized result as a jsoncanon.Value. This is the single entry point the
// engine uses both to perform an operation live and to re-execute a cached
// one during a cache-validity check.
func (e *Executor) Exec(
	name operation.SimpleOpName, args []jsoncanon.Value, createdFiles *createdfiles.CreatedFiles,
) (jsoncanon.Value, error) {
	switch name {
	case operation.OpRead:
		if len(args) != 2 || args[0].Kind() != jsoncanon.KindString || args[1].Kind() != jsoncanon.KindString {
			return jsoncanon.Value{}, buildfile.New(buildfile.KindBadArg, "malformed read arguments")
		}
		return e.Read(args[0].Str(), operation.FileComparison(args[1].Str()), createdFiles)

	case operation.OpListDir:
		if len(args) != 1 || args[0].Kind() != jsoncanon.KindString {
			return jsoncanon.Value{}, buildfile.New(buildfile.KindBadArg, "malformed list_dir arguments")
		}
		subfiles, err := e.ListDir(args[0].Str(), createdFiles)
		if err != nil {
			return jsoncanon.Value{}, err
		}
		return stringsToValue(subfiles), nil

	case operation.OpWalk:
		if len(args) != 2 || args[0].Kind() != jsoncanon.KindString || args[1].Kind() != jsoncanon.KindBool {
			return jsoncanon.Value{}, buildfile.New(buildfile.KindBadArg, "malformed walk arguments")
		}
		entries, err := e.Walk(args[0].Str(), args[1].Bool(), createdFiles)
		if err != nil {
			return jsoncanon.Value{}, err
		}
		return walkEntriesToValue(entries), nil

	case operation.OpIsFile:
		if len(args) != 1 || args[0].Kind() != jsoncanon.KindString {
			return jsoncanon.Value{}, buildfile.New(buildfile.KindBadArg, "malformed is_file arguments")
		}
		isFile, err := e.IsFile(args[0].Str(), createdFiles)
		if err != nil {
			return jsoncanon.Value{}, err
		}
		return jsoncanon.Bool(isFile), nil

	case operation.OpIsDir:
		if len(args) != 1 || args[0].Kind() != jsoncanon.KindString {
			return jsoncanon.Value{}, buildfile.New(buildfile.KindBadArg, "malformed is_dir arguments")
		}
		isDir, err := e.IsDir(args[0].Str(), createdFiles)
		if err != nil {
			return jsoncanon.Value{}, err
		}
		return jsoncanon.Bool(isDir), nil

	case operation.OpExists:
		if len(args) != 1 || args[0].Kind() != jsoncanon.KindString {
			return jsoncanon.Value{}, buildfile.New(buildfile.KindBadArg, "malformed exists arguments")
		}
		exists, err := e.Exists(args[0].Str(), createdFiles)
		if err != nil {
			return jsoncanon.Value{}, err
		}
		return jsoncanon.Bool(exists), nil

	case operation.OpGetSize:
		if len(args) != 1 || args[0].Kind() != jsoncanon.KindString {
			return jsoncanon.Value{}, buildfile.New(buildfile.KindBadArg, "malformed get_size arguments")
		}
		size, err := e.GetSize(args[0].Str(), createdFiles)
		if err != nil {
			return jsoncanon.Value{}, err
		}
		return jsoncanon.Int(size), nil

	default:
		return jsoncanon.Value{}, buildfile.New(buildfile.KindBadArg, "unknown simple operation: "+string(name))
	}
}

func stringsToValue(strs []string) jsoncanon.Value {
	values := make([]jsoncanon.Value, len(strs))
	for i, s := range strs {
		values[i] = jsoncanon.String(s)
	}
	return jsoncanon.Seq(values)
}

// walkEntriesToValue serializes each WalkEntry as a 3-element tuple
// [dir, subdirs, subfiles], matching the shape a Walk caller would expect
// from the cache file's JSON.
func walkEntriesToValue(entries []WalkEntry) jsoncanon.Value {
	values := make([]jsoncanon.Value, len(entries))
	for i, entry := range entries {
		values[i] = jsoncanon.Seq([]jsoncanon.Value{
			jsoncanon.String(entry.Dir),
			stringsToValue(entry.Subdirs),
			stringsToValue(entry.Subfiles),
		})
	}
	return jsoncanon.Seq(values)
}
