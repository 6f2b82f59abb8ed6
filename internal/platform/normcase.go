// Package platform isolates the handful of filesystem behaviors that differ
// by platform rather than by choice: case normalization (for de-duplicating
// filenames the way build_dirs/cache do throughout this module) and
// symbolic-link detection (for walk). NormCase is exposed as a package-level
// function variable rather than a hard call, so tests can inject
// case-insensitive behavior on a case-sensitive host and vice versa;
// IsSymlink is a plain function.
package platform

// NormCase returns the platform's case-normalized form of path. On POSIX
// platforms this is the identity function; on Windows it lowercases and
// normalizes path separators. Tests may reassign this variable to exercise
// case-insensitive-filesystem code paths on a case-sensitive CI host, or
// vice versa.
var NormCase = defaultNormCase
