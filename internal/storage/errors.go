package storage

import "errors"

// ErrNotFound 尚未有任何归档的 Digest
var ErrNotFound = errors.New("digest not found")
