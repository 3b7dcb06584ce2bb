package dbaccess

import "bytes"

// Bucket namespaces a store's keys within the shared database, the way
// the teacher's dbaccess buckets separate block headers from block
// relations from reachability data.
type Bucket struct {
	path []byte
}

// MakeBucket returns a top-level bucket rooted at path.
func MakeBucket(path []byte) *Bucket {
	return &Bucket{path: path}
}

// Bucket returns a sub-bucket nested under this one.
func (b *Bucket) Bucket(path []byte) *Bucket {
	return &Bucket{path: append(append([]byte{}, b.path...), path...)}
}

// Key returns the fully-qualified key for suffix within this bucket.
func (b *Bucket) Key(suffix []byte) []byte {
	key := make([]byte, 0, len(b.path)+len(suffix)+1)
	key = append(key, b.path...)
	key = append(key, '/')
	key = append(key, suffix...)
	return key
}

// Path returns the bucket's own prefix, for use with DBReader.Cursor.
func (b *Bucket) Path() []byte {
	return bytes.Clone(b.path)
}
