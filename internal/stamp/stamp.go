// Package stamp implements the stamp oracle: on-demand, memoized
// content stamps for sources, products, and library entries.
package stamp

import (
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"golang.org/x/crypto/blake2b"

	"incrc/internal/errors"
)

// Tag identifies the kind of payload a Stamp carries. A content-hash stamp
// is never equivalent to a timestamp stamp even if computed from the same
// file, since their tags differ.
type Tag int

const (
	// Empty marks a stamp with no payload, e.g. for a file that does not
	// exist yet.
	Empty Tag = iota
	// LastModified marks a stamp whose payload is a Unix nanosecond
	// timestamp.
	LastModified
	// ContentHash marks a stamp whose payload is a hex-encoded digest.
	ContentHash
)

// Stamp is a tagged value; two stamps are equivalent iff their tag and
// payload match byte-for-byte.
type Stamp struct {
	Tag     Tag
	Payload string
}

// Equiv reports whether s and other are equivalent: same tag,
// same payload.
func (s Stamp) Equiv(other Stamp) bool {
	return s.Tag == other.Tag && s.Payload == other.Payload
}

// IsEmpty reports whether s carries no payload.
func (s Stamp) IsEmpty() bool {
	return s.Tag == Empty
}

// Oracle computes and memoizes stamps for one compile run. It is not safe
// for the caller to retain stamps across runs; a fresh Oracle is created per
// run and its cache discarded at end-of-run.
type Oracle struct {
	mu         sync.Mutex
	root       string
	useHash    bool
	sourceMap  map[string]Stamp
	productMap map[string]Stamp
	libraryMap map[string]Stamp
}

// New creates an Oracle. useContentHash selects content-hash stamps
// (byte-for-byte comparison, resilient to touch/rebuild without a real
// edit); otherwise modification-time stamps are used, which is cheaper but
// can report spurious changes after a checkout or clean rebuild.
func New(useContentHash bool) *Oracle {
	return NewAt("", useContentHash)
}

// NewAt creates an Oracle that resolves relative paths against root, so
// callers can hand it the same repo-relative identifiers the rest of the
// analysis uses regardless of the process working directory.
func NewAt(root string, useContentHash bool) *Oracle {
	return &Oracle{
		root:       root,
		useHash:    useContentHash,
		sourceMap:  make(map[string]Stamp),
		productMap: make(map[string]Stamp),
		libraryMap: make(map[string]Stamp),
	}
}

// resolve maps a possibly repo-relative path to the filesystem location to
// stat. Cache keys stay as given, so identifiers remain stable.
func (o *Oracle) resolve(path string) string {
	if o.root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(o.root, path)
}

// Source returns the memoized stamp for a source file at path, computing it
// on first read.
func (o *Oracle) Source(path string) (Stamp, error) {
	return o.memoized(&o.sourceMap, path)
}

// Product returns the memoized stamp for a generated product at path.
func (o *Oracle) Product(path string) (Stamp, error) {
	return o.memoized(&o.productMap, path)
}

// Library returns the memoized stamp for a classpath entry at path.
func (o *Oracle) Library(path string) (Stamp, error) {
	return o.memoized(&o.libraryMap, path)
}

func (o *Oracle) memoized(cache *map[string]Stamp, path string) (Stamp, error) {
	o.mu.Lock()
	if s, ok := (*cache)[path]; ok {
		o.mu.Unlock()
		return s, nil
	}
	o.mu.Unlock()

	s, err := o.compute(path)
	if err != nil {
		return Stamp{}, err
	}

	o.mu.Lock()
	(*cache)[path] = s
	o.mu.Unlock()
	return s, nil
}

func (o *Oracle) compute(path string) (Stamp, error) {
	if o.useHash {
		return hashStamp(path, o.resolve(path))
	}
	return mtimeStamp(path, o.resolve(path))
}

func mtimeStamp(path, resolved string) (Stamp, error) {
	info, err := os.Stat(resolved)
	if err != nil {
		return Stamp{}, errors.Wrap(errors.StampUnavailable, "cannot stat "+path, err)
	}
	return Stamp{Tag: LastModified, Payload: strconv.FormatInt(info.ModTime().UnixNano(), 10)}, nil
}

func hashStamp(path, resolved string) (Stamp, error) {
	f, err := os.Open(resolved)
	if err != nil {
		return Stamp{}, errors.Wrap(errors.StampUnavailable, "cannot open "+path, err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return Stamp{}, errors.Wrap(errors.StampUnavailable, "cannot init digest", err)
	}
	if _, err := io.Copy(h, f); err != nil {
		return Stamp{}, errors.Wrap(errors.StampUnavailable, "cannot read "+path, err)
	}
	return Stamp{Tag: ContentHash, Payload: hex.EncodeToString(h.Sum(nil))}, nil
}
