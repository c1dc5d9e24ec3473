// Package pathing maps image fingerprints and rendition descriptors onto the
// sharded on-disk layout and the canonical cache key space. All functions are
// pure; no I/O happens here.
package pathing

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// OriginName is the filename of the unmodified uploaded bytes inside an image
// directory.
const OriginName = "0*0p"

// BaselineName is the filename of the JPEG baseline written beside the origin
// at upload time.
const BaselineName = "0.jpg"

var fingerprintPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Fingerprint returns the lowercase hex MD5 of the given bytes.
func Fingerprint(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// IsFingerprint reports whether s is a well-formed 32-character lowercase hex
// fingerprint.
func IsFingerprint(s string) bool {
	return fingerprintPattern.MatchString(s)
}

// Rendition describes a derived image by its four request knobs. Zero width or
// height means unconstrained on that axis.
type Rendition struct {
	Width      int
	Height     int
	Proportion bool
	Gray       bool
}

// Origin is the rendition denoting the unmodified stored bytes.
var Origin = Rendition{Proportion: true}

// IsOrigin reports whether the rendition resolves to the stored origin file.
func (r Rendition) IsOrigin() bool {
	return r.Width == 0 && r.Height == 0 && !r.Gray
}

// Name returns the on-disk filename for the rendition: "<w>*<h>" followed by
// "p" and "g" for the flags that are set.
func (r Rendition) Name() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(r.Width))
	b.WriteByte('*')
	b.WriteString(strconv.Itoa(r.Height))
	if r.Proportion {
		b.WriteByte('p')
	}
	if r.Gray {
		b.WriteByte('g')
	}
	return b.String()
}

// Color returns the same rendition with the gray flag cleared.
func (r Rendition) Color() Rendition {
	r.Gray = false
	return r
}

// Key returns the canonical cache key for the rendition of the given
// fingerprint, e.g. "img:926ee2f570dc50b2575e35a6712b08ce:0:0:1:0".
func (r Rendition) Key(fp string) string {
	return fmt.Sprintf("img:%s:%d:%d:%d:%d", fp, r.Width, r.Height, boolDigit(r.Proportion), boolDigit(r.Gray))
}

func boolDigit(v bool) int {
	if v {
		return 1
	}
	return 0
}

// Layout computes sharded paths under a storage root. The two fan-out levels
// are derived from independent string hashes of the fingerprint so sibling
// directories stay small.
type Layout struct {
	Root      string
	L1Buckets int
	L2Buckets int
}

// Shard returns the two directory fan-out indices for a fingerprint.
func (l Layout) Shard(fp string) (int, int) {
	l1 := strHash(fp) % l.L1Buckets
	l2 := strHash(fp[3:]) % l.L2Buckets
	return l1, l2
}

// Dir returns the image directory for a fingerprint.
func (l Layout) Dir(fp string) string {
	l1, l2 := l.Shard(fp)
	return filepath.Join(l.Root, strconv.Itoa(l1), strconv.Itoa(l2), fp)
}

// OriginPath returns the path of the stored origin file.
func (l Layout) OriginPath(fp string) string {
	return filepath.Join(l.Dir(fp), OriginName)
}

// BaselinePath returns the path of the upload-time JPEG baseline.
func (l Layout) BaselinePath(fp string) string {
	return filepath.Join(l.Dir(fp), BaselineName)
}

// RenditionPath returns the materialization path for a rendition. The origin
// rendition resolves to the origin file itself.
func (l Layout) RenditionPath(fp string, r Rendition) string {
	if r.IsOrigin() {
		return l.OriginPath(fp)
	}
	return filepath.Join(l.Dir(fp), r.Name())
}

// strHash is the djb2 string hash. It must stay stable across releases: the
// on-disk fan-out is derived from it.
func strHash(s string) int {
	h := uint32(5381)
	for i := 0; i < len(s); i++ {
		h = h*33 + uint32(s[i])
	}
	return int(h & 0x7fffffff)
}
