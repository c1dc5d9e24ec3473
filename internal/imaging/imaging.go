// Package imaging is a thin semantic wrapper over libvips (via bimg). Images
// enter and leave as encoded byte blobs; handles are scoped inside each call.
package imaging

import (
	"bytes"
	"fmt"

	"github.com/h2non/bimg"
)

// Format enumerates the accepted source formats.
type Format string

const (
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatJPEG    Format = "jpeg"
	FormatUnknown Format = ""
)

// magicEntry pairs a format with its leading magic bytes.
type magicEntry struct {
	format Format
	magic  []byte
}

var magicTable = []magicEntry{
	{FormatPNG, []byte("\x89PNG\r\n\x1a\n")},
	{FormatGIF, []byte("GIF8")},
	{FormatJPEG, []byte("\xff\xd8\xff")},
}

// Sniff identifies the image format from its leading magic bytes. The file
// extension never decides the format.
func Sniff(data []byte) Format {
	for _, e := range magicTable {
		if bytes.HasPrefix(data, e.magic) {
			return e.format
		}
	}
	return FormatUnknown
}

// Options describe one transformation pass.
type Options struct {
	// Width and Height are the exact target dimensions; both zero means no
	// resize. libvips resizes with its Lanczos3 kernel.
	Width  int
	Height int
	// Gray converts the image to single-channel luminance.
	Gray bool
	// Recompress forces JPEG output at Quality with metadata stripped.
	// When false the source encoding is kept.
	Recompress bool
	Quality    int
}

// Codec wraps libvips via bimg to transform images.
type Codec struct{}

// New creates a new Codec instance.
func New() *Codec {
	return &Codec{}
}

// Size decodes the blob header and returns the pixel dimensions. It doubles
// as the decodability probe for cached blobs.
func (c *Codec) Size(source []byte) (int, int, error) {
	if len(source) == 0 {
		return 0, 0, fmt.Errorf("source payload is empty")
	}
	size, err := bimg.NewImage(source).Size()
	if err != nil {
		return 0, 0, fmt.Errorf("decode image: %w", err)
	}
	return size.Width, size.Height, nil
}

// Transform applies resize, grayscale and recompression in one pass and
// returns the encoded result.
func (c *Codec) Transform(source []byte, opts Options) ([]byte, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("source payload is empty")
	}
	options := bimg.Options{
		Width:  opts.Width,
		Height: opts.Height,
	}
	if opts.Width > 0 || opts.Height > 0 {
		// Dimensions are computed by the caller; never preserve aspect here.
		options.Force = true
	}
	if opts.Gray {
		options.Interpretation = bimg.InterpretationBW
	}
	if opts.Recompress {
		options.Type = bimg.JPEG
		options.Quality = opts.Quality
		options.StripMetadata = true
	}
	result, err := bimg.NewImage(source).Process(options)
	if err != nil {
		return nil, fmt.Errorf("process image: %w", err)
	}
	return result, nil
}

// Baseline re-encodes the source as a stripped JPEG at the given quality.
func (c *Codec) Baseline(source []byte, quality int) ([]byte, error) {
	return c.Transform(source, Options{Recompress: true, Quality: quality})
}
