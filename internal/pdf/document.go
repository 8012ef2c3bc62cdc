// Package pdf opens PDF documents and turns their pages into layout trees.
//
// The object model and content-stream tokenizer come from
// github.com/dslipak/pdf; image export and decryption come from pdfcpu.
package pdf

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/MeKo-Tech/pdflabels/internal/coords"
	"github.com/MeKo-Tech/pdflabels/internal/layout"
	"github.com/dslipak/pdf"
)

// maxInheritDepth bounds the walk up the page tree for inherited attributes.
const maxInheritDepth = 32

// Options configures how documents are opened and analysed.
type Options struct {
	Credentials Credentials
	Layout      layout.Params
	Logger      *slog.Logger
}

// Document is an opened PDF. It is not safe for concurrent use.
type Document struct {
	path     string
	data     []byte
	reader   *pdf.Reader
	analyzer *layout.Analyzer
	creds    Credentials
	logger   *slog.Logger

	mu     sync.Mutex
	images *imageCache
}

// Open reads and parses the document at path. Encrypted documents are
// decrypted with the configured credentials. Documents that forbid content
// extraction fail with ErrExtractionDenied.
func Open(path string, opts Options) (*Document, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: input paths come from discovery
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF %q: %w", path, err)
	}

	reader, err := newReader(data)
	switch {
	case err == nil:
		if err := checkPermissions(reader); err != nil {
			return nil, err
		}
	case IsPasswordError(err):
		logger.Debug("decrypting document", "file", path, "error", err)
		data, err = decrypt(path, opts.Credentials)
		if err != nil {
			return nil, err
		}
		if reader, err = newReader(data); err != nil {
			return nil, fmt.Errorf("failed to parse decrypted PDF %q: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("failed to parse PDF %q: %w", path, err)
	}

	return &Document{
		path:     path,
		data:     data,
		reader:   reader,
		analyzer: layout.NewAnalyzer(opts.Layout),
		creds:    opts.Credentials,
		logger:   logger,
		images:   newImageCache(),
	}, nil
}

// newReader parses data, turning parser panics into errors.
func newReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed PDF: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// Path returns the file the document was read from.
func (d *Document) Path() string { return d.path }

// NumPages returns the number of pages.
func (d *Document) NumPages() int { return d.reader.NumPage() }

// Page interprets and analyses page i (zero based).
func (d *Document) Page(i int) (page *layout.Page, err error) {
	if i < 0 || i >= d.NumPages() {
		return nil, fmt.Errorf("page index %d out of range [0,%d)", i, d.NumPages())
	}

	defer func() {
		if rec := recover(); rec != nil {
			page = nil
			err = fmt.Errorf("failed to interpret page %d: %v", i, rec)
		}
	}()

	p := d.reader.Page(i + 1)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d is null", i)
	}

	media := mediaBox(p.V)
	ctm := rotationMatrix(media, rotation(p.V))
	frame := pageFrame(media, ctm)

	root := &layout.Container{Kind: layout.KindPage, Box: frame}
	in := newInterpreter(d, i+1)
	in.run(contentStreams(p.V), inherited(p.V, "Resources"), ctm, root)
	if len(in.images) == 1 {
		in.images[0].sole = true
	}
	d.analyzer.Analyze(root)

	return &layout.Page{Index: i, BBox: frame, Root: root}, nil
}

// Close releases the document's buffers.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data = nil
	d.images = nil
	return nil
}

// inherited looks key up on the page and then on its ancestors.
func inherited(v pdf.Value, key string) pdf.Value {
	for i := 0; i < maxInheritDepth && !v.IsNull(); i++ {
		if val := v.Key(key); !val.IsNull() {
			return val
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

// mediaBox returns the page's media box, US Letter if none is declared.
func mediaBox(page pdf.Value) coords.BBox {
	v := inherited(page, "MediaBox")
	if v.Kind() != pdf.Array || v.Len() != 4 {
		return coords.BBox{X1: 612, Y1: 792}
	}
	return coords.New(v.Index(0).Float64(), v.Index(1).Float64(), v.Index(2).Float64(), v.Index(3).Float64())
}

// rotation returns /Rotate normalised to 0, 90, 180 or 270.
func rotation(page pdf.Value) int {
	r := int(inherited(page, "Rotate").Int64()) % 360
	if r < 0 {
		r += 360
	}
	return r - r%90
}

// rotationMatrix maps the media box into a frame with its origin at (0,0)
// and the page turned upright.
func rotationMatrix(media coords.BBox, rotate int) matrix {
	x0, y0, x1, y1 := media.X0, media.Y0, media.X1, media.Y1
	switch rotate {
	case 90:
		return matrix{0, -1, 1, 0, -y0, x1}
	case 180:
		return matrix{-1, 0, 0, -1, x1, y1}
	case 270:
		return matrix{0, 1, -1, 0, y1, -x0}
	default:
		return matrix{1, 0, 0, 1, -x0, -y0}
	}
}

func pageFrame(media coords.BBox, ctm matrix) coords.BBox {
	x0, y0 := ctm.apply(media.X0, media.Y0)
	x1, y1 := ctm.apply(media.X1, media.Y1)
	return coords.BBox{X1: math.Abs(x0 - x1), Y1: math.Abs(y0 - y1)}
}

func contentStreams(page pdf.Value) []pdf.Value {
	c := page.Key("Contents")
	switch c.Kind() {
	case pdf.Stream:
		return []pdf.Value{c}
	case pdf.Array:
		out := make([]pdf.Value, 0, c.Len())
		for i := 0; i < c.Len(); i++ {
			if s := c.Index(i); s.Kind() == pdf.Stream {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
