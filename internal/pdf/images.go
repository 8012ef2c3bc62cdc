package pdf

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/MeKo-Tech/pdflabels/internal/layout"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// exportedImage is an image stream re-encoded by pdfcpu.
type exportedImage struct {
	data []byte
	ext  string
}

// pageExport is the outcome of exporting the images of one page.
type pageExport struct {
	images map[string]exportedImage
	err    error
}

// pageImage is the layout.ImageSource of an image drawn on a page. Export is
// deferred until the image is opened, and all images of a page are exported
// together.
type pageImage struct {
	doc  *Document
	page int
	name string
	// sole is set when this is the only image the page draws. Only then may
	// an export stored under another name stand in for it.
	sole bool
}

func (s *pageImage) Open() (io.ReadCloser, string, error) {
	images, err := s.doc.pageImages(s.page)
	if err != nil {
		return nil, "", err
	}
	img, ok := images[s.name]
	if !ok && s.sole && len(images) == 1 {
		for _, only := range images {
			img, ok = only, true
		}
	}
	if !ok {
		return nil, "", fmt.Errorf("%w: %s on page %d", layout.ErrImageUnsupported, s.name, s.page)
	}
	return io.NopCloser(bytes.NewReader(img.data)), img.ext, nil
}

// imageCache holds the pdfcpu context used for image export and the
// exported images of every page opened so far.
type imageCache struct {
	read  bool
	ctx   *model.Context
	err   error
	pages map[int]pageExport
}

func newImageCache() *imageCache {
	return &imageCache{pages: make(map[int]pageExport)}
}

// pageImages exports the images of page (one based), keyed by resource name.
// An image that cannot be exported is left out. The outcome is cached,
// failures included.
func (d *Document) pageImages(page int) (map[string]exportedImage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.images == nil {
		return nil, fmt.Errorf("document %q is closed", d.path)
	}
	if exp, ok := d.images.pages[page]; ok {
		return exp.images, exp.err
	}

	imgs, err := d.exportPage(page)
	if err != nil {
		d.logger.Warn("image export failed", "file", d.path, "page", page, "error", err)
		err = fmt.Errorf("%w: %v", layout.ErrImageUnsupported, err)
	}
	d.images.pages[page] = pageExport{images: imgs, err: err}
	return imgs, err
}

func (d *Document) exportPage(page int) (map[string]exportedImage, error) {
	ctx, err := d.imageContext()
	if err != nil {
		return nil, err
	}

	imgs := make(map[string]exportedImage)
	objNrs, err := pageImageObjects(ctx, page)
	if err != nil {
		return nil, err
	}
	for _, objNr := range objNrs {
		obj := ctx.Optimize.ImageObjects[objNr]
		if obj == nil {
			continue
		}
		img, err := extractImage(ctx, obj, page, objNr)
		if err != nil {
			d.logger.Warn("skipping undecodable image", "file", d.path, "page", page,
				"image", obj.ResourceNames[page-1], "error", err)
			continue
		}
		imgs[img.name] = img.exportedImage
	}
	return imgs, nil
}

// imageContext reads the document into pdfcpu once. A document failing
// validation is read again without it, so one malformed object does not
// hide the images of every page.
func (d *Document) imageContext() (*model.Context, error) {
	c := d.images
	if c.read {
		return c.ctx, c.err
	}
	c.read = true

	conf := pdfcpuConfig(d.creds)
	conf.Cmd = model.EXTRACTIMAGES
	c.ctx, c.err = readImageContext(d.data, conf, true)
	if c.err != nil {
		d.logger.Debug("reading images without validation", "file", d.path, "error", c.err)
		c.ctx, c.err = readImageContext(d.data, conf, false)
	}
	return c.ctx, c.err
}

func readImageContext(data []byte, conf *model.Configuration, validate bool) (ctx *model.Context, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ctx, err = nil, fmt.Errorf("pdfcpu panic: %v", rec)
		}
	}()

	if validate {
		return api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	}
	if ctx, err = api.ReadContext(bytes.NewReader(data), conf); err != nil {
		return nil, err
	}
	if err = ctx.EnsurePageCount(); err != nil {
		return nil, err
	}
	if err = api.OptimizeContext(ctx); err != nil {
		return nil, err
	}
	return ctx, nil
}

func pageImageObjects(ctx *model.Context, page int) (objNrs []int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdfcpu panic: %v", rec)
		}
	}()
	return pdfcpu.ImageObjNrs(ctx, page), nil
}

type namedImage struct {
	exportedImage
	name string
}

func extractImage(ctx *model.Context, obj *model.ImageObject, page, objNr int) (out namedImage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdfcpu panic: %v", rec)
		}
	}()

	img, err := pdfcpu.ExtractImage(ctx, obj.ImageDict, false, obj.ResourceNames[page-1], objNr, false)
	if err != nil {
		return namedImage{}, err
	}
	if img == nil {
		return namedImage{}, fmt.Errorf("object %d has no image data", objNr)
	}
	data, err := io.ReadAll(img)
	if err != nil {
		return namedImage{}, err
	}
	return namedImage{
		exportedImage: exportedImage{data: data, ext: "." + strings.ToLower(img.FileType)},
		name:          img.Name,
	}, nil
}
