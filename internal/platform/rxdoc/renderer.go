package rxdoc

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
)

// Format selects the presentation produced by Render.
type Format string

const (
	// FormatPDF is the fixed-layout A4 download.
	FormatPDF Format = "pdf"
	// FormatPreview is the on-screen HTML review page.
	FormatPreview Format = "html"
)

// ParseFormat maps a query value to a Format. An empty value selects PDF.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pdf":
		return FormatPDF, nil
	case "html", "preview":
		return FormatPreview, nil
	default:
		return "", fmt.Errorf("unknown format %q (want pdf or html)", s)
	}
}

// Artifact is a rendered document ready to be written to a client.
type Artifact struct {
	ContentType string
	Filename    string
	Body        []byte
}

// RenderError reports that a document could not be produced. No partial
// artifact accompanies it; rendering the same model again is always safe.
type RenderError struct {
	Format Format
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Format, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Options configures a Renderer.
type Options struct {
	// Letterhead printed on every document. Nil uses DefaultLetterhead.
	Letterhead *Letterhead
	// Assets holds the images named in RequiredAssets. Nil uses DefaultAssets.
	Assets fs.FS
	// AssetURLPrefix is where the preview page loads images from, e.g.
	// "/assets/". Empty inlines the images as data URIs.
	AssetURLPrefix string
	// DisableCompression writes uncompressed PDF content streams.
	DisableCompression bool
}

// Renderer turns Document Models into artifacts. It holds only read-only
// configuration and is safe for concurrent use.
type Renderer struct {
	letterhead     Letterhead
	assets         fs.FS
	assetURLPrefix string
	compress       bool
}

// NewRenderer creates a Renderer from opts.
func NewRenderer(opts Options) *Renderer {
	r := &Renderer{
		letterhead:     DefaultLetterhead(),
		assets:         opts.Assets,
		assetURLPrefix: opts.AssetURLPrefix,
		compress:       !opts.DisableCompression,
	}
	if opts.Letterhead != nil {
		r.letterhead = *opts.Letterhead
	}
	if r.assets == nil {
		r.assets = DefaultAssets()
	}
	return r
}

// Letterhead returns the configured letterhead.
func (r *Renderer) Letterhead() Letterhead { return r.letterhead }

// Render produces an artifact for an unsaved model. The download name
// carries only the formatted date.
func (r *Renderer) Render(p *Prescription, format Format) (*Artifact, error) {
	if p == nil {
		return nil, &RenderError{Format: format, Err: errors.New("nil prescription")}
	}
	return r.render(p, format, Filename("", p.Date))
}

// RenderRecord produces an artifact for a persisted record. The download
// name carries the patient name and the formatted date.
func (r *Renderer) RenderRecord(p *Prescription, format Format) (*Artifact, error) {
	if p == nil {
		return nil, &RenderError{Format: format, Err: errors.New("nil prescription")}
	}
	return r.render(p, format, Filename(p.PatientName, p.Date))
}

func (r *Renderer) render(p *Prescription, format Format, pdfName string) (*Artifact, error) {
	if format != FormatPDF && format != FormatPreview {
		return nil, &RenderError{Format: format, Err: fmt.Errorf("unsupported format %q", format)}
	}

	v := BuildView(p, r.letterhead)
	pdfBytes, err := r.renderPDF(v, creationDate(p.Date))
	if err != nil {
		return nil, &RenderError{Format: format, Err: err}
	}
	if format == FormatPDF {
		return &Artifact{ContentType: "application/pdf", Filename: pdfName, Body: pdfBytes}, nil
	}

	html, err := r.renderPreview(v, pdfBytes, pdfName)
	if err != nil {
		return nil, &RenderError{Format: format, Err: err}
	}
	return &Artifact{
		ContentType: "text/html; charset=utf-8",
		Filename:    strings.TrimSuffix(pdfName, ".pdf") + ".html",
		Body:        html,
	}, nil
}

// creationDate pins the PDF metadata timestamp to the prescription date so
// the same model always yields the same bytes.
func creationDate(date string) time.Time {
	if t, ok := ParseDate(date); ok {
		return t
	}
	return time.Unix(0, 0).UTC()
}

// Filename returns the download name for a document, e.g.
// "prescription-Ravi-Kumar-05-03-2024.pdf". The patient name is optional;
// path separators and quotes are removed and whitespace runs become a dash.
func Filename(patientName, date string) string {
	datePart := sanitizeFilePart(strings.ReplaceAll(FormatDate(date), "/", "-"))
	namePart := sanitizeFilePart(patientName)

	parts := []string{"prescription"}
	if namePart != "" {
		parts = append(parts, namePart)
	}
	if datePart != "" {
		parts = append(parts, datePart)
	}
	return strings.Join(parts, "-") + ".pdf"
}

func sanitizeFilePart(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', '\'', ':':
			return -1
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), "-")
}
