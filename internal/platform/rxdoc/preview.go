package rxdoc

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io/fs"
	"mime"
	"path"
)

//go:embed templates/preview.html
var templateFS embed.FS

var previewTemplate = template.Must(template.ParseFS(templateFS, "templates/preview.html"))

type previewData struct {
	*View
	Logo         template.URL
	Signature    template.URL
	Checkmark    template.URL
	Download     template.URL
	DownloadName string
}

func (r *Renderer) renderPreview(v *View, pdfBytes []byte, pdfName string) ([]byte, error) {
	data := previewData{
		View:         v,
		Download:     dataURI("application/pdf", pdfBytes),
		DownloadName: pdfName,
	}
	for _, img := range []struct {
		name string
		dst  *template.URL
	}{
		{LogoAsset, &data.Logo},
		{SignatureAsset, &data.Signature},
		{CheckmarkAsset, &data.Checkmark},
	} {
		u, err := r.assetURL(img.name)
		if err != nil {
			return nil, err
		}
		*img.dst = u
	}

	var buf bytes.Buffer
	if err := previewTemplate.ExecuteTemplate(&buf, "preview.html", data); err != nil {
		return nil, fmt.Errorf("execute preview template: %w", err)
	}
	return buf.Bytes(), nil
}

// assetURL links to the served asset when a prefix is configured and
// otherwise inlines it, so a saved preview page stays self-contained.
func (r *Renderer) assetURL(name string) (template.URL, error) {
	data, err := fs.ReadFile(r.assets, name)
	if err != nil {
		return "", fmt.Errorf("read asset %s: %w", name, err)
	}
	if r.assetURLPrefix != "" {
		return template.URL(r.assetURLPrefix + name), nil
	}
	ct := mime.TypeByExtension(path.Ext(name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return dataURI(ct, data), nil
}

func dataURI(contentType string, data []byte) template.URL {
	return template.URL("data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data))
}
