package rxdoc

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Letterhead is the static practitioner and clinic content printed on every
// document. It is configuration, never derived from the model.
type Letterhead struct {
	PractitionerName       string   `json:"practitioner_name"`
	PractitionerCredential string   `json:"practitioner_credential"`
	RegistrationNumber     string   `json:"registration_number"`
	ClinicName             string   `json:"clinic_name"`
	ClinicAddress          []string `json:"clinic_address"`
	ClinicPhone            string   `json:"clinic_phone"`
}

// DefaultLetterhead returns the letterhead of the clinic the application was
// first deployed for.
func DefaultLetterhead() Letterhead {
	return Letterhead{
		PractitionerName:       "Dr. G Sailendra Mohan",
		PractitionerCredential: "BAMS",
		RegistrationNumber:     "12345",
		ClinicName:             "Sailendra Ayurveda clinic",
		ClinicAddress:          []string{"Sree Ramula peta", "Moragudi - 516434"},
		ClinicPhone:            "+91 76762 06183",
	}
}

// Asset file names looked up in the asset filesystem.
const (
	LogoAsset      = "logo.png"
	SignatureAsset = "signature.png"
	CheckmarkAsset = "checkmark.png"
)

// RequiredAssets lists every image the renderers read.
var RequiredAssets = []string{LogoAsset, SignatureAsset, CheckmarkAsset}

// TrueType faces used for PDF text. The embedded defaults are DejaVu Sans
// Condensed (Latin, Greek, Cyrillic); an asset directory may supply faces
// covering other scripts under the same names.
const (
	FontRegularAsset = "fonts/sans.ttf"
	FontBoldAsset    = "fonts/sans-bold.ttf"
)

const fontFamily = "rxsans"

//go:embed assets/*.png assets/fonts/*.ttf
var embeddedAssets embed.FS

// DefaultAssets returns the images compiled into the binary.
func DefaultAssets() fs.FS {
	sub, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		panic(fmt.Sprintf("rxdoc: embedded assets: %v", err))
	}
	return sub
}

// DirAssets serves assets from dir, e.g. a clinic's own logo and signature.
// Missing files are detected by CheckAssets or surface as render failures.
func DirAssets(dir string) fs.FS {
	return os.DirFS(dir)
}

// CheckAssets verifies that every required image is readable.
func CheckAssets(assets fs.FS) error {
	for _, name := range RequiredAssets {
		if _, err := fs.Stat(assets, name); err != nil {
			return fmt.Errorf("asset %s: %w", name, err)
		}
	}
	return nil
}

// ReadFont reads a TrueType face from assets, falling back to the embedded
// face when assets does not provide one.
func ReadFont(assets fs.FS, name string) ([]byte, error) {
	data, err := fs.ReadFile(assets, name)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = fs.ReadFile(DefaultAssets(), name)
	}
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", name, err)
	}
	if !isTrueType(data) {
		return nil, fmt.Errorf("font %s: not a TrueType file", name)
	}
	return data, nil
}

func isTrueType(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	switch string(data[:4]) {
	case "\x00\x01\x00\x00", "true":
		return true
	}
	return false
}
