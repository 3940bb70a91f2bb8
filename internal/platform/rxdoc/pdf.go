package rxdoc

import (
	"bytes"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// Page geometry in millimetres. The source layout was specified in points;
// 1pt = 0.3528mm.
const (
	pageMargin     = 11.3
	logoSize       = 22.6
	signatureW     = 56.4
	signatureH     = 14.1
	checkmarkSize  = 4.2
	tableRowH      = 11.3
	sectionGap     = 8.5
	lineH          = 5.5
	labelW         = 22.6
	cellPad        = 2.8
	signatureBlock = signatureH + 2 + 5 + 5
)

type rgb struct{ r, g, b int }

var (
	colorText     = rgb{17, 24, 39}
	colorMuted    = rgb{75, 85, 99}
	colorHeading  = rgb{31, 41, 55}
	colorRule     = rgb{229, 231, 235}
	colorBorder   = rgb{209, 213, 219}
	colorHeaderBg = rgb{243, 244, 246}
	colorCell     = rgb{53, 53, 53}
)

// pdfDoc carries the drawing state for one render.
type pdfDoc struct {
	pdf   *fpdf.Fpdf
	left  float64
	width float64
	pageH float64
}

func (r *Renderer) renderPDF(v *View, created time.Time) (out []byte, err error) {
	// fpdf panics on some input it cannot encode, e.g. runes outside the
	// Basic Multilingual Plane.
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("pdf engine: %v", rec)
		}
	}()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)
	pdf.SetCompression(r.compress)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(created)
	pdf.SetModificationDate(created)
	pdf.SetCreator("rxdesk", false)
	pdf.SetAuthor(v.Letterhead.PractitionerName, true)
	pdf.SetTitle("Prescription "+v.Date, true)

	if err := registerFonts(pdf, r.assets); err != nil {
		return nil, err
	}
	if err := registerImages(pdf, r.assets); err != nil {
		return nil, err
	}

	pageW, pageH := pdf.GetPageSize()
	d := &pdfDoc{
		pdf:   pdf,
		left:  pageMargin,
		width: pageW - 2*pageMargin,
		pageH: pageH,
	}

	pdf.AddPage()
	d.dateLine(v)
	d.header(v.Letterhead)
	d.fieldSection("Patient Information", v.Patient)
	if v.HasVitals() {
		d.fieldSection("Vital Signs", v.Vitals)
	}
	if v.HasMedicines() {
		d.medicines(v)
	}
	if v.HasTests() {
		d.tests(v.Tests)
	}
	if v.HasNotes() {
		d.notes(v)
	}
	if v.HasNextVisit() {
		d.nextVisit(v.NextVisit)
	}
	d.signature(v.Letterhead)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("compose pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// registerFonts embeds the Unicode text faces. Text is written as UTF-16 so
// every displayed value reaches the PDF unchanged; runes the face has no
// glyph for draw as the font's missing-glyph box.
func registerFonts(pdf *fpdf.Fpdf, assets fs.FS) error {
	for _, f := range []struct{ name, style string }{
		{FontRegularAsset, ""},
		{FontBoldAsset, "B"},
	} {
		data, err := ReadFont(assets, f.name)
		if err != nil {
			return err
		}
		pdf.AddUTF8FontFromBytes(fontFamily, f.style, data)
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("load font %s: %w", f.name, err)
		}
	}
	return nil
}

func registerImages(pdf *fpdf.Fpdf, assets fs.FS) error {
	for _, name := range RequiredAssets {
		data, err := fs.ReadFile(assets, name)
		if err != nil {
			return fmt.Errorf("read asset %s: %w", name, err)
		}
		pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(data))
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("decode asset %s: %w", name, err)
		}
	}
	return nil
}

func (d *pdfDoc) font(style string, size float64, c rgb) {
	d.pdf.SetFont(fontFamily, style, size)
	d.pdf.SetTextColor(c.r, c.g, c.b)
}

// ensureSpace starts a new page when h millimetres no longer fit above the
// bottom margin.
func (d *pdfDoc) ensureSpace(h float64) {
	if d.pdf.GetY()+h > d.pageH-pageMargin {
		d.pdf.AddPage()
	}
}

func (d *pdfDoc) dateLine(v *View) {
	d.font("", 12, colorMuted)
	d.pdf.CellFormat(d.width, 6, "Date: "+v.Date, "", 1, "R", false, 0, "")
	d.pdf.Ln(5.6)
}

func (d *pdfDoc) header(lh Letterhead) {
	pdf := d.pdf
	top := pdf.GetY()

	pdf.ImageOptions(LogoAsset, d.left, top, logoSize, logoSize, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	textX := d.left + logoSize + 5.6
	pdf.SetXY(textX, top)
	d.font("B", 16, colorText)
	pdf.CellFormat(d.width*0.5-logoSize-5.6, 7, lh.PractitionerName, "", 2, "L", false, 0, "")
	d.font("", 11, colorMuted)
	if lh.PractitionerCredential != "" {
		pdf.CellFormat(d.width*0.5-logoSize-5.6, 5, lh.PractitionerCredential, "", 2, "L", false, 0, "")
	}
	if lh.RegistrationNumber != "" {
		pdf.CellFormat(d.width*0.5-logoSize-5.6, 5, "Reg. No: "+lh.RegistrationNumber, "", 2, "L", false, 0, "")
	}
	leftBottom := pdf.GetY()

	clinicW := d.width * 0.4
	clinicX := d.left + d.width - clinicW
	pdf.SetXY(clinicX, top)
	d.font("B", 16, colorText)
	pdf.CellFormat(clinicW, 7, lh.ClinicName, "", 2, "R", false, 0, "")
	d.font("", 11, colorMuted)
	for _, line := range lh.ClinicAddress {
		pdf.CellFormat(clinicW, 5, line, "", 2, "R", false, 0, "")
	}
	if lh.ClinicPhone != "" {
		pdf.CellFormat(clinicW, 5, "Phone: "+lh.ClinicPhone, "", 2, "R", false, 0, "")
	}

	bottom := top + logoSize
	for _, y := range []float64{leftBottom, pdf.GetY()} {
		if y > bottom {
			bottom = y
		}
	}
	pdf.SetXY(d.left, bottom+sectionGap)
}

func (d *pdfDoc) sectionTitle(title string) {
	d.ensureSpace(7 + 3 + tableRowH)
	pdf := d.pdf
	pdf.SetX(d.left)
	d.font("B", 14, colorHeading)
	pdf.CellFormat(d.width, 7, title, "", 1, "L", false, 0, "")
	y := pdf.GetY() + 1
	pdf.SetDrawColor(colorRule.r, colorRule.g, colorRule.b)
	pdf.SetLineWidth(0.35)
	pdf.Line(d.left, y, d.left+d.width, y)
	pdf.SetY(y + 2.8)
}

// fieldSection lays out up to three labelled values per row.
func (d *pdfDoc) fieldSection(title string, fields []Field) {
	d.sectionTitle(title)
	pdf := d.pdf
	colW := d.width / 3
	for i, f := range fields {
		col := i % 3
		if col == 0 && i > 0 {
			pdf.Ln(lineH)
		}
		pdf.SetX(d.left + float64(col)*colW)
		d.font("B", 11, colorMuted)
		pdf.CellFormat(labelW, lineH, f.Label+":", "", 0, "L", false, 0, "")
		d.font("", 11, colorText)
		pdf.CellFormat(colW-labelW, lineH, f.Value, "", 0, "L", false, 0, "")
	}
	pdf.Ln(lineH)
	pdf.Ln(sectionGap)
}

type column struct {
	title string
	width float64
	align string
}

func (d *pdfDoc) tableHeader(cols []column) {
	pdf := d.pdf
	pdf.SetX(d.left)
	pdf.SetFillColor(colorHeaderBg.r, colorHeaderBg.g, colorHeaderBg.b)
	pdf.SetDrawColor(colorBorder.r, colorBorder.g, colorBorder.b)
	pdf.SetLineWidth(0.35)
	d.font("B", 11, colorCell)
	for _, c := range cols {
		pdf.CellFormat(c.width, tableRowH, c.title, "1", 0, c.align, true, 0, "")
	}
	pdf.Ln(-1)
}

// wrap splits text into lines no wider than w, breaking at spaces and
// inside words only when a single word is wider than w.
func (d *pdfDoc) wrap(text string, w float64) []string {
	if text == "" {
		return nil
	}
	if d.pdf.GetStringWidth(text) <= w {
		return []string{text}
	}
	var lines []string
	line := ""
	for _, word := range strings.Split(text, " ") {
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		if d.pdf.GetStringWidth(candidate) <= w {
			line = candidate
			continue
		}
		if line != "" {
			lines = append(lines, line)
			line = ""
		}
		for d.pdf.GetStringWidth(word) > w {
			head := d.fit([]rune(word), w)
			lines = append(lines, string(head))
			word = word[len(string(head)):]
		}
		line = word
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// fit returns the longest prefix of rs, at least one rune, that is no wider
// than w.
func (d *pdfDoc) fit(rs []rune, w float64) []rune {
	n := 1
	for n < len(rs) && d.pdf.GetStringWidth(string(rs[:n+1])) <= w {
		n++
	}
	return rs[:n]
}

// rowHeight returns the height needed to wrap text into a cell of width w.
func (d *pdfDoc) rowHeight(text string, w float64) (float64, []string) {
	lines := d.wrap(text, w-2*cellPad)
	if len(lines) == 0 {
		lines = []string{""}
	}
	h := float64(len(lines))*lineH + 2*cellPad
	if h < tableRowH {
		h = tableRowH
	}
	return h, lines
}

// wrappedCell draws a bordered cell of height h with pre-split lines,
// vertically centred.
func (d *pdfDoc) wrappedCell(x, y, w, h float64, lines []string, align string) {
	pdf := d.pdf
	pdf.Rect(x, y, w, h, "D")
	textTop := y + (h-float64(len(lines))*lineH)/2
	for i, line := range lines {
		pdf.SetXY(x+cellPad, textTop+float64(i)*lineH)
		pdf.CellFormat(w-2*cellPad, lineH, line, "", 0, align, false, 0, "")
	}
}

func (d *pdfDoc) medicines(v *View) {
	d.sectionTitle("Medicines")
	pdf := d.pdf
	if v.CourseNote != "" {
		d.font("", 10, colorMuted)
		pdf.SetX(d.left)
		pdf.CellFormat(d.width, 5, v.CourseNote, "", 1, "L", false, 0, "")
		pdf.Ln(1.4)
	}

	unit := d.width / 7
	cols := []column{
		{"Medicine", 2 * unit, "L"},
		{"Morning", unit, "C"},
		{"Afternoon", unit, "C"},
		{"Evening", unit, "C"},
		{"Night", unit, "C"},
		{"Qty", unit, "C"},
	}
	d.tableHeader(cols)

	for _, m := range v.Medicines {
		d.font("", 11, colorText)
		h, lines := d.rowHeight(m.Name, cols[0].width)
		if pdf.GetY()+h > d.pageH-pageMargin {
			pdf.AddPage()
			d.tableHeader(cols)
			d.font("", 11, colorText)
		}
		y := pdf.GetY()
		x := d.left
		d.wrappedCell(x, y, cols[0].width, h, lines, "L")
		x += cols[0].width

		for _, on := range []bool{m.Morning, m.Afternoon, m.Evening, m.Night} {
			pdf.Rect(x, y, unit, h, "D")
			if on {
				pdf.ImageOptions(CheckmarkAsset, x+(unit-checkmarkSize)/2, y+(h-checkmarkSize)/2,
					checkmarkSize, checkmarkSize, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
			}
			x += unit
		}

		d.font("B", 12, colorCell)
		d.wrappedCell(x, y, unit, h, []string{m.Quantity}, "C")
		pdf.SetXY(d.left, y+h)
	}
	pdf.Ln(sectionGap)
}

func (d *pdfDoc) tests(rows []TestRow) {
	d.sectionTitle("Test Reports")
	pdf := d.pdf
	unit := d.width / 5
	cols := []column{
		{"Test", 2 * unit, "L"},
		{"Result", 2 * unit, "L"},
		{"Date", unit, "L"},
	}
	d.tableHeader(cols)

	for _, t := range rows {
		d.font("", 11, colorText)
		hName, nameLines := d.rowHeight(t.Name, cols[0].width)
		hResult, resultLines := d.rowHeight(t.Result, cols[1].width)
		h := hName
		if hResult > h {
			h = hResult
		}
		if pdf.GetY()+h > d.pageH-pageMargin {
			pdf.AddPage()
			d.tableHeader(cols)
			d.font("", 11, colorText)
		}
		y := pdf.GetY()
		x := d.left
		d.wrappedCell(x, y, cols[0].width, h, nameLines, "L")
		x += cols[0].width
		d.wrappedCell(x, y, cols[1].width, h, resultLines, "L")
		x += cols[1].width
		d.wrappedCell(x, y, cols[2].width, h, []string{t.Date}, "L")
		pdf.SetXY(d.left, y+h)
	}
	pdf.Ln(sectionGap)
}

func (d *pdfDoc) notes(v *View) {
	d.sectionTitle("Doctor's Notes")
	pdf := d.pdf
	d.font("", 11, colorText)
	for _, line := range v.Notes {
		for _, wrapped := range d.wrap(line, d.width) {
			d.ensureSpace(lineH)
			pdf.SetX(d.left)
			pdf.CellFormat(d.width, lineH, wrapped, "", 1, "L", false, 0, "")
		}
		if line == "" {
			pdf.Ln(lineH)
		}
	}
	pdf.Ln(sectionGap)
}

func (d *pdfDoc) nextVisit(date string) {
	d.ensureSpace(2.8 + 6)
	pdf := d.pdf
	y := pdf.GetY()
	pdf.SetDrawColor(colorRule.r, colorRule.g, colorRule.b)
	pdf.SetLineWidth(0.35)
	pdf.Line(d.left, y, d.left+d.width, y)
	pdf.SetXY(d.left, y+2.8)
	d.font("", 11, colorMuted)
	pdf.CellFormat(d.width, 6, "Next Visit: "+date, "", 1, "L", false, 0, "")
}

// signature pins the practitioner block to the bottom-right corner of the
// last page, adding a page when the body already reaches that area.
func (d *pdfDoc) signature(lh Letterhead) {
	pdf := d.pdf
	top := d.pageH - pageMargin - signatureBlock
	if pdf.GetY()+sectionGap > top {
		pdf.AddPage()
	}
	x := d.left + d.width - signatureW
	pdf.ImageOptions(SignatureAsset, x, top, signatureW, signatureH, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	pdf.SetXY(x, top+signatureH+2)
	d.font("B", 11, colorText)
	pdf.CellFormat(signatureW, 5, lh.PractitionerName, "", 2, "C", false, 0, "")
	if lh.PractitionerCredential != "" {
		d.font("", 10, colorMuted)
		pdf.CellFormat(signatureW, 5, lh.PractitionerCredential, "", 2, "C", false, 0, "")
	}
}
