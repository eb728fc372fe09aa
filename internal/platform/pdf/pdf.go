// Package pdf is a small flowing-document builder on top of fpdf. Text is
// UTF-8 and is translated to the cp1252 core fonts, which covers Spanish.
package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	fontFamily = "Helvetica"
	lineHeight = 5.0
)

// Options configures a new Document.
type Options struct {
	Title   string
	Creator string
	// FooterLines are printed at the bottom of every page above the page number.
	FooterLines []string
	// GeneratedAt is stamped in the footer and in the document metadata.
	GeneratedAt time.Time
}

// Document accumulates content and renders it with Bytes.
type Document struct {
	pdf      *fpdf.Fpdf
	tr       func(string) string
	sections int
}

// New starts a Letter-sized document with the title printed on the first page.
func New(opts Options) *Document {
	p := fpdf.New("P", "mm", "Letter", "")
	p.SetMargins(18, 14, 18)
	p.SetAutoPageBreak(true, 22)
	p.AliasNbPages("")
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}
	p.SetCreationDate(opts.GeneratedAt)
	p.SetTitle(opts.Title, true)
	if opts.Creator != "" {
		p.SetCreator(opts.Creator, true)
	}

	d := &Document{pdf: p, tr: p.UnicodeTranslatorFromDescriptor("")}

	footer := append([]string(nil), opts.FooterLines...)
	footer = append(footer, "Fecha de generación: "+opts.GeneratedAt.Format("02/01/2006 15:04:05"))
	p.SetFooterFunc(func() {
		p.SetY(-8 - float64(len(footer))*3.5)
		p.SetFont(fontFamily, "", 7)
		p.SetTextColor(110, 110, 110)
		for _, line := range footer {
			p.CellFormat(0, 3.5, d.tr(line), "", 1, "C", false, 0, "")
		}
		p.CellFormat(0, 3.5, fmt.Sprintf("Página %d/{nb}", p.PageNo()), "", 0, "R", false, 0, "")
	})

	p.AddPage()
	if opts.Title != "" {
		p.SetFont(fontFamily, "B", 16)
		p.SetTextColor(30, 64, 175)
		p.CellFormat(0, 10, d.tr(opts.Title), "", 1, "C", false, 0, "")
		p.Ln(3)
	}
	d.body()
	return d
}

func (d *Document) body() {
	d.pdf.SetFont(fontFamily, "", 10)
	d.pdf.SetTextColor(0, 0, 0)
}

// Field writes "label: value" on its own line. Empty values print "N/A".
func (d *Document) Field(label, value string) {
	if strings.TrimSpace(value) == "" {
		value = "N/A"
	}
	d.pdf.SetFont(fontFamily, "B", 10)
	label = d.tr(label + ": ")
	d.pdf.CellFormat(d.pdf.GetStringWidth(label)+1, lineHeight, label, "", 0, "L", false, 0, "")
	d.body()
	d.pdf.MultiCell(0, lineHeight, d.tr(value), "", "L", false)
}

// Section starts a numbered heading ("1. TITLE") and returns its number.
func (d *Document) Section(title string) int {
	d.sections++
	d.pdf.Ln(2)
	d.pdf.SetFont(fontFamily, "B", 12)
	d.pdf.SetTextColor(30, 64, 175)
	d.pdf.CellFormat(0, 7, d.tr(fmt.Sprintf("%d. %s", d.sections, strings.ToUpper(title))), "B", 1, "L", false, 0, "")
	d.pdf.Ln(1)
	d.body()
	return d.sections
}

// Subheading writes a bold line inside a section.
func (d *Document) Subheading(text string) {
	d.pdf.SetFont(fontFamily, "B", 10)
	d.pdf.MultiCell(0, lineHeight, d.tr(text), "", "L", false)
	d.body()
}

// Paragraph writes justified body text.
func (d *Document) Paragraph(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	d.body()
	d.pdf.MultiCell(0, lineHeight, d.tr(text), "", "J", false)
}

// Bullet writes an indented list item.
func (d *Document) Bullet(text string) {
	d.body()
	d.pdf.SetX(d.pdf.GetX() + 4)
	d.pdf.MultiCell(0, lineHeight, d.tr("• "+text), "", "L", false)
}

// Space adds vertical space in millimetres.
func (d *Document) Space(mm float64) {
	d.pdf.Ln(mm)
}

// Sections returns how many numbered sections were written.
func (d *Document) Sections() int {
	return d.sections
}

// Bytes renders the document.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
