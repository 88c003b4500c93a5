package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// RenderPDF converts digest markdown into a PDF document
func RenderPDF(markdown, title string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(title, true)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 10)

	md := goldmark.New(goldmark.WithExtensions(extension.Strikethrough))
	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	r := &pdfRenderer{pdf: pdf, source: source}
	if err := ast.Walk(doc, r.walk); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	bold      bool
	italic    bool
	listLevel int
}

func (r *pdfRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont("Arial", style, 10)
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.pdf.Ln(5)
			size := 15.0 - float64(node.Level)
			if size < 10 {
				size = 10
			}
			r.pdf.SetFont("Arial", "B", size)
		} else {
			r.pdf.Ln(7)
			r.updateFont()
		}
	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(6)
		}
	case *ast.Text:
		if entering {
			r.pdf.Write(5, string(node.Text(r.source)))
			if node.SoftLineBreak() || node.HardLineBreak() {
				r.pdf.Write(5, " ")
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.updateFont()
	case *ast.List:
		if entering {
			r.listLevel++
		} else {
			r.listLevel--
			if r.listLevel == 0 {
				r.pdf.Ln(2)
			}
		}
	case *ast.ListItem:
		if entering {
			r.pdf.Ln(5)
			r.pdf.SetX(15 + float64(r.listLevel)*5)
			r.pdf.Write(5, "- ")
		}
	case *ast.ThematicBreak:
		if entering {
			r.pdf.Ln(3)
			r.pdf.Line(15, r.pdf.GetY(), 195, r.pdf.GetY())
			r.pdf.Ln(3)
		}
	}
	return ast.WalkContinue, nil
}
