package e2e

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SupportedFileExtensions lists the file types the e2e tests generate. PDF is covered by
// the extract package tests; generating a PDF with extractable text is out of reach here.
var SupportedFileExtensions = []string{".txt", ".md", ".rst", ".docx", ".xlsx"}

// WriteMinimalFile returns the bytes of a minimal file of type ext whose extracted text
// yields the given paragraphs, one paragraph each.
func WriteMinimalFile(ext string, paragraphs []string) ([]byte, error) {
	switch ext {
	case ".txt", ".md", ".rst":
		return []byte(strings.Join(paragraphs, "\n\n") + "\n"), nil
	case ".docx":
		return minimalDocx(paragraphs)
	case ".xlsx":
		return minimalXlsx(paragraphs)
	default:
		return nil, fmt.Errorf("no fixture writer for %s", ext)
	}
}

func minimalDocx(paragraphs []string) ([]byte, error) {
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		body.WriteString(html.EscapeString(p))
		body.WriteString(`</w:t></w:r></w:p>`)
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("word/document.xml")
	if err != nil {
		return nil, err
	}
	doc := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`
	if _, err := fw.Write([]byte(doc)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// minimalXlsx puts each paragraph on its own sheet; rows of one sheet extract as a single paragraph.
func minimalXlsx(paragraphs []string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	for i, p := range paragraphs {
		sheet := "Sheet1"
		if i > 0 {
			sheet = fmt.Sprintf("Sheet%d", i+1)
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, err
			}
		}
		if err := f.SetCellValue(sheet, "A1", p); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
