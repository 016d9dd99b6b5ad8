// Package extract turns uploaded document bytes into a single flat text blob.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrDecode indicates a plain-text upload that is not valid UTF-8.
	ErrDecode = errors.New("invalid text encoding")
	// ErrExtraction indicates a corrupt, encrypted, or malformed document.
	ErrExtraction = errors.New("document extraction failed")
)

// UnsupportedFormatError reports an upload with an unrecognized extension.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format: %q", e.Ext)
}

// Extract dispatches on the claimed filename's extension and returns the
// document's concatenated text. It holds no reference to data after
// returning.
func Extract(data []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return extractText(data)
	case ".pdf":
		return extractPDF(data)
	case ".docx":
		return extractDocx(data)
	default:
		return "", &UnsupportedFormatError{Ext: ext}
	}
}

// Format returns the canonical format label for a filename, or false when
// the extension is not recognized.
func Format(filename string) (string, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return "txt", true
	case ".pdf":
		return "pdf", true
	case ".docx":
		return "docx", true
	default:
		return "", false
	}
}

func extractText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrDecode)
	}
	return string(data), nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %v", ErrExtraction, err)
	}
	var b strings.Builder
	totalPages := reader.NumPage()
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: pdf page %d: %v", ErrExtraction, i, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// extractDocx walks the word/document.xml entry inside the docx archive and
// space-joins paragraph texts in document order.
func extractDocx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open docx: %v", ErrExtraction, err)
	}
	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("%w: docx missing word/document.xml", ErrExtraction)
	}
	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("%w: read docx body: %v", ErrExtraction, err)
	}
	defer rc.Close()
	paragraphs, err := docxParagraphs(rc)
	if err != nil {
		return "", fmt.Errorf("%w: parse docx body: %v", ErrExtraction, err)
	}
	return strings.Join(paragraphs, " "), nil
}

func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var paragraphs []string
	var current strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
