package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
)

func TestExtractPlainText(t *testing.T) {
	got, err := Extract([]byte("hello reading world"), "notes.TXT")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "hello reading world" {
		t.Fatalf("Extract = %q", got)
	}
}

func TestExtractInvalidUTF8(t *testing.T) {
	_, err := Extract([]byte{0xff, 0xfe, 0x00}, "broken.txt")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestExtractUnsupportedExtension(t *testing.T) {
	_, err := Extract([]byte("x"), "image.png")
	var unsupported *UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("err = %v, want UnsupportedFormatError", err)
	}
	if unsupported.Ext != ".png" {
		t.Fatalf("Ext = %q, want .png", unsupported.Ext)
	}
}

func TestExtractCorruptPDF(t *testing.T) {
	_, err := Extract([]byte("%PDF-1.4 garbage"), "bad.pdf")
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
}

func TestExtractDocx(t *testing.T) {
	doc := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second</w:t></w:r><w:r><w:t> paragraph</w:t></w:r></w:p>
  </w:body>
</w:document>`
	got, err := Extract(buildDocx(t, doc), "doc.docx")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "First paragraph Second paragraph" {
		t.Fatalf("Extract = %q", got)
	}
}

func TestExtractDocxMalformedArchive(t *testing.T) {
	_, err := Extract([]byte("not a zip"), "doc.docx")
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
}

func TestExtractDocxMissingBody(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/other.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := f.Write([]byte("<x/>")); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	_, err = Extract(buf.Bytes(), "doc.docx")
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
}

func TestExtractDocxMalformedXML(t *testing.T) {
	_, err := Extract(buildDocx(t, "<w:document><w:p>unclosed"), "doc.docx")
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
}

func TestFormat(t *testing.T) {
	for _, tc := range []struct {
		filename string
		want     string
		ok       bool
	}{
		{"a.txt", "txt", true},
		{"b.PDF", "pdf", true},
		{"c.docx", "docx", true},
		{"d.epub", "", false},
		{"noext", "", false},
	} {
		got, ok := Format(tc.filename)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("Format(%q) = %q, %v; want %q, %v", tc.filename, got, ok, tc.want, tc.ok)
		}
	}
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := f.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}
