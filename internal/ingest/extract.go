package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/otiai10/gosseract/v2"
)

// unsupportedType is returned for file types with no extractor. By
// contract extraction never fails past this boundary: every extractor
// converts its own errors into a human-readable string.
const unsupportedType = "Unsupported file type."

// ExtractText dispatches on the declared MIME type (with the extension as
// a fallback) to the matching extractor and returns plain text.
func ExtractText(path, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case strings.Contains(mimeType, "image"):
		return extractImage(path)
	case strings.Contains(mimeType, "pdf") || ext == ".pdf":
		return extractPDF(path)
	case strings.Contains(mimeType, "wordprocessingml") || ext == ".docx":
		return extractDocx(path)
	case strings.HasPrefix(mimeType, "text/") || ext == ".txt" || ext == ".md" || ext == ".csv" || ext == ".log":
		return extractPlain(path)
	default:
		return unsupportedType
	}
}

// extractImage runs OCR over the image via tesseract.
func extractImage(path string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = fmt.Sprintf("[Image OCR Error] %v", r)
		}
	}()

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImage(path); err != nil {
		return "[Image OCR Error] " + err.Error()
	}
	text, err := client.Text()
	if err != nil {
		return "[Image OCR Error] " + err.Error()
	}
	if strings.TrimSpace(text) == "" {
		return "No text detected in the image."
	}
	return text
}

// The pdf parser panics on malformed object graphs instead of returning
// errors, so the never-raises contract needs a recover here.
func extractPDF(path string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = fmt.Sprintf("[PDF Error] %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "[PDF Error] " + err.Error()
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "[PDF Error] " + err.Error()
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "[PDF Error] " + err.Error()
	}
	if strings.TrimSpace(buf.String()) == "" {
		return "The PDF contains no extractable text."
	}
	return buf.String()
}

// extractDocx pulls the text runs out of word/document.xml; a docx is a
// zip archive of XML parts.
func extractDocx(path string) string {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "[DOCX Error] " + err.Error()
	}
	defer archive.Close()

	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "[DOCX Error] " + err.Error()
		}
		text, err := docxText(rc)
		rc.Close()
		if err != nil {
			return "[DOCX Error] " + err.Error()
		}
		if strings.TrimSpace(text) == "" {
			return "The document contains no extractable text."
		}
		return text
	}
	return "[DOCX Error] document.xml not found in archive"
}

// docxText collects the character data of w:t elements, with a line break
// per w:p paragraph.
func docxText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var (
		text   strings.Builder
		inText bool
	)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
			if t.Name.Local == "p" {
				text.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				text.Write(t)
			}
		}
	}
	return text.String(), nil
}

func extractPlain(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "[Text Error] " + err.Error()
	}
	if strings.TrimSpace(string(data)) == "" {
		return "The file is empty."
	}
	return string(data)
}
