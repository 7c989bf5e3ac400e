// Package extract turns uploaded screenplay files into plain text.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
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
	// ErrEmpty is returned when a file yields no readable text (e.g. a scanned PDF).
	ErrEmpty = errors.New("no text could be extracted")
	// ErrUnsupported is returned for file types the extractor does not read.
	ErrUnsupported = errors.New("unsupported file type")
)

// Extractor adapts ExtractText to an interface for callers that inject it.
type Extractor struct{}

// ExtractText implements the interface form of the package function.
func (Extractor) ExtractText(ctx context.Context, data []byte, fileName string) (string, error) {
	return ExtractText(ctx, data, fileName)
}

// ExtractText reads a screenplay file by extension: .pdf through ledongthuc/pdf,
// .docx and Final Draft .fdx through their XML, and .txt / .fountain as UTF-8 text.
func ExtractText(ctx context.Context, data []byte, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".pdf":
		text, err = extractPDF(data)
	case ".docx":
		text, err = extractDOCX(data)
	case ".fdx":
		text = stripXML(string(data), "Paragraph")
	case ".txt", ".fountain", "":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("extract %s: text is not valid UTF-8", fileName)
		}
		text = string(data)
	default:
		return "", fmt.Errorf("extract %s: %w: %s", fileName, ErrUnsupported, ext)
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", fileName, err)
	}
	text = normalize(text)
	if text == "" {
		return "", fmt.Errorf("extract %s: %w", fileName, ErrEmpty)
	}
	return text, nil
}

func extractPDF(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty pdf data")
	}
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		raw, err := io.ReadAll(rc)
		if err != nil {
			return "", err
		}
		return stripXML(string(raw), "p", "br"), nil
	}
	return "", errors.New("document.xml file not found")
}

// stripXML keeps character data and starts a new line after each breaking element.
func stripXML(raw string, breakOn ...string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.WriteString(string(t))
		case xml.EndElement:
			for _, name := range breakOn {
				if t.Name.Local == name && buf.Len() > 0 {
					buf.WriteString("\n")
					break
				}
			}
		}
	}
	return buf.String()
}

// normalize unifies line endings, trims trailing spaces and collapses runs of
// blank lines to one.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\x00", "")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			blank++
			if blank > 1 {
				continue
			}
			line = ""
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
