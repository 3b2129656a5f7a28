package extract

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"legal-analyzer/internal/shared/storage/spool"
)

var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrExtractionFailed     = errors.New("text extraction failed")
)

const utf8BOM = "\ufeff"

// Extractor turns uploaded blobs into plain text.
// Libraries used: github.com/ledongthuc/pdf (PDF) and github.com/nguyenthenguyen/docx (DOCX).
type Extractor struct {
	spool *spool.Spool
}

// New returns an Extractor that stages blobs in sp.
func New(sp *spool.Spool) *Extractor {
	return &Extractor{spool: sp}
}

// Extract resolves the media type and returns the text of data. The staged
// spool file is removed before Extract returns.
func (e *Extractor) Extract(ctx context.Context, data []byte, mediaType, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	resolved, err := ResolveMediaType(mediaType, fileName, data)
	if err != nil {
		return "", err
	}

	file, err := e.spool.Acquire(ctx, fileName, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	defer file.Release()

	var text string
	switch resolved {
	case MimePDF:
		text, err = extractPDF(file.Path)
	case MimeDOCX:
		text, err = extractDOCX(file.Path)
	case MimeText:
		text, err = extractPlain(file.Path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMediaType, resolved)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrExtractionFailed, resolved, err)
	}
	return text, nil
}

func extractPDF(path string) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("pdf parser panic: %v", rec)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func extractDOCX(path string) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("docx reader panic: %v", rec)
		}
	}()

	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	raw := r.Editable().GetContent()
	if strings.TrimSpace(raw) == "" {
		return "", errors.New("document.xml is empty")
	}
	return stripDocxXML(raw)
}

func extractPlain(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", errors.New("text is not valid UTF-8")
	}
	return strings.TrimPrefix(string(raw), utf8BOM), nil
}

// stripDocxXML keeps the text runs of WordprocessingML, turning paragraph,
// break and tab elements into whitespace.
func stripDocxXML(raw string) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	inText := 0
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText++
			case "tab":
				buf.WriteString("\t")
			case "br", "cr":
				buf.WriteString("\n")
			}
		case xml.CharData:
			if inText > 0 {
				buf.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				if inText > 0 {
					inText--
				}
			case "p":
				if buf.Len() > 0 {
					buf.WriteString("\n")
				}
			}
		}
	}
	return strings.TrimSpace(buf.String()), nil
}
