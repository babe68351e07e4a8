package docsource

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// documentPart is the main body part inside a .docx package.
const documentPart = "word/document.xml"

// ErrNoDocumentBody is returned when a .docx archive has no word/document.xml.
var ErrNoDocumentBody = errors.New("missing " + documentPart)

func loadDOCX(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return readDOCXAt(f, fi.Size())
}

// readDOCXAt parses a .docx package of the given size.
func readDOCXAt(r io.ReaderAt, size int64) ([]Line, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	return readDOCX(zr)
}

func readDOCX(zr *zip.Reader) ([]Line, error) {
	for _, f := range zr.File {
		if f.Name != documentPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", documentPart, err)
		}
		defer rc.Close()
		return parseDocumentXML(rc)
	}
	return nil, ErrNoDocumentBody
}

// parseDocumentXML streams WordprocessingML and emits one or more lines per
// <w:p>. Only local element names are inspected so the w: prefix binding
// does not matter.
func parseDocumentXML(r io.Reader) ([]Line, error) {
	dec := xml.NewDecoder(r)

	var (
		lines   []Line
		para    strings.Builder
		inPara  bool
		inText  bool
		heading bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", documentPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inPara = true
				heading = false
				para.Reset()
			case "pStyle":
				if inPara && isHeadingStyle(attr(t, "val")) {
					heading = true
				}
			case "t":
				inText = true
			case "tab":
				if inPara {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if inPara {
					para.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inPara {
					lines = append(lines, splitLines(para.String(), heading)...)
				}
				inPara = false
			}
		case xml.CharData:
			if inPara && inText {
				para.Write(t)
			}
		}
	}

	return lines, nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// isHeadingStyle reports whether a paragraph style id marks a heading.
// Word uses ids like "Heading1"; some generators emit "heading 1".
func isHeadingStyle(id string) bool {
	s := strings.ToLower(strings.ReplaceAll(id, " ", ""))
	if s == "title" {
		return true
	}
	return strings.HasPrefix(s, "heading")
}
