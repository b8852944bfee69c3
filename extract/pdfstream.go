package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfStreamBackend is the fallback PDF extractor. It decodes each page's
// consolidated content stream with pdfcpu and scans the raw text-showing
// operators (Tj, ', ", TJ). Lower fidelity than the structured reader --
// no font decoding, so text using CID-keyed fonts comes out garbled --
// but it survives files the structured reader rejects outright.
type pdfStreamBackend struct{}

func (b *pdfStreamBackend) Name() string { return "pdf-stream" }

func (b *pdfStreamBackend) Supports(contentType, url string, data []byte) bool {
	return isPDF(contentType, url, data)
}

func (b *pdfStreamBackend) Extract(ctx context.Context, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()

	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return "", fmt.Errorf("reading PDF: %w", err)
	}

	var out strings.Builder
	for page := 1; page <= pdfCtx.PageCount; page++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		r, err := pdfcpu.ExtractPageContent(pdfCtx, page)
		if err != nil || r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			continue
		}

		pageText := strings.TrimSpace(textFromContent(content))
		if pageText != "" {
			out.WriteString(pageText)
			out.WriteString("\n\n")
		}
	}

	return strings.TrimSpace(out.String()), nil
}

// textFromContent scans a decoded page content stream for text-showing
// operators. String operands are buffered and flushed when a Tj/'/"/TJ
// operator consumes them; any other operator discards the buffer, since
// strings also appear as operands elsewhere.
func textFromContent(content []byte) string {
	var out strings.Builder
	var pending []string

	flush := func(newline bool) {
		for _, s := range pending {
			out.WriteString(s)
		}
		pending = pending[:0]
		if newline {
			out.WriteByte('\n')
		} else if out.Len() > 0 {
			out.WriteByte(' ')
		}
	}

	i := 0
	for i < len(content) {
		c := content[i]
		switch {
		case c == '(':
			s, next := readLiteralString(content, i)
			pending = append(pending, s)
			i = next
		case c == '<' && i+1 < len(content) && content[i+1] != '<':
			s, next := readHexString(content, i)
			pending = append(pending, s)
			i = next
		case c == '[' || c == ']':
			// TJ arrays interleave strings with kerning numbers; the
			// numbers are skipped by the default case.
			i++
		case isRegular(c):
			start := i
			for i < len(content) && isRegular(content[i]) {
				i++
			}
			switch op := string(content[start:i]); op {
			case "Tj", "TJ":
				flush(false)
			case "'", "\"":
				flush(true)
			case "Td", "TD", "T*":
				// Line movement: treat buffered text as a finished line.
				flush(true)
			default:
				// Numbers are kerning offsets inside TJ arrays or operands
				// of positioning operators; they never consume strings.
				if !isNumeric(op) {
					pending = pending[:0]
				}
			}
		default:
			i++
		}
	}
	flush(false)

	return out.String()
}

// readLiteralString reads a PDF literal string starting at the '(' in
// content[i], handling escapes and nested parentheses. Returns the
// decoded string and the index just past the closing ')'.
func readLiteralString(content []byte, i int) (string, int) {
	var s strings.Builder
	depth := 0
	i++ // consume '('
	depth++

	for i < len(content) {
		c := content[i]
		switch c {
		case '\\':
			if i+1 >= len(content) {
				return s.String(), i + 1
			}
			i++
			switch e := content[i]; e {
			case 'n':
				s.WriteByte('\n')
			case 'r':
				s.WriteByte('\r')
			case 't':
				s.WriteByte('\t')
			case 'b', 'f':
				// backspace/formfeed: drop
			case '(', ')', '\\':
				s.WriteByte(e)
			default:
				if e >= '0' && e <= '7' {
					// Up to three octal digits.
					v := int(e - '0')
					for n := 0; n < 2 && i+1 < len(content) && content[i+1] >= '0' && content[i+1] <= '7'; n++ {
						i++
						v = v*8 + int(content[i]-'0')
					}
					if v > 0 && v < 128 {
						s.WriteByte(byte(v))
					}
				}
			}
			i++
		case '(':
			depth++
			s.WriteByte(c)
			i++
		case ')':
			depth--
			if depth == 0 {
				return s.String(), i + 1
			}
			s.WriteByte(c)
			i++
		default:
			s.WriteByte(c)
			i++
		}
	}
	return s.String(), i
}

// readHexString reads a PDF hex string starting at the '<' in content[i].
func readHexString(content []byte, i int) (string, int) {
	var hex []byte
	i++ // consume '<'
	for i < len(content) && content[i] != '>' {
		c := content[i]
		if isHexDigit(c) {
			hex = append(hex, c)
		}
		i++
	}
	if i < len(content) {
		i++ // consume '>'
	}
	if len(hex)%2 == 1 {
		hex = append(hex, '0')
	}

	var s strings.Builder
	for j := 0; j+1 < len(hex); j += 2 {
		b := hexVal(hex[j])<<4 | hexVal(hex[j+1])
		if b >= 32 && b < 127 {
			s.WriteByte(b)
		}
	}
	return s.String(), i
}

func isNumeric(op string) bool {
	if op == "" {
		return false
	}
	for i := 0; i < len(op); i++ {
		switch c := op[i]; {
		case c >= '0' && c <= '9', c == '+', c == '-', c == '.':
		default:
			return false
		}
	}
	return true
}

func isRegular(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0,
		'(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return false
	}
	return true
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
