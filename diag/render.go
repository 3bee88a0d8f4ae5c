package diag

import (
	"fmt"
	"strings"

	"go.jacobcolvin.com/devicedesc/ast"
)

// LineCol is a 1-based line and column position, resolved from a byte
// offset against a particular source text.
type LineCol struct {
	Line   int
	Column int
}

// locate resolves a byte offset into a 1-based line/column against src.
func locate(src []byte, offset int) LineCol {
	if offset < 0 {
		offset = 0
	}

	if offset > len(src) {
		offset = len(src)
	}

	line, col := 1, 1

	for i := 0; i < offset; i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}

	return LineCol{Line: line, Column: col}
}

// RenderCompact renders a diagnostic in a mechanical "line:column:
// severity[code]: message" form, suitable for editors to parse.
func RenderCompact(src []byte, d Diagnostic) string {
	pos := locate(src, d.Primary.Offset)

	return fmt.Sprintf("%d:%d: %s[%s]: %s", pos.Line, pos.Column, d.Severity, d.Code, d.Message)
}

// RenderSnippet renders a diagnostic as a human-readable snippet: the
// compact header, the offending source line, and an underline beneath the
// primary span, followed by one line per secondary span.
func RenderSnippet(src []byte, d Diagnostic) string {
	var b strings.Builder

	b.WriteString(RenderCompact(src, d))
	b.WriteByte('\n')

	writeSnippetLine(&b, src, d.Primary, "")

	for _, sec := range d.Secondary {
		pos := locate(src, sec.Span.Offset)
		fmt.Fprintf(&b, "  note: %s (%d:%d)\n", sec.Label, pos.Line, pos.Column)
		writeSnippetLine(&b, src, sec.Span, "  ")
	}

	return b.String()
}

// writeSnippetLine writes the source line containing span, with a caret
// underline beneath the span's extent on that line.
func writeSnippetLine(b *strings.Builder, src []byte, span ast.Span, indent string) {
	start := span.Offset
	length := span.Length

	lineStart := start
	for lineStart > 0 && src[lineStart-1] != '\n' {
		lineStart--
	}

	lineEnd := start
	for lineEnd < len(src) && src[lineEnd] != '\n' {
		lineEnd++
	}

	line := string(src[lineStart:lineEnd])
	col := start - lineStart

	fmt.Fprintf(b, "%s%s\n", indent, line)

	underline := make([]byte, col)
	for i := range underline {
		underline[i] = ' '
	}

	caretLen := length
	if caretLen < 1 {
		caretLen = 1
	}

	if col+caretLen > len(line) {
		caretLen = max(len(line)-col, 1)
	}

	carets := make([]byte, caretLen)
	for i := range carets {
		carets[i] = '^'
	}

	fmt.Fprintf(b, "%s%s%s\n", indent, underline, carets)
}
