package expr

import "strings"

// normalize rewrites JavaScript-flavoured operators and quoting into HCL.
// Text inside double-quoted strings is left untouched.
func normalize(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '"':
			j := i + 1
			for j < len(src) && src[j] != '"' {
				if src[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(src) {
				j = len(src) - 1
			}
			b.WriteString(src[i : j+1])
			i = j
		case c == '\'':
			i = writeSingleQuoted(&b, src, i)
		case strings.HasPrefix(src[i:], "==="):
			b.WriteString("==")
			i += 2
		case strings.HasPrefix(src[i:], "!=="):
			b.WriteString("!=")
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// writeSingleQuoted converts the '...' literal starting at src[start] into a
// double-quoted HCL string and returns the index of its closing quote.
func writeSingleQuoted(b *strings.Builder, src string, start int) int {
	b.WriteByte('"')
	i := start + 1
	for ; i < len(src) && src[i] != '\''; i++ {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src):
			i++
			if src[i] == '\'' {
				b.WriteByte('\'')
				continue
			}
			b.WriteByte('\\')
			b.WriteByte(src[i])
		case c == '"':
			b.WriteString(`\"`)
		case (c == '$' || c == '%') && i+1 < len(src) && src[i+1] == '{':
			// HCL would treat ${ and %{ as template sequences.
			b.WriteByte(c)
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return i
}
