package project

import "strings"

// Escaper neutralizes the two control characters that would break a
// line oriented consumer. The scratch buffer is reused across calls,
// callers must copy the result before the next Escape if they retain it
type Escaper struct {
	buf []byte
}

// Escape renders tab as `\t` and newline as `\n`, copying every other
// byte unchanged. Clean strings are returned as is without allocating
func (e *Escaper) Escape(s string) string {
	i := strings.IndexAny(s, "\t\n")
	if i < 0 {
		return s
	}
	e.buf = e.buf[:0]
	e.buf = append(e.buf, s[:i]...)
	for ; i < len(s); i++ {
		switch s[i] {
		case '\t':
			e.buf = append(e.buf, '\\', 't')
		case '\n':
			e.buf = append(e.buf, '\\', 'n')
		default:
			e.buf = append(e.buf, s[i])
		}
	}
	return string(e.buf)
}

// Unescape reverses Escape. A trailing lone backslash or an unknown
// escape is copied through literally. Backslash itself is not escaped,
// matching the wire format consumers already expect
func Unescape(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 't':
				b.WriteByte('\t')
				i++
				continue
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
