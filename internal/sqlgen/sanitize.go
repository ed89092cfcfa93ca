package sqlgen

import "strings"

// Sanitize masks string and numeric literals in a SQL statement with '?'
// before the text reaches any log or audit sink. Rendered statements carry
// literals as bind parameters already, so this is only a second line of
// defense, but it also covers raw model output quoted in rejection feedback.
func Sanitize(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))

	i := 0
	for i < len(sql) {
		c := sql[i]

		// String literal: skip to the closing quote, honoring '' escapes.
		if c == '\'' {
			j := i + 1
			for j < len(sql) {
				if sql[j] == '\'' {
					if j+1 < len(sql) && sql[j+1] == '\'' {
						j += 2
						continue
					}
					j++
					break
				}
				j++
			}
			b.WriteString("'?'")
			i = j
			continue
		}

		// Numeric literal, but not a digit inside an identifier or a $n
		// placeholder.
		if c >= '0' && c <= '9' && !identLikePrefix(sql, i) {
			j := i
			for j < len(sql) && (sql[j] >= '0' && sql[j] <= '9' || sql[j] == '.') {
				j++
			}
			b.WriteByte('?')
			i = j
			continue
		}

		b.WriteByte(c)
		i++
	}
	return b.String()
}

// identLikePrefix reports whether the character before position i makes the
// digit part of an identifier ("Address2") or a placeholder ("$1").
func identLikePrefix(sql string, i int) bool {
	if i == 0 {
		return false
	}
	p := sql[i-1]
	return p == '$' || p == '_' ||
		(p >= 'a' && p <= 'z') || (p >= 'A' && p <= 'Z') || (p >= '0' && p <= '9')
}
