package cast

import (
	"strings"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operr"
)

// DefaultDatePattern is the format assumed when a cast to date names no
// explicit pattern.
const DefaultDatePattern = "dd-MM-yyyy"

// PatternLayout converts a SimpleDateFormat-style pattern to a Go time
// layout. Only the token classes date and datetime casts use are covered;
// an unsupported pattern letter is a parameter error.
func PatternLayout(pattern string) (string, error) {
	var b strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); {
		r := runes[i]

		if r == '\'' {
			// Quoted literal text; '' is a literal quote.
			if i+1 < len(runes) && runes[i+1] == '\'' {
				b.WriteByte('\'')
				i += 2
				continue
			}
			j := i + 1
			for j < len(runes) && runes[j] != '\'' {
				b.WriteRune(runes[j])
				j++
			}
			if j >= len(runes) {
				return "", operr.Newf(operr.InvalidParameterValue,
					"unterminated quote in date pattern %q", pattern)
			}
			i = j + 1
			continue
		}

		if !isPatternLetter(r) {
			// A dot introducing a fraction run attaches to the seconds
			// field, which is how Go layouts express milliseconds.
			if r == '.' && i+1 < len(runes) && runes[i+1] == 'S' {
				n := runLen(runes, i+1)
				b.WriteString("." + strings.Repeat("0", n))
				i += 1 + n
				continue
			}
			b.WriteRune(r)
			i++
			continue
		}

		n := runLen(runes, i)
		frag, err := layoutFor(r, n, pattern)
		if err != nil {
			return "", err
		}
		b.WriteString(frag)
		i += n
	}
	return b.String(), nil
}

func isPatternLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// runLen counts how many times runes[i] repeats starting at i.
func runLen(runes []rune, i int) int {
	n := 1
	for i+n < len(runes) && runes[i+n] == runes[i] {
		n++
	}
	return n
}

func layoutFor(r rune, n int, pattern string) (string, error) {
	switch r {
	case 'y', 'Y':
		if n == 2 {
			return "06", nil
		}
		return "2006", nil
	case 'M':
		switch {
		case n >= 4:
			return "January", nil
		case n == 3:
			return "Jan", nil
		case n == 2:
			return "01", nil
		default:
			return "1", nil
		}
	case 'd':
		if n >= 2 {
			return "02", nil
		}
		return "2", nil
	case 'E':
		if n >= 4 {
			return "Monday", nil
		}
		return "Mon", nil
	case 'H':
		return "15", nil
	case 'h':
		if n >= 2 {
			return "03", nil
		}
		return "3", nil
	case 'm':
		if n >= 2 {
			return "04", nil
		}
		return "4", nil
	case 's':
		if n >= 2 {
			return "05", nil
		}
		return "5", nil
	case 'a':
		return "PM", nil
	case 'z':
		return "MST", nil
	case 'Z':
		return "-0700", nil
	case 'X':
		switch n {
		case 1:
			return "Z07", nil
		case 2:
			return "Z0700", nil
		default:
			return "Z07:00", nil
		}
	}
	return "", operr.Newf(operr.InvalidParameterValue,
		"unsupported letter %q in date pattern %q", string(r), pattern)
}
