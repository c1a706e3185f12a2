// Package cmdline tokenizes the daemon's control-protocol command lines
// (spec §4.7): quoted strings with backslash escapes and ';'-separated
// commands.
package cmdline

import "strings"

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// IsComment reports whether line, with leading whitespace stripped,
// begins with '#'. Only the `source FILE` path treats '#' as a comment
// marker (spec §4.7); lines read from the control socket are not.
func IsComment(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t\r\n"), "#")
}

// escapeMap is the backslash-escape table used inside quoted strings
// (spec §4.7): "\\,\t,\r,\n,\f,\v,\b,\",',0".
var escapeMap = map[byte]byte{
	'\\': '\\',
	't':  '\t',
	'r':  '\r',
	'n':  '\n',
	'f':  '\f',
	'v':  '\v',
	'b':  '\b',
	'"':  '"',
	'\'': '\'',
	'0':  0,
}

// ParseLine tokenizes one line into its ';'-separated commands, each an
// argument vector. A fully empty command (after stripping whitespace) is
// dropped rather than yielded as an empty vector.
func ParseLine(line string) ([][]string, error) {
	var commands [][]string
	var cur []string
	var tok strings.Builder
	haveTok := false

	flush := func() {
		if haveTok {
			cur = append(cur, tok.String())
			tok.Reset()
			haveTok = false
		}
	}
	endCommand := func() {
		flush()
		if len(cur) > 0 {
			commands = append(commands, cur)
		}
		cur = nil
	}

	i := 0
	n := len(line)
	for i < n {
		c := line[i]
		switch {
		case isSpace(c):
			flush()
			i++
		case c == ';':
			endCommand()
			i++
		case c == '"' || c == '\'':
			quote := c
			haveTok = true
			i++
			for i < n && line[i] != quote {
				if line[i] == '\\' && i+1 < n {
					esc := line[i+1]
					if mapped, ok := escapeMap[esc]; ok {
						tok.WriteByte(mapped)
					} else {
						tok.WriteByte('\\')
						tok.WriteByte(esc)
					}
					i += 2
					continue
				}
				tok.WriteByte(line[i])
				i++
			}
			if i < n {
				i++ // consume closing quote
			}
		case c == '\\' && i+1 < n:
			haveTok = true
			tok.WriteByte(line[i+1])
			i += 2
		default:
			haveTok = true
			tok.WriteByte(c)
			i++
		}
	}
	endCommand()
	return commands, nil
}
