package resolve

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/delta5-hq/d5-sub001/pkg/domain"
)

const namePattern = `[\p{L}\p{N}_-]+`

var (
	// tokenRe matches both grammars in one pass so substituted text is never rescanned.
	tokenRe = regexp.MustCompile(`(@@?|##?_)(` + namePattern + `)(\*)?(?::(first|last))?`)

	anchorRe  = regexp.MustCompile(`^\s*@(` + namePattern + `)`)
	hashtagRe = regexp.MustCompile(`(?:^|[^#\p{L}\p{N}_])#_(` + namePattern + `)`)
)

type token struct {
	sigil    string
	name     string
	wildcard bool
	selector string
}

func (t token) substituted() bool {
	return t.sigil == "@@" || t.sigil == "##_"
}

// substitute replaces every reference token in text. Text without tokens is
// returned unchanged.
func (r *Resolver) substitute(text string, self *domain.Node, v visited) string {
	matches := tokenRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	out := make([]byte, 0, len(text))
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if !boundaryBefore(text, start) {
			continue
		}
		tok := token{
			sigil:    text[m[2]:m[3]],
			name:     text[m[4]:m[5]],
			wildcard: m[6] >= 0,
		}
		if m[8] >= 0 {
			tok.selector = text[m[8]:m[9]]
		}
		if !strings.HasPrefix(tok.sigil, "#") && (tok.wildcard || tok.selector != "") {
			// Named references take neither modifier; keep them as text.
			end = m[5]
		}

		out = append(out, text[last:start]...)
		repl := ""
		if tok.substituted() {
			repl = r.lookup(tok, self, v)
		}
		if repl == "" {
			out, end = collapse(out, text, end)
		}
		out = append(out, repl...)
		last = end
	}
	out = append(out, text[last:]...)
	return string(out)
}

// boundaryBefore reports whether a token may start at pos: the preceding rune
// must not be part of a word or another sigil.
func boundaryBefore(text string, pos int) bool {
	if pos == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(text[:pos])
	if prev == '@' || prev == '#' || prev == '_' {
		return false
	}
	return !unicode.IsLetter(prev) && !unicode.IsDigit(prev)
}

// collapse normalizes the whitespace around a removed token, one character per side.
func collapse(out []byte, text string, end int) ([]byte, int) {
	next := text[end:]
	prevSpace := len(out) > 0 && isBlank(out[len(out)-1])
	nextSpace := len(next) > 0 && isBlank(next[0])
	atStart := len(out) == 0 || out[len(out)-1] == '\n'
	atEnd := len(next) == 0 || next[0] == '\n' || next[0] == '\r'

	switch {
	case prevSpace && nextSpace:
		end++
	case atStart && nextSpace:
		end++
	case atEnd && prevSpace:
		out = out[:len(out)-1]
	}
	return out, end
}

func isBlank(b byte) bool {
	return b == ' ' || b == '\t'
}

// anchorOf returns the named anchor defined by a title, if any.
func anchorOf(title string) (string, bool) {
	m := anchorRe.FindStringSubmatch(title)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// hashtagsOf returns every hash name a title produces.
func hashtagsOf(title string) []string {
	var names []string
	for _, m := range hashtagRe.FindAllStringSubmatch(title, -1) {
		names = append(names, m[1])
	}
	return names
}

func producerText(n *domain.Node) string {
	if n.Title != "" {
		return n.Title
	}
	return n.Command
}
