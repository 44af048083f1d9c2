package runtime

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"
)

// foreachOptions are the flags of a /foreach command.
type foreachOptions struct {
	// Parallel is "no", "false" or "0" for sequential execution.
	Parallel string `mapstructure:"parallel"`
	// File restricts leaves to file-bearing nodes.
	File bool `mapstructure:"file"`
	// Parents is the ancestor depth of "@@parents".
	Parents int `mapstructure:"parents"`
}

func (o foreachOptions) sequential() bool {
	switch strings.ToLower(o.Parallel) {
	case "no", "false", "0", "off":
		return true
	}
	return false
}

const defaultParentsDepth = 3

// decodeForeachOptions decodes parsed "--flag" values, weakly typed.
func decodeForeachOptions(flags map[string]string) (foreachOptions, error) {
	opts := foreachOptions{Parents: defaultParentsDepth}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return opts, err
	}
	if err := dec.Decode(flags); err != nil {
		return opts, err
	}
	if opts.Parents < 0 {
		opts.Parents = 0
	}
	return opts, nil
}

// withoutFlags removes the named "--flag" and "--flag=value" tokens.
func withoutFlags(text string, names ...string) string {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	fields := strings.Fields(text)
	kept := fields[:0]
	for _, f := range fields {
		if strings.HasPrefix(f, "--") {
			name, _, _ := strings.Cut(strings.TrimPrefix(f, "--"), "=")
			if drop[name] {
				continue
			}
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// setFlag replaces any "--name" token with "--name=value".
func setFlag(text, name, value string) string {
	return withoutFlags(text, name) + " --" + name + "=" + value
}

// replaceBareMarker replaces "@@" tokens that do not start a named reference
// and are not part of a longer run of "@".
func replaceBareMarker(text, value string) string {
	var b strings.Builder
	for {
		i := strings.Index(text, "@@")
		if i < 0 {
			b.WriteString(text)
			return b.String()
		}
		prev, _ := utf8.DecodeLastRuneInString(text[:i])
		next, _ := utf8.DecodeRuneInString(text[i+2:])
		bare := (i == 0 || prev != '@') && next != '@' && !isNameRune(next)
		b.WriteString(text[:i])
		if bare {
			b.WriteString(value)
			text = text[i+2:]
			continue
		}
		// Skip the whole run of "@" and the name that follows.
		j := i
		for j < len(text) && text[j] == '@' {
			j++
		}
		b.WriteString(text[i:j])
		text = text[j:]
	}
}

// replaceMarker replaces whole-word occurrences of marker, one not preceded
// by "@" nor followed by a name rune. It reports whether any was replaced.
func replaceMarker(text, marker, value string) (string, bool) {
	var b strings.Builder
	found := false
	for {
		i := strings.Index(text, marker)
		if i < 0 {
			b.WriteString(text)
			return b.String(), found
		}
		prev, _ := utf8.DecodeLastRuneInString(text[:i])
		next, _ := utf8.DecodeRuneInString(text[i+len(marker):])
		b.WriteString(text[:i])
		if (i == 0 || prev != '@') && !isNameRune(next) {
			b.WriteString(value)
			found = true
		} else {
			b.WriteString(marker)
		}
		text = text[i+len(marker):]
	}
}

func isNameRune(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-')
}
