package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// QueryType names a command implementation.
type QueryType string

const (
	QueryChat       QueryType = "chat"
	QueryClaude     QueryType = "claude"
	QueryPerplexity QueryType = "perplexity"
	QueryQwen       QueryType = "qwen"
	QueryDeepseek   QueryType = "deepseek"
	QueryYandex     QueryType = "yandex"
	QueryCustom     QueryType = "custom"
	QueryWeb        QueryType = "web"
	QueryScholar    QueryType = "scholar"
	QueryTranslate  QueryType = "translate"
	QueryRefine     QueryType = "refine"
	QueryOutline    QueryType = "outline"
	QuerySummarize  QueryType = "summarize"
	QueryMemorize   QueryType = "memorize"
	QueryRemember   QueryType = "remember"
	QueryDownloads  QueryType = "downloads"
	QueryCompletion QueryType = "completion"
	QueryForeach    QueryType = "foreach"
	QuerySteps      QueryType = "steps"
	QuerySwitch     QueryType = "switch"
)

// CaseMarker prefixes the option children of a /switch node.
const CaseMarker = "/case"

// SummarizeFlag turns /outline into a post-process summarizer.
const SummarizeFlag = "--summarize"

// commandNames maps the slash token to its query type.
var commandNames = map[string]QueryType{
	"chatgpt":    QueryChat,
	"claude":     QueryClaude,
	"perplexity": QueryPerplexity,
	"qwen":       QueryQwen,
	"deepseek":   QueryDeepseek,
	"yandexgpt":  QueryYandex,
	"custom":     QueryCustom,
	"web":        QueryWeb,
	"scholar":    QueryScholar,
	"translate":  QueryTranslate,
	"refine":     QueryRefine,
	"outline":    QueryOutline,
	"summarize":  QuerySummarize,
	"memorize":   QueryMemorize,
	"remember":   QueryRemember,
	"downloads":  QueryDownloads,
	"completion": QueryCompletion,
	"foreach":    QueryForeach,
	"steps":      QuerySteps,
	"switch":     QuerySwitch,
}

var (
	commandRe = regexp.MustCompile(`^\s*(?:#(-?\d+)\s+)?/([A-Za-z]+)\b`)
	orderRe   = regexp.MustCompile(`^\s*#(-?\d+)\s+`)
	flagRe    = regexp.MustCompile(`(?:^|\s)--([A-Za-z][\w-]*)(?:=(\S*))?`)
)

// ParsedCommand is the result of matching node text against the command grammar.
type ParsedCommand struct {
	Type     QueryType
	Name     string // slash token without the slash
	Order    int
	HasOrder bool
	// Text is the command text with the order prefix removed.
	Text string
	// Body is the text after the slash token, flags included.
	Body string
}

// ParseCommand matches text against the registered commands.
// An optional "#<int>" order prefix is accepted before the slash token.
func ParseCommand(text string) (ParsedCommand, bool) {
	m := commandRe.FindStringSubmatchIndex(text)
	if m == nil {
		return ParsedCommand{}, false
	}
	name := text[m[4]:m[5]]
	qt, ok := commandNames[strings.ToLower(name)]
	if !ok {
		return ParsedCommand{}, false
	}
	pc := ParsedCommand{
		Type: qt,
		Name: name,
		Text: StripOrder(text),
		Body: strings.TrimSpace(text[m[1]:]),
	}
	if m[2] >= 0 {
		if n, err := strconv.Atoi(text[m[2]:m[3]]); err == nil {
			pc.Order = n
			pc.HasOrder = true
		}
	}
	return pc, true
}

// Valid reports whether qt belongs to a registered command.
func (qt QueryType) Valid() bool {
	for _, known := range commandNames {
		if known == qt {
			return true
		}
	}
	return false
}

// QueryTypeOf returns the query type of text, if it is a registered command.
func QueryTypeOf(text string) (QueryType, bool) {
	pc, ok := ParseCommand(text)
	return pc.Type, ok
}

// IsCommand reports whether text starts with a registered command.
func IsCommand(text string) bool {
	_, ok := ParseCommand(text)
	return ok
}

// IsCommandType reports whether text is a command of the given type.
func IsCommandType(text string, qt QueryType) bool {
	got, ok := QueryTypeOf(text)
	return ok && got == qt
}

// IsOutlineSummarize reports whether text is "/outline" carrying the summarize flag.
func IsOutlineSummarize(text string) bool {
	pc, ok := ParseCommand(text)
	if !ok || pc.Type != QueryOutline {
		return false
	}
	_, has := ParseFlags(pc.Body)[strings.TrimPrefix(SummarizeFlag, "--")]
	return has
}

// StripOrder removes a leading "#<int>" order prefix.
func StripOrder(text string) string {
	return orderRe.ReplaceAllString(text, "")
}

// ParseFlags extracts "--name=value" and "--name" tokens. Bare flags map to "true".
func ParseFlags(text string) map[string]string {
	flags := make(map[string]string)
	for _, m := range flagRe.FindAllStringSubmatch(text, -1) {
		val := m[2]
		if val == "" && !strings.Contains(m[0], "=") {
			val = "true"
		}
		flags[m[1]] = val
	}
	return flags
}

// StripFlags removes every "--flag" token from text.
func StripFlags(text string) string {
	return strings.Join(strings.Fields(flagRe.ReplaceAllString(text, " ")), " ")
}

// StripCommandToken removes the order prefix and the slash token, leaving the body.
func StripCommandToken(text string) string {
	pc, ok := ParseCommand(text)
	if !ok {
		return text
	}
	return pc.Body
}
