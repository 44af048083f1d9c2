package runtime

import (
	"context"
	"strings"

	"github.com/delta5-hq/d5-sub001/pkg/domain"
)

// switchCommand asks a classifier to pick one "/case" child and runs the
// command grandchildren of that case in document order.
type switchCommand struct {
	env Env
}

func newSwitchCommand(env Env) Command {
	return &switchCommand{env: env}
}

func (c *switchCommand) Run(ctx context.Context, cell *domain.Node) error {
	cases := make(map[string]*domain.Node)
	var options []string
	for _, child := range c.env.Store.Children(cell.ID) {
		option, ok := caseOption(child)
		if !ok {
			continue
		}
		key := strings.ToLower(option)
		if _, dup := cases[key]; dup {
			continue
		}
		cases[key] = child
		options = append(options, option)
	}
	if len(cases) == 0 {
		c.env.Logger.Debug("switch has no cases")
		return nil
	}
	if c.env.Classifier == nil {
		c.env.Logger.Warn("switch skipped: no classifier configured")
		return nil
	}

	answer, err := c.env.Classifier.Classify(ctx, c.question(cell), options)
	if err != nil {
		c.env.Logger.Warn("switch classification failed", "err", err)
		return nil
	}
	key := normalizeAnswer(answer)
	chosen, ok := cases[key]
	if !ok {
		c.env.Logger.Info("switch answer matched no case", "answer", answer)
		return nil
	}

	c.env.Logger.Debug("switch case chosen", "case_id", chosen.ID)
	for _, g := range c.env.Store.Children(chosen.ID) {
		qt, ok := domain.QueryTypeOf(g.Text())
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		c.env.Dispatcher.runUnit(ctx, Request{QueryType: qt, CellID: g.ID}, c.env.Scope)
	}
	return nil
}

// question is the request context and prompt followed by the switch's own
// resolved text without the command token.
func (c *switchCommand) question(cell *domain.Node) string {
	var parts []string
	for _, s := range []string{
		c.env.Context,
		c.env.Prompt,
		domain.StripCommandToken(c.env.Resolver.ResolveSelf(cell, true)),
	} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// caseOption returns the option text of a "/case <option>" node.
func caseOption(n *domain.Node) (string, bool) {
	text := strings.TrimSpace(n.Title)
	if !hasCasePrefix(text) {
		text = strings.TrimSpace(n.Command)
		if !hasCasePrefix(text) {
			return "", false
		}
	}
	option := strings.TrimSpace(text[len(domain.CaseMarker):])
	return option, option != ""
}

func hasCasePrefix(text string) bool {
	if len(text) < len(domain.CaseMarker) || !strings.EqualFold(text[:len(domain.CaseMarker)], domain.CaseMarker) {
		return false
	}
	rest := text[len(domain.CaseMarker):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t'
}

func normalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(strings.Trim(strings.TrimSpace(answer), "\"'`.")))
}
