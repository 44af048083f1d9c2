package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/delta5-hq/d5-sub001/internal/resolve"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/ports"
)

// ProviderTypes lists the query types served by a text generator.
var ProviderTypes = []domain.QueryType{
	domain.QueryChat,
	domain.QueryClaude,
	domain.QueryPerplexity,
	domain.QueryQwen,
	domain.QueryDeepseek,
	domain.QueryYandex,
	domain.QueryCustom,
	domain.QueryWeb,
	domain.QueryScholar,
	domain.QueryTranslate,
	domain.QueryRefine,
	domain.QueryOutline,
	domain.QuerySummarize,
	domain.QueryMemorize,
	domain.QueryRemember,
	domain.QueryDownloads,
	domain.QueryCompletion,
}

// providerCommand sends the resolved cell to a generator and imports the
// answer below the cell as its new prompts.
type providerCommand struct {
	env Env
}

func newProviderCommand(env Env) Command {
	return &providerCommand{env: env}
}

func (c *providerCommand) Run(ctx context.Context, cell *domain.Node) error {
	flags := map[string]string{}
	if pc, ok := domain.ParseCommand(cell.Text()); ok {
		flags = domain.ParseFlags(pc.Body)
	}

	answer, err := c.env.Generators.Generate(ctx, ports.GenerateRequest{
		QueryType:  c.env.QueryType,
		Prompt:     c.prompt(cell),
		Flags:      flags,
		UserID:     c.env.UserID,
		WorkflowID: c.env.WorkflowID,
	})
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	ids, err := c.env.Store.ImportText(cell.ID, answer)
	if err != nil {
		return fmt.Errorf("import answer: %w", err)
	}
	c.env.Logger.Debug("answer imported", "nodes", len(ids))
	return nil
}

// prompt joins the request context, the request prompt, the parent outline
// for summarizing commands, and the resolved command body with the cell's children.
func (c *providerCommand) prompt(cell *domain.Node) string {
	var parts []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}

	add(c.env.Context)
	add(c.env.Prompt)
	if summarizes(c.env.QueryType) && cell.Parent != "" {
		if parent, ok := c.env.Store.Node(cell.Parent); ok {
			add(c.env.Resolver.IndentedText(parent, resolve.IndentOptions{IncludePrompts: true}))
		}
	}
	add(c.env.Resolver.ResolveChildrenAndSelf(cell))
	return strings.Join(parts, "\n")
}

func summarizes(qt domain.QueryType) bool {
	return qt == domain.QuerySummarize || qt == domain.QueryMemorize || qt == domain.QueryOutline
}
