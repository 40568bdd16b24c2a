// Package knowledge answers questions from a static, file-backed knowledge base.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"AgentKit-Chain/internal/action"
	xerrors "AgentKit-Chain/internal/errors"
)

// Owner is the registry key of the knowledge actions.
const Owner = "KnowledgeActionProvider"

const defaultMaxResults = 3

const searchSchema = `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "minLength": 1, "description": "What to look up, e.g. 'weth wrap gas'"},
    "tags": {"type": "array", "items": {"type": "string"}, "description": "Only return snippets carrying one of these tags"}
  },
  "required": ["query"],
  "additionalProperties": false
}`

// Snippet is one entry the agent can cite.
type Snippet struct {
	Title    string   `json:"title" yaml:"title"`
	Content  string   `json:"content" yaml:"content"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Tags     []string `json:"tags" yaml:"tags"`
}

type searchArgs struct {
	Query string   `json:"query"`
	Tags  []string `json:"tags"`
}

// Provider implements the knowledge actions over an in-memory snippet list.
type Provider struct {
	*action.Base
	items      []Snippet
	maxResults int
}

// New creates the provider over items. maxResults <= 0 means 3.
func New(items []Snippet, maxResults int, opts ...action.Option) *Provider {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	p := &Provider{
		Base:       action.NewBase("knowledge", Owner, opts...),
		items:      items,
		maxResults: maxResults,
	}
	p.MustDefine(action.Definition{
		Name: "search_knowledge",
		Description: "This tool searches the operator's knowledge base for notes about protocols, " +
			"contracts and procedures. Use it before acting on unfamiliar assets.",
		Schema:    searchSchema,
		Signature: action.Unbound(p.search),
	})
	return p
}

// Load reads snippets from a JSON or YAML file, chosen by extension.
func Load(path string) ([]Snippet, error) {
	if strings.TrimSpace(path) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "知识库文件路径不能为空")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取知识库文件失败: %w", err)
	}
	var items []Snippet
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &items)
	default:
		err = json.Unmarshal(raw, &items)
	}
	if err != nil {
		return nil, fmt.Errorf("解析知识库文件失败: %w", err)
	}
	return items, nil
}

// Query returns up to maxResults snippets matching query, in file order.
func (p *Provider) Query(query string, tags []string) []Snippet {
	query = strings.ToLower(strings.TrimSpace(query))
	results := make([]Snippet, 0, p.maxResults)
	for _, item := range p.items {
		if !hasTag(item, tags) || !matches(item, query) {
			continue
		}
		results = append(results, item)
		if len(results) >= p.maxResults {
			break
		}
	}
	return results
}

func (p *Provider) search(_ context.Context, args action.Args) (string, error) {
	in, err := action.Decode[searchArgs](args)
	if err != nil {
		return "", err
	}
	found := p.Query(in.Query, in.Tags)
	if len(found) == 0 {
		return fmt.Sprintf("No knowledge found for %q.", in.Query), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d snippet(s):", len(found))
	for _, s := range found {
		fmt.Fprintf(&b, "\n\n## %s\n%s", s.Title, strings.TrimSpace(s.Content))
	}
	return b.String(), nil
}

// matches reports whether any keyword, tag or title word appears in query.
// Snippets without keywords or tags always match.
func matches(s Snippet, query string) bool {
	if len(s.Keywords) == 0 && len(s.Tags) == 0 {
		return true
	}
	for _, terms := range [][]string{s.Keywords, s.Tags} {
		for _, term := range terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term != "" && strings.Contains(query, term) {
				return true
			}
		}
	}
	return strings.Contains(strings.ToLower(s.Title), query)
}

func hasTag(s Snippet, tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		for _, have := range s.Tags {
			if strings.EqualFold(strings.TrimSpace(want), strings.TrimSpace(have)) {
				return true
			}
		}
	}
	return false
}
