package mcpserver

import (
	"bytes"
	"context"
	"embed"
	"path"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.md
var promptFiles embed.FS

type promptFrontmatter struct {
	Description string `yaml:"description"`
}

type prompt struct {
	name        string
	description string
	body        string
}

// loadPrompts reads the embedded prompts, ordered by name.
func loadPrompts() ([]prompt, error) {
	entries, err := promptFiles.ReadDir("prompts")
	if err != nil {
		return nil, err
	}
	var out []prompt
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		content, err := promptFiles.ReadFile(path.Join("prompts", entry.Name()))
		if err != nil {
			return nil, err
		}
		description, body := parseFrontmatter(content)
		out = append(out, prompt{
			name:        strings.TrimSuffix(entry.Name(), ".md"),
			description: description,
			body:        body,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

func (s *Server) registerPrompts() {
	prompts, err := loadPrompts()
	if err != nil {
		s.logger.Warn("prompts unavailable", "err", err)
		return
	}
	for _, p := range prompts {
		s.server.AddPrompt(&mcp.Prompt{Name: p.name, Description: p.description}, makePromptHandler(p.description, p.body))
	}
}

// parseFrontmatter splits YAML frontmatter from the prompt body. Content
// without valid frontmatter is returned whole as the body.
func parseFrontmatter(content []byte) (description, body string) {
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return "", string(content)
	}
	rest := content[4:]
	end := bytes.Index(rest, []byte("\n---\n"))
	if end == -1 {
		return "", string(content)
	}
	var fm promptFrontmatter
	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return "", string(content)
	}
	return fm.Description, strings.TrimPrefix(string(rest[end+5:]), "\n")
}

func makePromptHandler(description, body string) mcp.PromptHandler {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{
			Description: description,
			Messages: []*mcp.PromptMessage{
				{Role: "user", Content: &mcp.TextContent{Text: body}},
			},
		}, nil
	}
}
