package prompts

import (
	"context"
	"os"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/growthlens/audit-cli/internal/model"
	"github.com/growthlens/audit-cli/pkg/notion"
)

// Registry resolves the system prompt for each section, preferring
// loaded overrides over the built-in defaults.
type Registry struct {
	overrides map[model.Section]string
}

// NewRegistry builds a registry over the given overrides. A nil map
// yields the defaults for every section.
func NewRegistry(overrides map[model.Section]string) *Registry {
	return &Registry{overrides: overrides}
}

// System returns the section's system prompt, override first.
func (r *Registry) System(section model.Section) string {
	if r != nil {
		if p, ok := r.overrides[section]; ok && strings.TrimSpace(p) != "" {
			return p
		}
	}
	return System(section)
}

// LoadOverridesFile reads per-section prompt overrides from a YAML file
// keyed by section name. Unknown section keys fail the load.
func LoadOverridesFile(path string) (map[model.Section]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "prompts: read overrides file")
	}
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "prompts: parse overrides file")
	}
	overrides := make(map[model.Section]string, len(raw))
	for key, prompt := range raw {
		section, err := model.ParseSection(key)
		if err != nil {
			return nil, eris.Wrap(err, "prompts: overrides file")
		}
		overrides[section] = prompt
	}
	return overrides, nil
}

// LoadOverridesNotion loads prompt overrides from a Notion database.
// Each active page needs a "Section" title matching a section name and
// a "Prompt" rich text body.
func LoadOverridesNotion(ctx context.Context, client notion.Client, dbID string) (map[model.Section]string, error) {
	filter := notionapi.PropertyFilter{
		Property: "Status",
		Select:   &notionapi.SelectFilterCondition{Equals: "Active"},
	}
	pages, err := notion.QueryAll(ctx, client, dbID, filter)
	if err != nil {
		return nil, eris.Wrap(err, "prompts: load notion overrides")
	}

	overrides := make(map[model.Section]string, len(pages))
	for _, page := range pages {
		name := plainText(page.Properties["Section"])
		prompt := plainText(page.Properties["Prompt"])
		if name == "" || prompt == "" {
			continue
		}
		section, err := model.ParseSection(name)
		if err != nil {
			return nil, eris.Wrapf(err, "prompts: notion page %s", page.ID)
		}
		overrides[section] = prompt
	}
	return overrides, nil
}

// plainText flattens a Notion title or rich text property to a string.
func plainText(prop notionapi.Property) string {
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		var b strings.Builder
		for _, rt := range p.Title {
			b.WriteString(rt.PlainText)
		}
		return strings.TrimSpace(b.String())
	case *notionapi.RichTextProperty:
		var b strings.Builder
		for _, rt := range p.RichText {
			b.WriteString(rt.PlainText)
		}
		return strings.TrimSpace(b.String())
	default:
		return ""
	}
}
