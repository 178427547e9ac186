package services

import (
	"strings"

	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
	"github.com/custodia-labs/strata-cli/internal/logger"
)

// Built-in prompt templates used when no PromptStore is configured or a
// template cannot be loaded.
var builtinPrompts = map[string]string{
	driven.PromptOutlineSystem: "Turn the user's outline into a markdown document skeleton. " +
		"Emit one '## ' heading per top-level topic with a short paragraph under each. " +
		"Do not add a '# ' title, citations or confidence scores.",
	driven.PromptEnhanceSystem: "You are improving a research document. Restructure and expand it, " +
		"identify gaps, keep academic rigour and mark unsupported claims. " +
		"Keep the markdown layout: '## ' sections, '### ' subsections, " +
		"'### Citations' blocks and 'Confidence Score:' lines must be preserved for sections you keep. " +
		"After the document, list the open questions further research should answer as a ```json block: " +
		`{"research_questions": [{"question": "...", "importance": "...", "expected_insights": "..."}]}`,
	driven.PromptResearchQuery: "Provide comprehensive, factual information about: {section} (in the context of {document})",
}

// loadPrompt returns the named template from the store, falling back to the
// built-in template.
func loadPrompt(store driven.PromptStore, name string) string {
	if store != nil {
		p, err := store.Load(name)
		if err == nil && strings.TrimSpace(p) != "" {
			return p
		}
		if err != nil {
			logger.Warn("Prompt %q unavailable, using built-in: %v", name, err)
		}
	}
	return builtinPrompts[name]
}

// fillTemplate substitutes {key} placeholders.
func fillTemplate(tmpl string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
