package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names. These constants define the contract between
// prompt consumers and providers.
const (
	// PromptOutlineSystem structures a raw outline into section headings.
	// It has no format placeholders.
	PromptOutlineSystem = "outline_system"

	// PromptEnhanceSystem is the instruction for the enhancement rewrite.
	// It has no format placeholders.
	PromptEnhanceSystem = "enhance_system"

	// PromptResearchQuery builds the section-scoped research query.
	// The template may use {section} and {document} placeholders.
	PromptResearchQuery = "research_query"

	// PromptGroundedResearch asks an LLM for sourced facts as JSON.
	// The template expects a {query} placeholder.
	PromptGroundedResearch = "grounded_research"
)
