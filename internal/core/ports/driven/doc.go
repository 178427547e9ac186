// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - LLMService: generative rewrite (outline structuring, enhancement)
//   - ResearchProvider: grounded research returning sourced snippets
//   - DocumentCodec: markdown interchange parse/serialize
//   - PromptStore: prompt templates
//   - ConfigStore: application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - RunStore: run and version history persistence. Without it, runs are
//     not recorded and `strata history` is unavailable.
//   - ExporterRegistry: output formats beyond markdown.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
