// Package normalisers converts documents to and from their text forms.
//
// The markdown subpackage implements the interchange codec used between
// loop steps and the rewrite provider. The structured subpackage exports
// the section tree as JSON or YAML for machine consumption.
//
// Exporters are registered with the Registry at startup.
package normalisers
