// Package file provides filesystem-backed implementations of driven ports.
//
// Adapters:
//   - ConfigStore: config.toml under ~/.obra with environment overrides
//   - PromptStore: user-editable prompt templates under ~/.obra/prompts
package file
