// Package generation turns retrieved chunks into streamed answers.
//
// The PromptBuilder assembles a grounded prompt from a question and its
// retrieved chunks, trimming the lowest-scoring sources when the context
// budget is exceeded. The Client streams completions from an ai.Generator
// with health probing, per-attempt timeouts and exponential backoff,
// degrading to a fallback message when the backend stays unreachable.
package generation
