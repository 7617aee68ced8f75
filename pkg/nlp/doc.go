// Package nlp provides the language model client used for concept extraction.
//
// OpenAIClient talks to OpenAI or any OpenAI-compatible endpoint. The
// wrappers add behavior around any Client:
//   - RetryClient retries transient failures with exponential backoff
//   - CircuitBreakerClient stops calling a failing provider and raises an alert
//   - TokenTrackingClient records token usage to Parquet files
//
// NewClientFromConfig assembles the chain from configuration.
package nlp
