// Package embeddings provides text embedding via multiple providers.
//
// OpenAI embeddings go through langchaingo, local embeddings through
// FastEmbed (ONNX, cgo only), and a deterministic hashing provider serves
// offline runs and tests. NewProvider selects one at runtime and wraps it
// with OpenTelemetry metrics.
package embeddings
