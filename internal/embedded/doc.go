// Package embedded runs command generation against a locally loaded GGUF model.
//
// The model is acquired lazily: New only validates arguments, and the first
// GenerateCommand (or an explicit Load) performs the load. Overlapping callers
// share a single in-flight load. Once loaded, the resource is read-only and
// serves callers concurrently; the llama resource serializes decoding
// internally.
//
// Real inference requires building with -tags llama and a libllama on the
// link path. Without the tag every load fails with a structural ModelLoad
// error naming the missing support.
package embedded
