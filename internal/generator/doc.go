// Package generator defines the CommandGenerator contract shared by every
// inference backend, the request/response types, the error taxonomy, and the
// FallbackGenerator that composes backends in priority order.
//
//   - generator.go: CommandGenerator interface and BackendInfo.
//   - types.go: CommandRequest, GeneratedCommand, shell and safety enums.
//   - errors.go: Error kinds, constructors and predicates, ExhaustedError.
//   - prompt.go: prompt construction and model response parsing.
//   - events.go: lightweight event publishing for history/telemetry consumers.
//   - fallback.go: ordered failover across backends.
//
// Backends live in sibling packages (embedded, remote) and map their internal
// failures onto this package's Error kinds.
package generator
