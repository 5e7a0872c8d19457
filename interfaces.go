package storygen

import "context"

// Generator is the capability set the game calls. Implementations never
// return errors: failures collapse to the safe default of each capability.
type Generator interface {
	// GenerateText returns free text, or "" when generation failed.
	GenerateText(ctx context.Context, prompt string) string

	// GenerateImage returns a displayable image reference (URL or data URI).
	// ok is false when no image was produced; that is not an error.
	GenerateImage(ctx context.Context, prompt string) (ref string, ok bool)

	// CreateChat starts a conversation bound to systemInstruction.
	CreateChat(systemInstruction string) ChatSession

	// GenerateStructured returns a JSON object conforming to schema, or an
	// empty map when generation or parsing failed.
	GenerateStructured(ctx context.Context, prompt string, schema *Schema) map[string]any
}

// ChatSession is an ordered, append-only conversation with a fixed system
// instruction.
type ChatSession interface {
	// SendMessage sends text and returns the model reply, or "" on failure.
	SendMessage(ctx context.Context, text string) string

	// ID identifies the session.
	ID() string

	// SystemInstruction returns the instruction the session was created with.
	SystemInstruction() string

	// History returns a copy of the turns recorded so far.
	History() []Turn
}

// Backend translates the generic capabilities into one provider's wire
// protocol. Unlike Generator, a Backend reports failures as errors; the
// Adapter turns them into safe defaults.
type Backend interface {
	// Info describes the provider and its defaults.
	Info() ProviderInfo

	// GenerateText performs a single-turn text completion.
	GenerateText(ctx context.Context, prompt string) (string, error)

	// GenerateImage returns a URL or data URI. It returns ErrNoImage when
	// the provider reported zero results.
	GenerateImage(ctx context.Context, prompt string) (string, error)

	// Converse replies to message given the system instruction and the
	// prior turns, oldest first. Backends without native multi-turn support
	// rebuild the context into the prompt on every call.
	Converse(ctx context.Context, systemInstruction string, history []Turn, message string) (string, error)

	// GenerateJSON asks for output conforming to schema and returns the raw
	// response text. Callers extract and validate the JSON.
	GenerateJSON(ctx context.Context, prompt string, schema *Schema) (string, error)

	// Close releases any resources held by the backend.
	Close() error
}
