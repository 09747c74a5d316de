// Package memory provides tiered working memory for a conversational agent.
//
// A conversation's active context (the Window) is kept bounded. When it grows
// past its limit the oldest turns are summarized, scored for importance,
// embedded and written to a durable vector store; later, records similar to
// the user's input are recalled and injected back into the system prompt.
//
// Architecture:
//   - Window: anchor system turn plus chronological user/assistant turns
//   - Archiver: select batch -> summarize -> score -> embed -> insert -> remove
//   - Store: durable vector storage backend (chromem-go or SQLite)
//   - Embedder: text-to-vector conversion (local ONNX model, HTTP endpoint, mock)
//   - Summarizer: external model with a local fallback
//   - Recaller: similarity search bucketed into high/medium/low relevance
//   - Manager: owns the shared components; Session owns one conversation
//
// Integration:
//   - APPEND phase: Session.Append archives automatically while over limit
//   - RETRIEVE phase: Manager.Retrieve formats recalled memories before a reply
//
// The Window is only mutated after a batch has been durably stored (or
// deliberately discarded as unimportant), so a failure anywhere in the
// pipeline never loses turns.
package memory
