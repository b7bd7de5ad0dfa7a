package domain

// Chat roles for multi-turn history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one prior exchange entry. History alternates user/assistant turns;
// malformed alternation is tolerated downstream, never fatal.
type Turn struct {
	Role    string
	Content string
}

// Provenance classifies how an answer was produced.
type Provenance string

const (
	// ProvenanceRAG means the answer was grounded in retrieved context.
	ProvenanceRAG Provenance = "rag"
	// ProvenanceDirect means the report workflow answered from computed data.
	ProvenanceDirect Provenance = "direct"
	// ProvenanceFallback means retrieval found nothing usable and the model
	// answered from general knowledge, or generation itself failed.
	ProvenanceFallback Provenance = "fallback"
)
