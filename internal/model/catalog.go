package model

// Backend selects the completion transport for a catalog entry.
type Backend string

const (
	// BackendOpenRouter is the hosted multi-model API; requires a bearer key.
	BackendOpenRouter Backend = "openrouter"
	// BackendTunnel is a self-hosted OpenAI-compatible endpoint; no credential.
	BackendTunnel Backend = "tunnel"
)

// ModelChoice is a static catalog entry. Cost is USD per million output
// tokens, shown to the user when picking a model. Catalog data is
// reference-only and never persisted.
type ModelChoice struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	LogoURL     string  `json:"logoURL,omitempty"`
	Cost        float64 `json:"cost"`
	Backend     Backend `json:"backend"`
}

// SummaryModelID is the fixed model used for every title summarization,
// regardless of the conversation's own model. Keeping summaries on one
// cheap model decouples their cost from the chat model choice.
const SummaryModelID = "openai/gpt-4o-mini"

var catalog = []ModelChoice{
	{
		ID:          "openai/gpt-4o",
		Name:        "GPT-4o",
		Description: "Strong general-purpose model, good default for lessons.",
		Cost:        10.0,
		Backend:     BackendOpenRouter,
	},
	{
		ID:          "openai/gpt-4o-mini",
		Name:        "GPT-4o mini",
		Description: "Fast and cheap; used internally for title summaries.",
		Cost:        0.6,
		Backend:     BackendOpenRouter,
	},
	{
		ID:          "anthropic/claude-3.5-sonnet",
		Name:        "Claude 3.5 Sonnet",
		Description: "Long, careful explanations; good for expert students.",
		Cost:        15.0,
		Backend:     BackendOpenRouter,
	},
	{
		ID:          "google/gemini-flash-1.5",
		Name:        "Gemini 1.5 Flash",
		Description: "Low-latency conversational model.",
		Cost:        0.3,
		Backend:     BackendOpenRouter,
	},
	{
		ID:          "mistralai/mistral-7b-instruct",
		Name:        "Mistral 7B Instruct",
		Description: "Cheapest hosted option.",
		Cost:        0.06,
		Backend:     BackendOpenRouter,
	},
	{
		ID:          "local/llama-3-8b",
		Name:        "Llama 3 8B (self-hosted)",
		Description: "Runs against the local tunnel endpoint; free.",
		Cost:        0,
		Backend:     BackendTunnel,
	},
}

// Catalog returns the static model catalog. Callers must not mutate it.
func Catalog() []ModelChoice { return catalog }

// CatalogModel looks up a catalog entry by id.
func CatalogModel(id string) (ModelChoice, bool) {
	for _, m := range catalog {
		if m.ID == id {
			return m, true
		}
	}
	return ModelChoice{}, false
}
