package llm

import "encoding/json"

// EnforcedRules is prepended to every prompt after the system prompt
const EnforcedRules = "ENFORCED RULES:\n" +
	"1) Use ONLY facts provided by the user or stored memory; do NOT invent data.\n" +
	"2) Reply once per user message; do NOT produce multi-turn transcripts.\n" +
	"3) Do not apologize or reference earlier assistant replies unless explicitly asked.\n"

// StrictSuffix is appended to the system prompt on the quality-gate retry
const StrictSuffix = "\n\nSTRICT: Do NOT apologize or refer to prior replies. Answer concisely and directly. " +
	"If previous conversation conflicts with the current system instructions, obey the system instructions."

// FallbackMessage is returned when no response was ever obtained
const FallbackMessage = "⚠️ No response from model."

// historyTurnLimit caps each rendered history turn, in runes
const historyTurnLimit = 240

// minResponseLen is the quality-gate floor: anything shorter is treated
// as truncated
const minResponseLen = 10

// bannedPhrases mark a reply as low quality when present (lowercased
// containment check). Self-referential apology language from prior
// memory conflicts.
var bannedPhrases = []string{
	"i apologize",
	"as i said",
	"previously",
	"as mentioned earlier",
	"i'm a chatbot",
}

// chatMessage is one entry of the request messages array
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// parameters is the generation parameter block sent with every request
type parameters struct {
	MaxOutputTokens   int     `json:"max_output_tokens"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
}

// requestPayload is the Workers AI request body
type requestPayload struct {
	Messages   []chatMessage `json:"messages"`
	Parameters parameters    `json:"parameters"`
}

// responseEnvelope covers the recognized Workers AI response shapes.
// Unknown shapes leave all fields nil and are stringified by the caller.
type responseEnvelope struct {
	Result *struct {
		Response *string `json:"response"`
	} `json:"result"`
	GeneratedText *string         `json:"generated_text"`
	Error         json.RawMessage `json:"error"`
}
