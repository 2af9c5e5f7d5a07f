package advisory

import (
	"encoding/json"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI system prompt for trip advisories
const SystemPrompt = `You are a mountain road safety advisor. You receive a summary of a planned car trip and the road conditions reported by roadside cameras along it, and you write short, practical guidance for the driver.

Instructions:
- Use only the facts in the input. Never invent closures, chain controls, or weather.
- The rating is computed from camera classifications: "hazardous" means at least one camera shows snow, ice, or similar; "caution" means many cameras show wet or marginal conditions; "unknown" means no camera covers the route.
- If "degraded" is true the route is a straight-line estimate because no road routing was available. Say so plainly.
- Mention the nearest hazardous cameras by name when there are any.
- Write for someone about to start driving: calm, direct, no jargon.

Return a valid JSON object with these exact fields:
- headline (string) : under 80 chars
- details (string) : 2 to 4 sentences
- recommendation (enum) : "proceed" | "proceed_with_caution" | "delay_travel" | "avoid"
- condensed_summary (string) : 1-line summary (max 120 chars, no times)

Good condensed summaries:
- Snow reported at 2 cameras near Parleys Summit, carry chains.
- Mostly dry, one wet stretch, normal care.
- No camera coverage on this route, conditions unknown.`

// AdvisorySchema defines the JSON schema for structured advisory output
var AdvisorySchema = openai.ChatCompletionResponseFormatJSONSchema{
	Name:   "trip_advisory",
	Strict: true,
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"headline": {
				"type": "string",
				"description": "Short headline for the trip, under 80 chars"
			},
			"details": {
				"type": "string",
				"description": "Plain-language guidance, 2 to 4 sentences"
			},
			"recommendation": {
				"type": "string",
				"enum": ["proceed", "proceed_with_caution", "delay_travel", "avoid"],
				"description": "Overall recommendation for the driver"
			},
			"condensed_summary": {
				"type": "string",
				"maxLength": 120,
				"description": "Very short summary, max 120 chars"
			}
		},
		"required": ["headline", "details", "recommendation", "condensed_summary"],
		"additionalProperties": false
	}`),
}
