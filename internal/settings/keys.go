package settings

import "strings"

// Provider credential and model keys, named after their environment variables.
const (
	FalKey          = "FAL_KEY"
	GeminiAPIKey    = "GEMINI_API_KEY"
	GeminiModel     = "GEMINI_MODEL"
	LeonardoAPIKey  = "LEONARDO_API_KEY"
	LeonardoModelID = "LEONARDO_MODEL_ID"
	MistralAPIKey   = "MISTRAL_API_KEY"
	MistralModel    = "MISTRAL_MODEL"
)

type Key struct {
	Env     string
	Stored  string
	Default string
}

var Keys = []Key{
	{Env: FalKey, Stored: "fal_key"},
	{Env: GeminiAPIKey, Stored: "gemini_api_key"},
	{Env: GeminiModel, Stored: "gemini_model", Default: "gemini-2.0-flash"},
	{Env: LeonardoAPIKey, Stored: "leonardo_api_key"},
	{Env: LeonardoModelID, Stored: "leonardo_model_id", Default: "b24e16ff-06e3-43eb-8d33-4416c2d75876"},
	{Env: MistralAPIKey, Stored: "mistral_api_key"},
	{Env: MistralModel, Stored: "mistral_model", Default: "mistral-small-latest"},
}

func lookupStored(name string) (Key, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, k := range Keys {
		if k.Stored == name {
			return k, true
		}
	}
	return Key{}, false
}

// Snapshot is an immutable view of the resolved settings.
type Snapshot struct {
	values map[string]string
}

// NewSnapshot builds a snapshot from env-style keys. Missing keys take their defaults.
func NewSnapshot(values map[string]string) Snapshot {
	out := make(map[string]string, len(Keys))
	for _, k := range Keys {
		v := strings.TrimSpace(values[k.Env])
		if v == "" {
			v = k.Default
		}
		out[k.Env] = v
	}
	return Snapshot{values: out}
}

func (s Snapshot) Get(envKey string) string {
	return s.values[envKey]
}

func (s Snapshot) Has(envKey string) bool {
	return s.values[envKey] != ""
}

func maskValue(v string) string {
	if v == "" {
		return ""
	}
	r := []rune(v)
	if len(r) < 8 {
		return "••••••••"
	}
	return string(r[:4]) + "••••••••" + string(r[len(r)-4:])
}
