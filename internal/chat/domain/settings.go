package domain

import "strings"

// Tone é o tom de voz pedido ao assistente.
type Tone string

const (
	ToneFriendly     Tone = "friendly"
	ToneProfessional Tone = "professional"
	ToneConcise      Tone = "concise"
)

// Valid indica se o tom pertence à enumeração.
func (t Tone) Valid() bool {
	switch t {
	case ToneFriendly, ToneProfessional, ToneConcise:
		return true
	}
	return false
}

// DefaultSystemPrompt é o prompt usado quando o usuário não configurou outro.
const DefaultSystemPrompt = "You are a helpful personal finance assistant. " +
	"Help the user understand their spending, budgets and savings goals. " +
	"Be practical and never present estimates as guaranteed outcomes."

// Limites do tamanho de resposta pedido ao backend.
const (
	DefaultMaxResponseLength = 512
	MinMaxResponseLength     = 64
	MaxMaxResponseLength     = 4096
	PaletteCount             = 6
)

// Settings é o blob gravado sob StorageKeySettings.
type Settings struct {
	DarkMode          bool   `json:"darkMode"`
	SystemPrompt      string `json:"systemPrompt"`
	Tone              Tone   `json:"tone"`
	PaletteIndex      int    `json:"paletteIndex"`
	Streaming         bool   `json:"streaming"`
	MaxResponseLength int    `json:"maxResponseLength"`
}

// DefaultSettings devolve o estado inicial: tema claro, prompt padrão, tom amigável, streaming ligado.
func DefaultSettings() Settings {
	return Settings{
		SystemPrompt:      DefaultSystemPrompt,
		Tone:              ToneFriendly,
		Streaming:         true,
		MaxResponseLength: DefaultMaxResponseLength,
	}
}

// Normalize corrige campos fora do domínio em vez de rejeitá-los.
// Usado ao carregar um blob antigo ou parcialmente inválido.
func (s Settings) Normalize() Settings {
	if strings.TrimSpace(s.SystemPrompt) == "" {
		s.SystemPrompt = DefaultSystemPrompt
	}
	if !s.Tone.Valid() {
		s.Tone = ToneFriendly
	}
	if s.PaletteIndex < 0 || s.PaletteIndex >= PaletteCount {
		s.PaletteIndex = 0
	}
	if s.MaxResponseLength <= 0 {
		s.MaxResponseLength = DefaultMaxResponseLength
	}
	s.MaxResponseLength = min(max(s.MaxResponseLength, MinMaxResponseLength), MaxMaxResponseLength)
	return s
}
