package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/chat/domain"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/chat/port"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Assembler: monta UMA resposta do assistente a partir do transporte
// ============================================================
//
// Máquina de estados:
//
//	Idle → AwaitingHeaders → Streaming → Complete
//	               │              │
//	               └──── Failed ◄─┘        (status não-2xx ou erro de rede)
//	               └── Cancelled ◄┘        (context cancelado pelo chamador)
//
// Prazo vencido (context.DeadlineExceeded) não é cancelamento: termina em Failed
// com o marcador de rede, depois do texto parcial.
//
// Exibição incremental em duas camadas:
//   - camada garantida: o texto cru decodificado de cada chunk é acumulado e exibido
//   - camada best-effort: chunks com "\n" são lidos como NDJSON (com ou sem prefixo
//     SSE "data: ") e o campo de resposta extraído passa a ser o texto exibido
//
// Falha no parse JSON nunca interrompe a camada crua.

const (
	readBufferSize   = 4096
	maxFailureBody   = 64 << 10
	maxBufferedBody  = 4 << 20
	sseDataPrefix    = "data:"
	sseDoneSentinel  = "[DONE]"
	streamModeStream = "stream"
	streamModeBuffer = "buffered"
	timeoutMessage   = "the assistant took too long to respond"
)

// Hooks recebe as notificações do Assembler. Campos nil são ignorados.
type Hooks struct {
	// OnState é chamado a cada transição de estado.
	OnState func(domain.StreamState)
	// OnChunk é chamado uma vez por chunk lido, com o texto acumulado até ali.
	OnChunk func(cumulative string)
}

func (h Hooks) state(s domain.StreamState) {
	if h.OnState != nil {
		h.OnState(s)
	}
}

func (h Hooks) chunk(text string) {
	if h.OnChunk != nil {
		h.OnChunk(text)
	}
}

// AssemblyResult é o resultado final de uma montagem.
type AssemblyResult struct {
	Text   string
	State  domain.StreamState
	Chunks int
}

// Assembler é stateless entre execuções; o único estado vivo é o buffer da montagem em curso.
type Assembler struct {
	transport port.ChatTransport
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAssembler cria o Assembler. metrics pode ser nil.
func NewAssembler(transport port.ChatTransport, metrics *observability.Metrics, logger *zap.Logger) *Assembler {
	return &Assembler{transport: transport, metrics: metrics, logger: logger}
}

// Run executa uma montagem completa. Nunca devolve erro: toda falha vira texto
// (com o marcador correspondente) e estado Failed.
//
// Cancelar ctx fecha o body do transporte e termina em Cancelled, mantendo o texto parcial.
// Se o prazo de ctx vencer, termina em Failed.
func (a *Assembler) Run(ctx context.Context, req *domain.BackendRequest, hooks Hooks) AssemblyResult {
	ctx, span := chatTracer.Start(ctx, "Assembler.Run")
	defer span.End()

	hooks.state(domain.StateAwaitingHeaders)

	resp, err := a.transport.Open(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return a.abandoned(ctx, "", 0, hooks)
		}
		a.logger.Warn("chat transport failed", zap.String("chat_id", req.ChatID), zap.Error(err))
		a.externalError()
		span.RecordError(err)
		return a.finish(hooks, AssemblyResult{
			Text:  domain.NetworkFailureMarker + err.Error(),
			State: domain.StateFailed,
		})
	}
	defer resp.Body.Close()

	// fecha o body assim que o chamador desistir, liberando a conexão
	stop := context.AfterFunc(ctx, func() { resp.Body.Close() })
	defer stop()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode), attribute.Bool("chat.streamed", resp.Streamed))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxFailureBody))
		a.logger.Warn("chat backend returned non-2xx",
			zap.String("chat_id", req.ChatID),
			zap.Int("status", resp.StatusCode),
		)
		a.externalError()
		return a.finish(hooks, AssemblyResult{
			Text:  domain.UpstreamFailureMarker + failureText(resp.StatusCode, body),
			State: domain.StateFailed,
		})
	}

	if !resp.Streamed {
		return a.runBuffered(ctx, resp.Body, hooks)
	}
	return a.runStreamed(ctx, resp.Body, hooks)
}

// runBuffered trata a resposta inteira como um único chunk e vai direto a Complete.
func (a *Assembler) runBuffered(ctx context.Context, body io.Reader, hooks Hooks) AssemblyResult {
	data, err := io.ReadAll(io.LimitReader(body, maxBufferedBody))
	if err != nil {
		return a.readFailure(ctx, "", 0, err, hooks)
	}
	a.chunkMetric(streamModeBuffer)

	text := string(data)
	if reply, ok := replyFromJSON(bytes.TrimSpace(data)); ok {
		text = reply
	}
	hooks.chunk(text)
	return a.finish(hooks, AssemblyResult{Text: text, State: domain.StateComplete, Chunks: 1})
}

func (a *Assembler) runStreamed(ctx context.Context, body io.Reader, hooks Hooks) AssemblyResult {
	hooks.state(domain.StateStreaming)

	var acc accumulator
	buf := make([]byte, readBufferSize)
	chunks := 0

	for {
		n, err := body.Read(buf)
		if n > 0 {
			chunks++
			a.chunkMetric(streamModeStream)
			acc.feed(buf[:n])
			hooks.chunk(acc.display())
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return a.readFailure(ctx, acc.display(), chunks, err, hooks)
		}
	}

	before := acc.display()
	acc.flush()
	text := acc.display()
	if text != before {
		hooks.chunk(text)
	}
	return a.finish(hooks, AssemblyResult{Text: text, State: domain.StateComplete, Chunks: chunks})
}

// readFailure distingue abandono pelo chamador (mantém o parcial) de erro de rede.
func (a *Assembler) readFailure(ctx context.Context, partial string, chunks int, err error, hooks Hooks) AssemblyResult {
	if ctx.Err() != nil {
		return a.abandoned(ctx, partial, chunks, hooks)
	}
	a.logger.Warn("chat stream interrupted", zap.Int("chunks", chunks), zap.Error(err))
	a.externalError()
	return a.finish(hooks, AssemblyResult{
		Text:   domain.NetworkFailureMarker + err.Error(),
		State:  domain.StateFailed,
		Chunks: chunks,
	})
}

// abandoned resolve uma montagem interrompida pelo context.
func (a *Assembler) abandoned(ctx context.Context, partial string, chunks int, hooks Hooks) AssemblyResult {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return a.finish(hooks, AssemblyResult{Text: partial, State: domain.StateCancelled, Chunks: chunks})
	}
	a.logger.Warn("chat stream timed out", zap.Int("chunks", chunks))
	a.externalError()
	return a.finish(hooks, AssemblyResult{Text: timeoutText(partial), State: domain.StateFailed, Chunks: chunks})
}

// timeoutText anexa o marcador de rede e a mensagem de prazo ao texto parcial.
func timeoutText(partial string) string {
	text := domain.NetworkFailureMarker + timeoutMessage
	if partial == "" {
		return text
	}
	return partial + "\n\n" + text
}

func (a *Assembler) finish(hooks Hooks, res AssemblyResult) AssemblyResult {
	hooks.state(res.State)
	return res
}

func (a *Assembler) chunkMetric(mode string) {
	if a.metrics != nil {
		a.metrics.IncrStreamChunk(mode)
	}
}

func (a *Assembler) externalError() {
	if a.metrics != nil {
		a.metrics.IncrExternalError("chat-backend")
	}
}

// ============================================================
// accumulator: texto cru + texto estruturado
// ============================================================

type accumulator struct {
	pending    []byte // bytes de um rune UTF-8 incompleto no fim do chunk anterior
	raw        strings.Builder
	lines      string // linha NDJSON ainda sem "\n"
	structured strings.Builder
}

func (a *accumulator) feed(chunk []byte) {
	data := append(a.pending, chunk...)
	cut := completeUTF8Prefix(data)
	a.pending = append([]byte(nil), data[cut:]...)
	text := string(data[:cut])
	a.raw.WriteString(text)

	a.lines += text
	for {
		i := strings.IndexByte(a.lines, '\n')
		if i < 0 {
			break
		}
		a.consumeLine(a.lines[:i])
		a.lines = a.lines[i+1:]
	}
}

// flush decodifica o que sobrou no fim do stream.
func (a *accumulator) flush() {
	if len(a.pending) > 0 {
		a.raw.WriteString(strings.ToValidUTF8(string(a.pending), "�"))
		a.pending = nil
	}
	// sem "\n" nenhum, o stream ainda pode ter sido um único objeto JSON
	if strings.TrimSpace(a.lines) != "" {
		a.consumeLine(a.lines)
	}
	a.lines = ""
}

func (a *accumulator) consumeLine(line string) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, sseDataPrefix) {
		line = strings.TrimSpace(strings.TrimPrefix(line, sseDataPrefix))
	}
	if line == "" || line == sseDoneSentinel {
		return
	}
	if reply, ok := replyFromJSON([]byte(line)); ok {
		a.structured.WriteString(reply)
	}
}

// display é o texto estruturado quando houve extração; senão o texto cru.
func (a *accumulator) display() string {
	if a.structured.Len() > 0 {
		return a.structured.String()
	}
	return a.raw.String()
}

// completeUTF8Prefix devolve quantos bytes de data formam runes completos.
func completeUTF8Prefix(data []byte) int {
	for back := 1; back <= utf8.UTFMax && back <= len(data); back++ {
		i := len(data) - back
		if !utf8.RuneStart(data[i]) {
			continue
		}
		if !utf8.FullRune(data[i:]) {
			return i
		}
		return len(data)
	}
	return len(data)
}

// ============================================================
// Extração de campos
// ============================================================

// replyFromJSON procura o texto de resposta na ordem: reply, content,
// message.content (ou choices[0].delta/message.content), response.
func replyFromJSON(data []byte) (string, bool) {
	if len(data) == 0 || data[0] != '{' {
		return "", false
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", false
	}
	if s, ok := obj["reply"].(string); ok {
		return s, true
	}
	if s, ok := obj["content"].(string); ok {
		return s, true
	}
	if s, ok := nestedContent(obj); ok {
		return s, true
	}
	if s, ok := obj["response"].(string); ok {
		return s, true
	}
	return "", false
}

func nestedContent(obj map[string]any) (string, bool) {
	if msg, ok := obj["message"].(map[string]any); ok {
		if s, ok := msg["content"].(string); ok {
			return s, true
		}
	}
	choices, ok := obj["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", false
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return "", false
	}
	for _, key := range []string{"delta", "message"} {
		if inner, ok := first[key].(map[string]any); ok {
			if s, ok := inner["content"].(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

// failureText escolhe a mensagem de erro: campo JSON error/message, texto cru, "Error <status>".
func failureText(status int, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var obj map[string]any
		if json.Unmarshal(trimmed, &obj) == nil {
			if s, ok := obj["error"].(string); ok && s != "" {
				return s
			}
			if inner, ok := obj["error"].(map[string]any); ok {
				if s, ok := inner["message"].(string); ok && s != "" {
					return s
				}
			}
			if s, ok := obj["message"].(string); ok && s != "" {
				return s
			}
		}
	}
	if len(trimmed) > 0 {
		return string(trimmed)
	}
	return fmt.Sprintf("Error %d", status)
}
