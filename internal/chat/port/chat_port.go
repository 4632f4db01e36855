// Package port: chat_port.go define a interface (port) do transporte
// até o backend conversacional (POST /chat).
//
// Seguindo a arquitetura hexagonal, o Assembler depende dessa interface
// e NÃO do client concreto. Nos testes ela é trocada por um fake que
// entrega chunks controlados.
package port

import (
	"context"
	"io"

	chatdomain "github.com/boddenberg/finance-assistant-bfa-go/internal/chat/domain"
)

// TransportResponse é a resposta crua do backend, com o body ainda não lido.
//
// Streamed=false significa que não há corpo incremental (resposta bufferizada):
// o Assembler lê tudo de uma vez e trata como um único chunk.
type TransportResponse struct {
	StatusCode  int
	ContentType string
	Streamed    bool
	Body        io.ReadCloser
}

// ChatTransport abre a requisição ao backend conversacional.
// Erro aqui é sempre falha de rede (ou circuito aberto), nunca status HTTP:
// respostas não-2xx voltam como TransportResponse para o Assembler extrair a mensagem.
type ChatTransport interface {
	Open(ctx context.Context, req *chatdomain.BackendRequest) (*TransportResponse, error)
}
