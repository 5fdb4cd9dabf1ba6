package domain

import (
	"context"
	"time"
)

// Outcome é o resultado final da admissão de uma requisição.
type Outcome string

const (
	OutcomeAllowed          Outcome = "allowed"
	OutcomeDenied           Outcome = "denied"
	OutcomeUnauthenticated  Outcome = "unauthenticated"
	OutcomeForbidden        Outcome = "forbidden"
	OutcomeNotFound         Outcome = "not-found"
	OutcomeMethodNotAllowed Outcome = "method-not-allowed"
)

// StatsEvent representa um evento de decisão de admissão.
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings genéricas
// e podem ser usadas para web, gRPC, etc.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de séries/chaves em uma base como Redis/Prometheus).
type StatsEvent struct {
	Key     Key
	Outcome Outcome

	Method  string
	Path    string
	Service string
	Subject string

	RequestID string
	// Duration é quanto o núcleo levou para decidir; não inclui o upstream.
	Duration time.Duration
	At       time.Time
}

func (ev StatsEvent) Allowed() bool { return ev.Outcome == OutcomeAllowed }

// StatsStore é a estratégia de persistência para eventos de admissão.
//
// Implementações podem armazenar em Redis, Prometheus, log, memória, etc.
// Quem chama deve tratar erro como best-effort (não derrubar request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
