// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - Router: resolução de rotas por prefixo, primeira rota declarada vence
//   - Validator: identidades por token estático, com SignedTokens (JWT) opcional
//   - Store: token bucket por chave usando golang.org/x/time/rate, em shards
//   - ChanPool: semáforo simples para limite de concorrência
//   - *StatsStore: destinos dos eventos de admissão (memória, Redis, Prometheus, log)
package infra
