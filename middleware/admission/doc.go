// Package admission fornece adapters HTTP (net/http) para o núcleo de admissão
// do gateway e para o limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (Pipeline: rota -> identidade -> rate limit) sem net/http
//   - infra: implementações concretas (router, validador, token bucket, stats)
//   - admission (este pacote): middlewares HTTP + extração de chave/token + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai a chave do cliente (header/XFF/IP) e o header Authorization
//  2. Chama Pipeline.Admit para obter a Admission ou a rejeição
//  3. Se rejeitado, responde JSON {code, message, error_type} com o status do erro
//  4. Se admitido, guarda a Admission no contexto e chama o próximo handler (ex: reverse proxy)
//
// O binário gateway (cmd/gateway) lê a configuração de arquivo/variáveis GATEWAY_*.
package admission
