// Package application contém os casos de uso do núcleo de admissão.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Pipeline.Admit(ctx, req) resolve a rota, valida a identidade e consulta
// o rate limit, nessa ordem, e retorna uma Admission ou um *domain.GatewayError.
package application
