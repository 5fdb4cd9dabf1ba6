// Package domain define os contratos e tipos do núcleo de admissão do gateway:
// rotas, identidades, decisões de rate limit, eventos de observabilidade e a
// taxonomia de erros.
//
// Este pacote não depende de net/http nem de implementações concretas.
// As implementações ficam em infra; a orquestração fica em application.
package domain
