package domain

import "slices"

// AdminRole concede acesso a qualquer papel exigido. Não é uma hierarquia.
const AdminRole = "admin"

// DefaultPublicPaths são prefixos que nunca exigem autenticação.
var DefaultPublicPaths = []string{"/health", "/auth/login", "/auth/register"}

// Identity é o sujeito autenticado de uma requisição.
//
// Requisições para paths públicos não têm identidade (nil), nunca uma Identity vazia.
type Identity struct {
	SubjectID string   `json:"subject"`
	Roles     []string `json:"roles"`
}

func (id Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// IdentityValidator decide quem é o chamador e se ele pode acessar um recurso.
type IdentityValidator interface {
	// ValidateRequest retorna (nil, nil) para paths públicos.
	ValidateRequest(path, token string) (*Identity, error)
	Authorize(id Identity, requiredRole string) error
}

// TokenVerifier é uma fonte secundária de identidades, consultada quando o
// token não está no mapa estático. Deve retornar ErrInvalidToken ou ErrExpiredToken.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}
