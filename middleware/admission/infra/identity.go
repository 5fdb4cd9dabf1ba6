package infra

import (
	"fmt"
	"slices"
	"strings"

	"admission-gateway/middleware/admission/domain"
)

const bearerPrefix = "Bearer "

// Validator autentica tokens contra um mapa estático token -> identidade.
//
// Todos os dados são fixados na construção; o Validator é seguro para uso
// concorrente sem lock.
type Validator struct {
	publicPaths []string
	identities  map[string]domain.Identity
	signed      domain.TokenVerifier
}

type ValidatorOption func(*Validator)

// WithPublicPaths substitui domain.DefaultPublicPaths.
func WithPublicPaths(paths ...string) ValidatorOption {
	return func(v *Validator) { v.publicPaths = slices.Clone(paths) }
}

// WithTokenVerifier adiciona uma fonte secundária (ex: SignedTokens),
// consultada apenas quando o token não está no mapa estático.
func WithTokenVerifier(tv domain.TokenVerifier) ValidatorOption {
	return func(v *Validator) { v.signed = tv }
}

func NewValidator(identities map[string]domain.Identity, opts ...ValidatorOption) (*Validator, error) {
	v := &Validator{
		publicPaths: slices.Clone(domain.DefaultPublicPaths),
		identities:  make(map[string]domain.Identity, len(identities)),
	}
	for token, id := range identities {
		if token == "" {
			return nil, fmt.Errorf("identity %q: empty token", id.SubjectID)
		}
		if len(id.Roles) == 0 {
			return nil, fmt.Errorf("identity %q: at least one role is required", id.SubjectID)
		}
		v.identities[token] = domain.Identity{SubjectID: id.SubjectID, Roles: slices.Clone(id.Roles)}
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func (v *Validator) PublicPaths() []string { return slices.Clone(v.publicPaths) }

func (v *Validator) IsPublic(path string) bool {
	for _, p := range v.publicPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Authenticate aceita "TOKEN" e "Bearer TOKEN" de forma idêntica.
// O prefixo é sensível a maiúsculas: "bearer TOKEN" é procurado literalmente.
func (v *Validator) Authenticate(token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, domain.ErrMissingToken
	}
	clean := strings.TrimPrefix(token, bearerPrefix)

	if id, ok := v.identities[clean]; ok {
		return domain.Identity{SubjectID: id.SubjectID, Roles: slices.Clone(id.Roles)}, nil
	}
	if v.signed != nil && clean != "" {
		return v.signed.Verify(clean)
	}
	return domain.Identity{}, domain.ErrInvalidToken
}

// Authorize implementa domain.IdentityValidator. "admin" libera qualquer papel.
func (v *Validator) Authorize(id domain.Identity, requiredRole string) error {
	if id.HasRole(requiredRole) || id.HasRole(domain.AdminRole) {
		return nil
	}
	return fmt.Errorf("subject %q lacks role %q: %w", id.SubjectID, requiredRole, domain.ErrInsufficientPermissions)
}

// ValidateRequest implementa domain.IdentityValidator.
// Paths públicos nunca autenticam, mesmo quando um token (válido ou não) é enviado.
func (v *Validator) ValidateRequest(path, token string) (*domain.Identity, error) {
	if v.IsPublic(path) {
		return nil, nil
	}
	id, err := v.Authenticate(token)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
