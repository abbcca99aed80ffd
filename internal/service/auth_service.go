package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in service tokens.
const (
	RoleTerminal = "terminal"
	RoleAdmin    = "admin"
)

// AuthService issues the bearer tokens shop terminals use against the server.
type AuthService interface {
	IssueToken(terminal, rol string, ttl time.Duration) (string, error)
}

type authService struct {
	secret []byte
	now    func() time.Time
}

func NewAuthService(secret string) AuthService {
	return &authService{secret: []byte(secret), now: time.Now}
}

func (s *authService) IssueToken(terminal, rol string, ttl time.Duration) (string, error) {
	terminal = strings.TrimSpace(terminal)
	if terminal == "" {
		return "", errors.New("terminal é obrigatório")
	}
	if rol != RoleTerminal && rol != RoleAdmin {
		return "", errors.New("rol deve ser terminal ou admin")
	}
	if len(s.secret) == 0 {
		return "", errors.New("JWT_SECRET não configurado")
	}
	now := s.now()
	claims := jwt.MapClaims{
		"terminal": terminal,
		"rol":      rol,
		"iat":      now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
