package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"formrunner/internal/model"
)

var ErrInvalidToken = errors.New("invalid or expired session token")

// SessionTokenService issues and validates the lightweight JWTs that bind
// the form UI's requests to one form session.
type SessionTokenService struct {
	secret []byte
}

func NewSessionTokenService(secret string) *SessionTokenService {
	return &SessionTokenService{
		secret: []byte(secret),
	}
}

// Issue creates a token for a newly opened form session
func (s *SessionTokenService) Issue(quizID int64) (string, error) {
	sessionID := "fs_" + uuid.New().String()[:8]

	claims := &model.SessionClaims{
		QuizID:    quizID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses a session token and returns its claims
func (s *SessionTokenService) Validate(tokenString string) (*model.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
