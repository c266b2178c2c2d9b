package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"formrunner/internal/service"
)

type contextKey string

const (
	QuizIDKey    contextKey = "quizId"
	SessionIDKey contextKey = "sessionId"
)

// SessionMiddleware validates form session JWTs
type SessionMiddleware struct {
	tokens *service.SessionTokenService
}

// NewSessionMiddleware creates a new session middleware
func NewSessionMiddleware(tokens *service.SessionTokenService) *SessionMiddleware {
	return &SessionMiddleware{tokens: tokens}
}

// RequireSession validates the session token from the Authorization header
// (or `token` query param for WebSocket upgrades) and checks that it was
// issued for the quiz in the path.
func (m *SessionMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			http.Error(w, `{"error":"missing session token"}`, http.StatusUnauthorized)
			return
		}

		claims, err := m.tokens.Validate(token)
		if err != nil {
			http.Error(w, `{"error":"invalid or expired session token"}`, http.StatusUnauthorized)
			return
		}

		if quizVar, ok := mux.Vars(r)["quizId"]; ok {
			quizID, err := strconv.ParseInt(quizVar, 10, 64)
			if err != nil || quizID != claims.QuizID {
				http.Error(w, `{"error":"token not valid for this quiz"}`, http.StatusForbidden)
				return
			}
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, QuizIDKey, claims.QuizID)
		ctx = context.WithValue(ctx, SessionIDKey, claims.SessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetQuizID extracts the quiz id from context
func GetQuizID(ctx context.Context) int64 {
	if v := ctx.Value(QuizIDKey); v != nil {
		return v.(int64)
	}
	return 0
}

// GetSessionID extracts the form session id from context
func GetSessionID(ctx context.Context) string {
	if v := ctx.Value(SessionIDKey); v != nil {
		return v.(string)
	}
	return ""
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
