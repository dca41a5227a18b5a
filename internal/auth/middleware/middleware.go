package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-coderunner/internal/rbac"
	"github.com/mind-engage/mindengage-coderunner/pkg/logger"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

var roles = rbac.NewChecker(nil)

type AuthService struct {
	hmac []byte

	adminUser     string
	adminPassHash []byte
	devLogins     bool
}

type Option func(*AuthService)

// WithAdmin enables the bcrypt-checked admin account.
func WithAdmin(user, bcryptHash string) Option {
	return func(a *AuthService) { a.adminUser, a.adminPassHash = user, []byte(bcryptHash) }
}

// WithDevLogins accepts username==password logins as teacher or student.
func WithDevLogins(on bool) Option { return func(a *AuthService) { a.devLogins = on } }

func NewAuthService(secret string, opts ...Option) *AuthService {
	a := &AuthService{hmac: []byte(secret)}
	for _, o := range opts {
		o(a)
	}
	return a
}

type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"` // "admin", "teacher" or "student"
	jwt.RegisteredClaims
}

func (a *AuthService) IssueJWT(sub, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Sub:  sub,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "coderunner",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(8 * time.Hour)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

func (a *AuthService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

// Authenticate returns the role of a local account.
func (a *AuthService) Authenticate(username, password, role string) (string, error) {
	if a.adminUser != "" && username == a.adminUser {
		if bcrypt.CompareHashAndPassword(a.adminPassHash, []byte(password)) != nil {
			return "", ErrInvalidCredentials
		}
		return rbac.RoleAdmin, nil
	}
	if a.devLogins && username != "" && username == password && (role == rbac.RoleTeacher || role == rbac.RoleStudent) {
		return role, nil
	}
	return "", ErrInvalidCredentials
}

// POST /auth/login  { "username": "...", "password": "...", "role": "teacher|student" }
func LoginHandler(a *AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		role, err := a.Authenticate(req.Username, req.Password, req.Role)
		if err != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		tok, err := a.IssueJWT(req.Username, role)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok, "role": role})
	}
}

// JWTMiddleware authenticates the bearer token and puts its subject and
// role into the request context.
func JWTMiddleware(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			c, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			if !roles.Known(c.Role) {
				http.Error(w, "unknown role", http.StatusForbidden)
				return
			}
			ctx := WithPrincipal(r.Context(), Principal{Subject: c.Sub, Role: c.Role})
			ctx = rbac.WithRole(ctx, c.Role)
			ctx = logger.WithSubject(ctx, c.Sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
