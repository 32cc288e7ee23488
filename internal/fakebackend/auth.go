package fakebackend

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/fastygo/places/domain"
)

const minPasswordLength = 6

type account struct {
	user         domain.User
	passwordHash []byte
}

type credentialsRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type updateUserRequest struct {
	Data map[string]any `json:"data"`
}

var errInvalidToken = errors.New("invalid JWT")

// CreateUser registers an account directly, bypassing the HTTP API.
func (s *Server) CreateUser(email, password string, metadata map[string]any) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createAccountLocked(email, hash, metadata)
}

func (s *Server) createAccountLocked(email string, hash []byte, metadata map[string]any) (*domain.User, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if _, exists := s.emails[key]; exists {
		return nil, errors.New("user already registered")
	}
	now := s.now().UTC().Format(time.RFC3339Nano)
	meta := make(map[string]any, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	acc := &account{
		user: domain.User{
			ID:           uuid.NewString(),
			Email:        key,
			Role:         "authenticated",
			UserMetadata: meta,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		passwordHash: hash,
	}
	s.accounts[acc.user.ID] = acc
	s.emails[key] = acc.user.ID
	return acc.user.Clone(), nil
}

// MintSession issues a session for an existing user with the given access
// token expiry. The refresh token is valid until used.
func (s *Server) MintSession(email string, expiresAt time.Time) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, errors.New("unknown user")
	}
	return s.issueSessionLocked(s.accounts[id], expiresAt)
}

// RevokeRefreshTokens invalidates every refresh token of the user.
func (s *Server) RevokeRefreshTokens(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokeLocked(userID)
}

// Recoveries returns the emails password recovery was requested for.
func (s *Server) Recoveries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.recoveries...)
}

// User returns the stored account for id.
func (s *Server) User(id string) (*domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, false
	}
	return acc.user.Clone(), true
}

func (s *Server) revokeLocked(userID string) {
	for token, owner := range s.refreshTokens {
		if owner == userID {
			delete(s.refreshTokens, token)
		}
	}
}

func (s *Server) issueSessionLocked(acc *account, expiresAt time.Time) (*domain.Session, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":        acc.user.ID,
		"email":      acc.user.Email,
		"role":       "authenticated",
		"aud":        "authenticated",
		"iat":        now.Unix(),
		"exp":        expiresAt.Unix(),
		"session_id": uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, err
	}
	refresh := strings.ReplaceAll(uuid.NewString(), "-", "")
	s.refreshTokens[refresh] = acc.user.ID
	return &domain.Session{
		AccessToken:  signed,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(expiresAt.Sub(now).Seconds()),
		ExpiresAt:    expiresAt.Unix(),
		User:         acc.user.Clone(),
	}, nil
}

// authenticate resolves the bearer token to an account. The anon key yields
// a nil account and no error.
func (s *Server) authenticate(ctx *fasthttp.RequestCtx) (*account, error) {
	token := bearerToken(ctx)
	if token == "" || token == s.cfg.AnonKey {
		return nil, nil
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}); err != nil {
		return nil, errInvalidToken
	}
	exp, ok := claims["exp"].(float64)
	if !ok || int64(exp) <= s.now().Unix() {
		return nil, errors.New("JWT expired")
	}
	sub, _ := claims["sub"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[sub]
	if !ok {
		return nil, errors.New("user from sub claim in JWT does not exist")
	}
	return acc, nil
}

func (s *Server) checkAPIKey(ctx *fasthttp.RequestCtx) bool {
	return string(ctx.Request.Header.Peek("apikey")) == s.cfg.AnonKey
}

func bearerToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}

func (s *Server) signUp(ctx *fasthttp.RequestCtx) {
	if !s.checkAPIKey(ctx) {
		respondAuthError(ctx, fasthttp.StatusUnauthorized, "no_api_key", "Invalid API key")
		return
	}
	var req credentialsRequest
	if !decodeBody(ctx, &req) || req.Email == "" {
		respondAuthError(ctx, fasthttp.StatusBadRequest, "validation_failed", "Signup requires a valid email")
		return
	}
	if len(req.Password) < minPasswordLength {
		respondAuthError(ctx, fasthttp.StatusUnprocessableEntity, "weak_password", "Password should be at least 6 characters.")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		respondAuthError(ctx, fasthttp.StatusInternalServerError, "unexpected_failure", err.Error())
		return
	}

	s.mu.Lock()
	user, err := s.createAccountLocked(req.Email, hash, req.Data)
	s.mu.Unlock()
	if err != nil {
		respondAuthError(ctx, fasthttp.StatusUnprocessableEntity, "user_already_exists", "User already registered")
		return
	}
	respondJSON(ctx, fasthttp.StatusOK, user)
}

func (s *Server) token(ctx *fasthttp.RequestCtx) {
	if !s.checkAPIKey(ctx) {
		respondAuthError(ctx, fasthttp.StatusUnauthorized, "no_api_key", "Invalid API key")
		return
	}
	switch grant := string(ctx.QueryArgs().Peek("grant_type")); grant {
	case "password":
		s.passwordGrant(ctx)
	case "refresh_token":
		s.refreshGrant(ctx)
	default:
		respondAuthError(ctx, fasthttp.StatusBadRequest, "validation_failed", "unsupported_grant_type")
	}
}

func (s *Server) passwordGrant(ctx *fasthttp.RequestCtx) {
	var req credentialsRequest
	if !decodeBody(ctx, &req) {
		respondGrantError(ctx, "Invalid login credentials")
		return
	}

	s.mu.Lock()
	id, ok := s.emails[strings.ToLower(strings.TrimSpace(req.Email))]
	acc := s.accounts[id]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(req.Password)) != nil {
		respondGrantError(ctx, "Invalid login credentials")
		return
	}

	s.mu.Lock()
	session, err := s.issueSessionLocked(acc, s.now().Add(s.cfg.TokenTTL))
	s.mu.Unlock()
	if err != nil {
		respondAuthError(ctx, fasthttp.StatusInternalServerError, "unexpected_failure", err.Error())
		return
	}
	respondJSON(ctx, fasthttp.StatusOK, session)
}

func (s *Server) refreshGrant(ctx *fasthttp.RequestCtx) {
	var req refreshRequest
	if !decodeBody(ctx, &req) || req.RefreshToken == "" {
		respondGrantError(ctx, "Refresh Token Not Found")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.refreshTokens[req.RefreshToken]
	if !ok {
		respondGrantError(ctx, "Invalid Refresh Token: Refresh Token Not Found")
		return
	}
	delete(s.refreshTokens, req.RefreshToken)
	session, err := s.issueSessionLocked(s.accounts[id], s.now().Add(s.cfg.TokenTTL))
	if err != nil {
		respondAuthError(ctx, fasthttp.StatusInternalServerError, "unexpected_failure", err.Error())
		return
	}
	respondJSON(ctx, fasthttp.StatusOK, session)
}

func (s *Server) logout(ctx *fasthttp.RequestCtx) {
	acc, err := s.authenticate(ctx)
	if err != nil || acc == nil {
		respondAuthError(ctx, fasthttp.StatusUnauthorized, "bad_jwt", "invalid JWT")
		return
	}
	s.mu.Lock()
	s.revokeLocked(acc.user.ID)
	s.mu.Unlock()
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) recover(ctx *fasthttp.RequestCtx) {
	if !s.checkAPIKey(ctx) {
		respondAuthError(ctx, fasthttp.StatusUnauthorized, "no_api_key", "Invalid API key")
		return
	}
	var req credentialsRequest
	if !decodeBody(ctx, &req) || strings.TrimSpace(req.Email) == "" {
		respondAuthError(ctx, fasthttp.StatusUnprocessableEntity, "validation_failed", "Password recovery requires an email")
		return
	}
	s.mu.Lock()
	s.recoveries = append(s.recoveries, strings.ToLower(req.Email))
	s.mu.Unlock()
	respondJSON(ctx, fasthttp.StatusOK, map[string]any{})
}

func (s *Server) getUser(ctx *fasthttp.RequestCtx) {
	acc, err := s.authenticate(ctx)
	if err != nil || acc == nil {
		respondAuthError(ctx, fasthttp.StatusUnauthorized, "bad_jwt", "invalid JWT: unable to parse or verify signature")
		return
	}
	s.mu.Lock()
	user := acc.user.Clone()
	s.mu.Unlock()
	respondJSON(ctx, fasthttp.StatusOK, user)
}

func (s *Server) updateUser(ctx *fasthttp.RequestCtx) {
	acc, err := s.authenticate(ctx)
	if err != nil || acc == nil {
		respondAuthError(ctx, fasthttp.StatusUnauthorized, "bad_jwt", "invalid JWT: unable to parse or verify signature")
		return
	}
	var req updateUserRequest
	if !decodeBody(ctx, &req) {
		respondAuthError(ctx, fasthttp.StatusBadRequest, "validation_failed", "Could not parse request body as JSON")
		return
	}

	s.mu.Lock()
	if acc.user.UserMetadata == nil {
		acc.user.UserMetadata = make(map[string]any)
	}
	for k, v := range req.Data {
		acc.user.UserMetadata[k] = v
	}
	acc.user.UpdatedAt = s.now().UTC().Format(time.RFC3339Nano)
	user := acc.user.Clone()
	s.mu.Unlock()

	respondJSON(ctx, fasthttp.StatusOK, user)
}
