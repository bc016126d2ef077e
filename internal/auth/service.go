// Package auth manages runner accounts and token issuance.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/einarnot/runningroute/internal/db"
	"github.com/einarnot/runningroute/internal/route"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	secret []byte
	db     db.Querier
}

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func NewService(secret string, querier db.Querier) *Service {
	return &Service{
		secret: []byte(secret),
		db:     querier,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (Runner, TokenResponse, error) {
	if req.Email == "" || req.DisplayName == "" || req.Password == "" {
		return Runner{}, TokenResponse{}, errors.New("email, display_name, password required")
	}
	if err := validateProfileDefaults(req.DefaultPace, req.PreferredTerrain, req.DefaultDistance); err != nil {
		return Runner{}, TokenResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Runner{}, TokenResponse{}, err
	}

	runner := Runner{
		ID:               uuid.NewString(),
		Email:            req.Email,
		DisplayName:      req.DisplayName,
		PasswordHash:     string(hash),
		DefaultPace:      req.DefaultPace,
		PreferredTerrain: req.PreferredTerrain,
		DefaultDistance:  req.DefaultDistance,
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO runners (id, email, display_name, password_hash, default_pace, preferred_terrain, default_distance)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at
	`, runner.ID, runner.Email, runner.DisplayName, runner.PasswordHash,
		runner.DefaultPace, runner.PreferredTerrain, runner.DefaultDistance)
	if err := row.Scan(&runner.CreatedAt, &runner.UpdatedAt); err != nil {
		return Runner{}, TokenResponse{}, err
	}

	tokens, err := s.GenerateTokens(ctx, runner.ID)
	if err != nil {
		return Runner{}, TokenResponse{}, err
	}
	return runner, tokens, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (Runner, TokenResponse, error) {
	runner, err := s.runnerByEmail(ctx, req.Email)
	if err != nil {
		return Runner{}, TokenResponse{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(runner.PasswordHash), []byte(req.Password)); err != nil {
		return Runner{}, TokenResponse{}, ErrInvalidCredentials
	}

	tokens, err := s.GenerateTokens(ctx, runner.ID)
	if err != nil {
		return Runner{}, TokenResponse{}, err
	}
	return runner, tokens, nil
}

// Profile returns the stored runner without credential fields populated by
// the caller.
func (s *Service) Profile(ctx context.Context, runnerID string) (Runner, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, display_name, default_pace, preferred_terrain, default_distance, created_at, updated_at
		FROM runners WHERE id = $1
	`, runnerID)

	var runner Runner
	err := row.Scan(&runner.ID, &runner.Email, &runner.DisplayName,
		&runner.DefaultPace, &runner.PreferredTerrain, &runner.DefaultDistance,
		&runner.CreatedAt, &runner.UpdatedAt)
	if err != nil {
		return Runner{}, err
	}
	return runner, nil
}

func (s *Service) UpdateProfile(ctx context.Context, runnerID string, update ProfileUpdate) (Runner, error) {
	if err := validateProfileDefaults(update.DefaultPace, update.PreferredTerrain, update.DefaultDistance); err != nil {
		return Runner{}, err
	}

	_, err := s.db.Exec(ctx, `
		UPDATE runners
		SET default_pace = $1, preferred_terrain = $2, default_distance = $3, updated_at = now()
		WHERE id = $4
	`, update.DefaultPace, update.PreferredTerrain, update.DefaultDistance, runnerID)
	if err != nil {
		return Runner{}, err
	}
	return s.Profile(ctx, runnerID)
}

// Prefill fills unset generation preference fields from the runner's stored
// defaults. Explicit values in the request always win.
func Prefill(prefs route.Preferences, runner Runner) route.Preferences {
	if prefs.PaceMinPerKm == 0 && runner.DefaultPace > 0 {
		prefs.PaceMinPerKm = runner.DefaultPace
	}
	if prefs.Terrain == "" && runner.PreferredTerrain != "" {
		prefs.Terrain = runner.PreferredTerrain
	}
	if prefs.DistanceKm == 0 && runner.DefaultDistance > 0 {
		prefs.DistanceKm = runner.DefaultDistance
	}
	return prefs
}

func validateProfileDefaults(pace float64, terrain string, distance float64) error {
	if pace != 0 && (pace < 3.0 || pace > 8.0) {
		return errors.New("default pace out of range")
	}
	if terrain != "" && terrain != route.TerrainFlat && terrain != route.TerrainHilly {
		return errors.New("preferred terrain must be flat or hilly")
	}
	if distance != 0 && (distance < 0.5 || distance > 50) {
		return errors.New("default distance out of range")
	}
	return nil
}

func (s *Service) runnerByEmail(ctx context.Context, email string) (Runner, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, default_pace, preferred_terrain, default_distance, created_at, updated_at
		FROM runners WHERE email = $1
	`, email)

	var runner Runner
	err := row.Scan(&runner.ID, &runner.Email, &runner.DisplayName, &runner.PasswordHash,
		&runner.DefaultPace, &runner.PreferredTerrain, &runner.DefaultDistance,
		&runner.CreatedAt, &runner.UpdatedAt)
	if err != nil {
		return Runner{}, err
	}
	return runner, nil
}

func (s *Service) GenerateTokens(ctx context.Context, runnerID string) (TokenResponse, error) {
	access, err := s.signToken(runnerID, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, err := s.signToken(runnerID, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := s.saveRefreshToken(ctx, refresh, runnerID, refreshTokenTTL); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}

	runnerID, expiresAt, err := s.lookupRefreshToken(ctx, token)
	if err != nil || runnerID != claims.UserID || time.Now().After(expiresAt) {
		return "", errors.New("refresh token invalid")
	}
	return claims.UserID, nil
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *Service) signToken(runnerID string, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: runnerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}

func (s *Service) saveRefreshToken(ctx context.Context, token, runnerID string, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, runner_id, token, expires_at)
		VALUES ($1,$2,$3,$4)
	`, uuid.NewString(), runnerID, token, time.Now().Add(ttl))
	return err
}

func (s *Service) lookupRefreshToken(ctx context.Context, token string) (string, time.Time, error) {
	row := s.db.QueryRow(ctx, `
		SELECT runner_id, expires_at
		FROM refresh_tokens
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	var runnerID string
	var expiresAt time.Time
	if err := row.Scan(&runnerID, &expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return runnerID, expiresAt, nil
}
