package auth

import "time"

// Runner is an account holder. The profile defaults seed new generation
// requests so returning runners do not retype their usual preferences.
type Runner struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"display_name"`
	PasswordHash     string    `json:"-"`
	DefaultPace      float64   `json:"default_pace_min_per_km"`
	PreferredTerrain string    `json:"preferred_terrain"`
	DefaultDistance  float64   `json:"default_distance_km"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type RegisterRequest struct {
	Email            string  `json:"email"`
	DisplayName      string  `json:"display_name"`
	Password         string  `json:"password"`
	DefaultPace      float64 `json:"default_pace_min_per_km"`
	PreferredTerrain string  `json:"preferred_terrain"`
	DefaultDistance  float64 `json:"default_distance_km"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type ProfileUpdate struct {
	DefaultPace      float64 `json:"default_pace_min_per_km"`
	PreferredTerrain string  `json:"preferred_terrain"`
	DefaultDistance  float64 `json:"default_distance_km"`
}
