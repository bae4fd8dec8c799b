package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/Prophet73/ai-chat-test/internal/config"
	"github.com/Prophet73/ai-chat-test/internal/dto"
)

type IAuthService interface {
	GetLoginURL() (string, error)
	HandleCallback(ctx context.Context, code string) (*dto.LoginResponse, error)
	DevLogin() (*dto.LoginResponse, error)
	DevModeEnabled() bool
}

// authService authenticates inspectors against the corporate OAuth
// hub and issues this service's own JWTs for subsequent requests.
type authService struct {
	hubConf   *oauth2.Config
	jwtSecret string
	devMode   bool
	hubURL    string
}

func NewAuthService(cfg *config.Config) IAuthService {
	conf := &oauth2.Config{
		ClientID:     cfg.Auth.HubClientID,
		ClientSecret: cfg.Auth.HubClientSecret,
		RedirectURL:  cfg.App.BaseURL + "/api/auth/callback",
		Scopes:       []string{"profile"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.Auth.HubBaseURL + "/oauth/authorize",
			TokenURL: cfg.Auth.HubBaseURL + "/oauth/token",
		},
	}

	return &authService{
		hubConf:   conf,
		jwtSecret: cfg.Auth.JWTSecret,
		devMode:   cfg.App.DevMode,
		hubURL:    cfg.Auth.HubBaseURL,
	}
}

func (s *authService) DevModeEnabled() bool {
	return s.devMode
}

func (s *authService) GetLoginURL() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.URLEncoding.EncodeToString(b)
	return s.hubConf.AuthCodeURL(state), nil
}

// DevLogin short-circuits the hub entirely so the service can run on a
// workstation with no network access to it.
func (s *authService) DevLogin() (*dto.LoginResponse, error) {
	if !s.devMode {
		return nil, fmt.Errorf("dev login is disabled")
	}
	return s.issueToken("dev", "Разработчик")
}

func (s *authService) HandleCallback(ctx context.Context, code string) (*dto.LoginResponse, error) {
	token, err := s.hubConf.Exchange(ctx, code)
	if err != nil {
		log.Printf("[AUTH] Code exchange failed: %v", err)
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.hubURL+"/oauth/userinfo", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("[AUTH] Userinfo request failed: %v", err)
		return nil, fmt.Errorf("failed getting user info: %w", err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed reading userinfo response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var hubUser struct {
		Username string `json:"username"`
		FullName string `json:"full_name"`
	}
	if err := json.Unmarshal(content, &hubUser); err != nil {
		return nil, fmt.Errorf("failed to parse userinfo: %w", err)
	}
	if hubUser.Username == "" {
		return nil, fmt.Errorf("userinfo response carried no username")
	}

	log.Printf("[AUTH] Hub login for %s", hubUser.Username)
	return s.issueToken(hubUser.Username, hubUser.FullName)
}

func (s *authService) issueToken(username, fullName string) (*dto.LoginResponse, error) {
	claims := jwt.MapClaims{
		"sub":       username,
		"full_name": fullName,
		"exp":       time.Now().Add(24 * time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		AccessToken: signed,
		User:        dto.UserDTO{Username: username, FullName: fullName},
	}, nil
}
