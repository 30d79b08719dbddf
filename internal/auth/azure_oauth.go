package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/hitoshi/roombook/internal/model"
)

const defaultGraphMeURL = "https://graph.microsoft.com/v1.0/me"

// AzureConfig はAzure AD (Microsoft Entra ID) プロバイダーの設定。
type AzureConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
	GraphURL string
}

// Enabled は必要な設定値が揃っているかを返す。
func (c AzureConfig) Enabled() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

// AzureProvider はAzure ADの認可コードフローによる認証を提供する。
type AzureProvider struct {
	oauth    *oauth2.Config
	graphURL string
}

// NewAzureProvider はAzureProviderを生成する。
func NewAzureProvider(cfg AzureConfig) *AzureProvider {
	endpoint := microsoft.AzureADEndpoint(cfg.TenantID)
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	graphURL := cfg.GraphURL
	if graphURL == "" {
		graphURL = defaultGraphMeURL
	}

	return &AzureProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "profile", "email", "User.Read"},
		},
		graphURL: graphURL,
	}
}

// Name はprovider名を返す。
func (p *AzureProvider) Name() string {
	return model.ProviderAzure
}

// GetLoginURL はAzure ADの認可URLを生成する。
func (p *AzureProvider) GetLoginURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("response_mode", "query"))
}

// graphUser はMicrosoft Graph /me のレスポンス。
type graphUser struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、Graphからプロフィールを取得する。
func (p *AzureProvider) ExchangeCode(ctx context.Context, code string) (*ExternalProfile, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	client := p.oauth.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.graphURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read graph response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var me graphUser
	if err := json.Unmarshal(body, &me); err != nil {
		return nil, fmt.Errorf("failed to parse graph response: %w", err)
	}
	if me.ID == "" {
		return nil, fmt.Errorf("empty id in graph response")
	}

	email := me.Mail
	if email == "" {
		email = me.UserPrincipalName
	}
	if email == "" {
		return nil, fmt.Errorf("graph profile has no email")
	}

	return &ExternalProfile{
		Provider: model.ProviderAzure,
		Subject:  me.ID,
		Email:    strings.ToLower(email),
		Name:     me.DisplayName,
	}, nil
}

// compile-time interface check
var _ OAuthProvider = (*AzureProvider)(nil)
