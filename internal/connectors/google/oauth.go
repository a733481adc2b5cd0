// Package google holds the OAuth, rate limiting and retry plumbing shared by
// the Gmail and Calendar connectors.
package google

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"

	"netcrm/internal/config"
)

// Scopes requested when a user connects a Google account.
var Scopes = []string{
	gmail.GmailReadonlyScope,
	calendar.CalendarReadonlyScope,
	"https://www.googleapis.com/auth/userinfo.email",
	"openid",
}

func OAuthConfig(cfg config.Config) (*oauth2.Config, error) {
	if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
		return nil, err
	}
	return &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     googleoauth.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       Scopes,
	}, nil
}

// AuthURL returns the consent page URL. Offline access with a forced prompt
// makes Google issue a refresh token on every exchange.
func AuthURL(cfg config.Config, state string) (string, error) {
	oc, err := OAuthConfig(cfg)
	if err != nil {
		return "", err
	}
	return oc.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

func Exchange(ctx context.Context, cfg config.Config, code string) (*oauth2.Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("authorization code is empty")
	}
	oc, err := OAuthConfig(cfg)
	if err != nil {
		return nil, err
	}
	tok, err := oc.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if tok.RefreshToken == "" {
		return tok, errors.New("google returned no refresh token; revoke access and authorize again")
	}
	return tok, nil
}

// TokenSource builds a refreshing token source from the configured refresh token.
func TokenSource(ctx context.Context, cfg config.Config) (oauth2.TokenSource, error) {
	oc, err := OAuthConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken); err != nil {
		return nil, err
	}
	return oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken}), nil
}
