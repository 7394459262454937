package client

import (
	"context"

	"maba-auth/config"
	"maba-auth/internal/adapter/gateway"
)

// OptionsFromConfig builds controller options from the application config:
// the administrative address, plus a federated authenticator when an OIDC
// client is configured. Leaving OIDC_CLIENT_ID unset disables federated
// sign-in without error.
func OptionsFromConfig(ctx context.Context, cfg *config.Config) (Options, error) {
	opts := Options{AdminEmail: cfg.AdminEmail}

	if cfg.OIDCClientID != "" {
		federated, err := gateway.NewFederatedGateway(ctx, gateway.FederatedConfig{
			IssuerURL:    cfg.OIDCIssuerURL,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
		})
		if err != nil {
			return Options{}, err
		}
		opts.Federated = federated
	}
	return opts, nil
}
