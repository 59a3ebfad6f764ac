package providers

import (
	"strings"

	"github.com/ashebanow/secretspec/pkg/provider"
)

// misspellings maps schemes people commonly type to the one they meant.
var misspellings = map[string]string{
	"1password":         "onepassword",
	"op":                "onepassword",
	"bw":                "bitwarden",
	"bitwarden-sm":      "bws",
	"bitwardensm":       "bws",
	"bitwarden-secrets": "bws",
	"keychain":          "keyring",
	"aws":               "awssm",
	"secretsmanager":    "awssm",
	"ssm":               "awsssm",
	"gcp":               "gcsm",
	"gcp.secretmanager": "gcsm",
	"azure":             "azurekv",
	"keyvault":          "azurekv",
	".env":              "dotenv",
}

// unknownScheme builds the error returned for a scheme with no backend.
func unknownScheme(scheme string) error {
	err := provider.ProviderNotFoundError{Scheme: scheme}
	if want, ok := misspellings[strings.ToLower(scheme)]; ok {
		err.Suggestion = "Use '" + want + "' instead"
	}
	return err
}
