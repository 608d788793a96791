package config

import (
	"fmt"
	"os"
)

// Environment variables consumed by the remote adapter. They are forwarded
// to the spawned MCP server process, never persisted to config.json.
const (
	EnvBaseURL       = "JIRA_BASE_URL"
	EnvEmail         = "JIRA_EMAIL"
	EnvAPIToken      = "JIRA_API_TOKEN"
	EnvPersonalToken = "JIRA_PERSONAL_TOKEN"
)

// Credentials is the recognized credential tuple for the remote tracker.
// Cloud instances use Email+APIToken; self-hosted instances use
// PersonalToken.
type Credentials struct {
	BaseURL       string
	Email         string
	APIToken      string
	PersonalToken string
}

// CredentialsFromEnv reads the credential tuple from the environment.
func CredentialsFromEnv() Credentials {
	return Credentials{
		BaseURL:       os.Getenv(EnvBaseURL),
		Email:         os.Getenv(EnvEmail),
		APIToken:      os.Getenv(EnvAPIToken),
		PersonalToken: os.Getenv(EnvPersonalToken),
	}
}

// Validate fails fast with an actionable message when the tuple is not one
// of the recognized shapes.
func (c Credentials) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("missing %s: set it to your Jira instance URL", EnvBaseURL)
	}
	if c.PersonalToken != "" {
		return nil
	}
	if c.Email != "" && c.APIToken != "" {
		return nil
	}
	if c.Email != "" {
		return fmt.Errorf("missing %s: cloud instances need both %s and %s", EnvAPIToken, EnvEmail, EnvAPIToken)
	}
	return fmt.Errorf("missing credentials: set %s and %s (cloud) or %s (self-hosted)", EnvEmail, EnvAPIToken, EnvPersonalToken)
}

// IsCloud reports whether the tuple targets a cloud instance.
func (c Credentials) IsCloud() bool {
	return c.PersonalToken == ""
}

// Env returns the variables to forward to the MCP server process.
// DNS and proxy variables from the parent environment are forwarded
// separately by the adapter.
func (c Credentials) Env() map[string]string {
	env := map[string]string{EnvBaseURL: c.BaseURL}
	if c.PersonalToken != "" {
		env[EnvPersonalToken] = c.PersonalToken
	} else {
		env[EnvEmail] = c.Email
		env[EnvAPIToken] = c.APIToken
	}
	return env
}
