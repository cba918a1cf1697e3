package auth

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const serviceName = "mangalens"

// Services accepted by this package.
const (
	ServiceGemini = "gemini"
	ServiceOpenAI = "openai"
	ServiceCustom = "custom"
)

// Services lists the providers a key can be stored for.
var Services = []string{ServiceGemini, ServiceOpenAI, ServiceCustom}

func accountFor(service string) string {
	return service + "-api-key"
}

func envVarFor(service string) string {
	switch service {
	case ServiceOpenAI:
		return "OPENAI_API_KEY"
	case ServiceCustom:
		return "MANGALENS_CUSTOM_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

// IsValidService reports whether service names a known provider.
func IsValidService(service string) bool {
	for _, s := range Services {
		if s == service {
			return true
		}
	}
	return false
}

// GetKey retrieves the API key for a provider (gemini, openai or custom).
// If allowEnv is false, environment variables are ignored.
func GetKey(service string, allowEnv bool) (string, string) {
	// 1. Try Keychain
	key, err := keyring.Get(serviceName, accountFor(service))
	if err == nil && key != "" {
		return strings.TrimSpace(key), "Keychain"
	}

	if allowEnv {
		// 2. Try Env Var (optional)
		key = os.Getenv(envVarFor(service))
		if key != "" {
			return strings.TrimSpace(key), "Environment Variable"
		}
	}

	return "", ""
}

// SaveKey saves the key for a provider to the OS Keychain.
func SaveKey(service, key string) error {
	return keyring.Set(serviceName, accountFor(service), strings.TrimSpace(key))
}

// DeleteKey removes the key for a provider from the OS Keychain.
func DeleteKey(service string) error {
	return keyring.Delete(serviceName, accountFor(service))
}

// GetStatus returns whether a key exists for a provider in the keychain.
func GetStatus(service string) bool {
	key, err := keyring.Get(serviceName, accountFor(service))
	return err == nil && key != ""
}

// PromptForAPIKey securely prompts the user for their API key.
func PromptForAPIKey(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println() // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

// GetEnvKey retrieves the key from environment variables only.
func GetEnvKey(service string) (string, bool) {
	key := strings.TrimSpace(os.Getenv(envVarFor(service)))
	if key == "" {
		return "", false
	}
	return key, true
}

// EnvVarName exposes the environment variable consulted for a provider,
// for help text and the env command.
func EnvVarName(service string) string {
	return envVarFor(service)
}
