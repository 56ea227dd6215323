package auth

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const serviceName = "tradux"

// Credential services.
const (
	MyMemory = "mymemory"
	Gemini   = "gemini"
	OpenAI   = "openai"
	Ledger   = "ledger"
)

type credential struct {
	account string
	envVar  string
	label   string
}

var credentials = map[string]credential{
	MyMemory: {account: "rapidapi-key", envVar: "TRADUX_RAPIDAPI_KEY", label: "RapidAPI (MyMemory)"},
	Gemini:   {account: "gemini-api-key", envVar: "GEMINI_API_KEY", label: "Gemini"},
	OpenAI:   {account: "openai-api-key", envVar: "OPENAI_API_KEY", label: "OpenAI"},
	Ledger:   {account: "ledger-api-key", envVar: "TRADUX_LEDGER_KEY", label: "Usage ledger"},
}

// Services lists the known credential services.
func Services() []string {
	out := make([]string, 0, len(credentials))
	for s := range credentials {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func lookup(service string) (credential, error) {
	c, ok := credentials[strings.ToLower(strings.TrimSpace(service))]
	if !ok {
		return credential{}, fmt.Errorf("unknown service %q (expected one of %s)", service, strings.Join(Services(), ", "))
	}
	return c, nil
}

// Label returns the human-readable name of service.
func Label(service string) string {
	if c, err := lookup(service); err == nil {
		return c.label
	}
	return service
}

// EnvVar returns the environment variable consulted for service.
func EnvVar(service string) string {
	if c, err := lookup(service); err == nil {
		return c.envVar
	}
	return ""
}

// GetKey retrieves the key for service and reports where it came from.
// If allowEnv is false, environment variables are ignored.
func GetKey(service string, allowEnv bool) (string, string) {
	c, err := lookup(service)
	if err != nil {
		return "", ""
	}

	key, err := keyring.Get(serviceName, c.account)
	if err == nil && strings.TrimSpace(key) != "" {
		return strings.TrimSpace(key), "Keychain"
	}

	if allowEnv {
		if key, ok := GetEnvKey(service); ok {
			return key, "Environment Variable"
		}
	}
	return "", ""
}

// SaveKey saves the key for service to the OS keychain.
func SaveKey(service, key string) error {
	c, err := lookup(service)
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("key is empty")
	}
	return keyring.Set(serviceName, c.account, key)
}

// DeleteKey removes the key for service from the OS keychain.
func DeleteKey(service string) error {
	c, err := lookup(service)
	if err != nil {
		return err
	}
	return keyring.Delete(serviceName, c.account)
}

// GetStatus returns whether a key exists for service in the keychain.
func GetStatus(service string) bool {
	c, err := lookup(service)
	if err != nil {
		return false
	}
	key, err := keyring.Get(serviceName, c.account)
	return err == nil && key != ""
}

// GetEnvKey retrieves the key from the environment only.
func GetEnvKey(service string) (string, bool) {
	c, err := lookup(service)
	if err != nil {
		return "", false
	}
	key := strings.TrimSpace(os.Getenv(c.envVar))
	return key, key != ""
}

// PromptForAPIKey securely prompts the user for their API key.
func PromptForAPIKey(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return strings.TrimSpace(string(bytePassword)), nil
}
