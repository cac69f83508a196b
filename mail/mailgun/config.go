package mailgun

import (
	"os"
	"strings"
	"time"
)

// DefaultURL is the Mailgun messages endpoint; %s is replaced with the domain.
const DefaultURL = "https://api.mailgun.net/v3/%s/messages"

// Config contains Mailgun API parameters.
type Config struct {
	URL           string        `envconfig:"MAILGUN_SEND_URL"`
	Domain        string        `envconfig:"MAILGUN_DOMAIN"`
	APIKey        string        `envconfig:"MAILGUN_API_KEY"`
	DefaultSender string        `envconfig:"MAIL_DEFAULT_SENDER"`
	Template      string        `envconfig:"MAILGUN_TEMPLATE"` // Mailgun template name
	Timeout       time.Duration `envconfig:"MAILGUN_TIMEOUT" default:"30s"`
}

// WithDefaults returns c with DefaultURL set when no URL was resolved.
// It is applied after Resolve so keyed lookups can still provide the URL.
func (c Config) WithDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	return c
}

// Complete reports whether the templated route can be used.
func (c Config) Complete() bool {
	return c.URL != "" && c.Domain != "" && c.APIKey != "" && c.Template != ""
}

// Endpoint returns URL with the domain substituted into its placeholder.
func (c Config) Endpoint() string {
	return strings.Replace(c.URL, "%s", c.Domain, 1)
}

// Keys name the configuration entries read by Resolve.
type Keys struct {
	URL           string
	Domain        string
	APIKey        string
	DefaultSender string
	Template      string
}

// DefaultKeys returns the conventional key names.
func DefaultKeys() Keys {
	return Keys{
		URL:           "mailgun send url",
		Domain:        "mailgun domain",
		APIKey:        "mailgun api key",
		DefaultSender: "default sender",
		Template:      "mailgun template",
	}
}

// Source is a keyed configuration store.
type Source interface {
	Lookup(key string) (string, bool)
}

// MapSource is an in-memory Source.
type MapSource map[string]string

// Lookup implements Source.
func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// EnvSource looks keys up in the environment, "mailgun api key" becoming MAILGUN_API_KEY.
type EnvSource struct {
	Prefix string
}

// Lookup implements Source.
func (e EnvSource) Lookup(key string) (string, bool) {
	return os.LookupEnv(e.Prefix + EnvName(key))
}

// EnvName converts a config key to an environment variable name.
func EnvName(key string) string {
	key = strings.TrimSpace(key)
	key = strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(key)
	return strings.ToUpper(key)
}

// Resolve fills every empty field of explicit from src using keys. Explicit values win.
// A nil src leaves explicit as is. Keys left blank are not looked up.
func Resolve(explicit Config, src Source, keys Keys) Config {
	if src == nil {
		return explicit
	}
	lookup := func(current, key string) string {
		if current != "" || key == "" {
			return current
		}
		v, _ := src.Lookup(key)
		return v
	}

	cfg := explicit
	cfg.URL = lookup(cfg.URL, keys.URL)
	cfg.Domain = lookup(cfg.Domain, keys.Domain)
	cfg.APIKey = lookup(cfg.APIKey, keys.APIKey)
	cfg.DefaultSender = lookup(cfg.DefaultSender, keys.DefaultSender)
	cfg.Template = lookup(cfg.Template, keys.Template)
	return cfg
}
