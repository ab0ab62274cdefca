package server

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opst/somigrate/pkg/conn/es"
	xe "github.com/opst/somigrate/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("server config: invalid")

const DefaultPort = "8080"

type Elasticsearch struct {
	// Addresses are URLs of Elasticsearch nodes.
	Addresses []string
	Username  string
	Password  string
	APIKey    string

	// MaxRetries and RetryInterval are passed to es.Config as they are.
	MaxRetries    int
	RetryInterval time.Duration
}

func (e *Elasticsearch) UnmarshalYAML(node *yaml.Node) error {
	raw := struct {
		Addresses     []string `yaml:"addresses"`
		Username      string   `yaml:"username,omitempty"`
		Password      string   `yaml:"password,omitempty"`
		APIKey        string   `yaml:"apiKey,omitempty"`
		MaxRetries    int      `yaml:"maxRetries,omitempty"`
		RetryInterval string   `yaml:"retryInterval,omitempty"`
	}{}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	if len(raw.Addresses) == 0 {
		return fmt.Errorf("%w: elasticsearch.addresses is empty", ErrInvalidConfig)
	}
	for _, a := range raw.Addresses {
		u, err := url.Parse(a)
		if err != nil || !u.IsAbs() || u.Hostname() == "" {
			return fmt.Errorf("%w: elasticsearch.addresses: not an absolute URL: %s", ErrInvalidConfig, a)
		}
	}
	if raw.APIKey != "" && (raw.Username != "" || raw.Password != "") {
		return fmt.Errorf("%w: elasticsearch: apiKey and username/password are exclusive", ErrInvalidConfig)
	}

	var interval time.Duration
	if raw.RetryInterval != "" {
		d, err := time.ParseDuration(raw.RetryInterval)
		if err != nil {
			return fmt.Errorf("%w: elasticsearch.retryInterval: %w", ErrInvalidConfig, err)
		}
		interval = d
	}

	*e = Elasticsearch{
		Addresses:     raw.Addresses,
		Username:      raw.Username,
		Password:      raw.Password,
		APIKey:        raw.APIKey,
		MaxRetries:    raw.MaxRetries,
		RetryInterval: interval,
	}
	return nil
}

// Conn returns connection config.
func (e Elasticsearch) Conn() es.Config {
	return es.Config{
		Addresses:     e.Addresses,
		Username:      e.Username,
		Password:      e.Password,
		APIKey:        e.APIKey,
		MaxRetries:    e.MaxRetries,
		RetryInterval: e.RetryInterval,
	}
}

type Auth struct {
	// SigningKey is the key to sign and verify tokens. It is never empty.
	SigningKey []byte
}

// DefaultDriftTimeout bounds each round of drift checks when no timeout is configured.
const DefaultDriftTimeout = 30 * time.Second

type Drift struct {
	// Interval between drift checks. Zero disables drift checks.
	Interval time.Duration

	// Timeout of each check.
	Timeout time.Duration
}

func (d *Drift) UnmarshalYAML(node *yaml.Node) error {
	raw := struct {
		Interval string `yaml:"interval,omitempty"`
		Timeout  string `yaml:"timeout,omitempty"`
	}{}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	parse := func(name, v string) (time.Duration, error) {
		if v == "" {
			return 0, nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%w: drift.%s: %w", ErrInvalidConfig, name, err)
		}
		if d < 0 {
			return 0, fmt.Errorf("%w: drift.%s: negative duration", ErrInvalidConfig, name)
		}
		return d, nil
	}

	interval, err := parse("interval", raw.Interval)
	if err != nil {
		return err
	}
	timeout, err := parse("timeout", raw.Timeout)
	if err != nil {
		return err
	}
	if timeout == 0 {
		timeout = DefaultDriftTimeout
	}
	*d = Drift{Interval: interval, Timeout: timeout}
	return nil
}

// Enabled reports whether drift checks should run.
func (d Drift) Enabled() bool {
	return 0 < d.Interval
}

type Config struct {
	Port string

	// Registry is the path to the type registry file.
	Registry string

	Elasticsearch Elasticsearch

	Auth Auth

	Drift Drift
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	raw := struct {
		Port          string         `yaml:"port,omitempty"`
		Registry      string         `yaml:"registry"`
		Elasticsearch *Elasticsearch `yaml:"elasticsearch"`
		Auth          *struct {
			SigningKey     string `yaml:"signingKey,omitempty"`
			SigningKeyFile string `yaml:"signingKeyFile,omitempty"`
		} `yaml:"auth"`
		Drift *Drift `yaml:"drift,omitempty"`
	}{}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	if raw.Port == "" {
		raw.Port = DefaultPort
	}
	if raw.Registry == "" {
		return fmt.Errorf("%w: registry is empty", ErrInvalidConfig)
	}
	if raw.Elasticsearch == nil {
		return fmt.Errorf("%w: elasticsearch is missing", ErrInvalidConfig)
	}
	if raw.Auth == nil {
		return fmt.Errorf("%w: auth is missing", ErrInvalidConfig)
	}

	auth := Auth{}
	switch a := raw.Auth; {
	case a.SigningKey != "" && a.SigningKeyFile != "":
		return fmt.Errorf("%w: auth.signingKey and auth.signingKeyFile are exclusive", ErrInvalidConfig)
	case a.SigningKey != "":
		auth.SigningKey = []byte(a.SigningKey)
	case a.SigningKeyFile != "":
		key, err := os.ReadFile(a.SigningKeyFile)
		if err != nil {
			return xe.WrapWithNote(a.SigningKeyFile, err)
		}
		auth.SigningKey = []byte(strings.TrimSpace(string(key)))
	}
	if len(auth.SigningKey) == 0 {
		return fmt.Errorf("%w: auth: signing key is empty", ErrInvalidConfig)
	}

	drift := Drift{Timeout: DefaultDriftTimeout}
	if raw.Drift != nil {
		drift = *raw.Drift
	}

	*c = Config{
		Port:          raw.Port,
		Registry:      raw.Registry,
		Elasticsearch: *raw.Elasticsearch,
		Auth:          auth,
		Drift:         drift,
	}
	return nil
}

// Load loads configuration from the file.
//
// Relative paths in the file are resolved from the directory of the file.
func Load(file string) (Config, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return Config{}, xe.Wrap(err)
	}

	// signingKeyFile is read while decoding. Paths should be resolved before that.
	node := yaml.Node{}
	if err := yaml.Unmarshal(content, &node); err != nil {
		return Config{}, xe.WrapWithNote(file, err)
	}
	if node.Kind == 0 {
		return Config{}, fmt.Errorf("%w: %s is empty", ErrInvalidConfig, file)
	}
	base := filepath.Dir(file)
	resolvePaths(&node, base)

	cfg := Config{}
	if err := node.Decode(&cfg); err != nil {
		return Config{}, xe.WrapWithNote(file, err)
	}
	return cfg, nil
}

// resolvePaths rewrites relative `registry` and `auth.signingKeyFile` in the document.
func resolvePaths(doc *yaml.Node, base string) {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		k, v := doc.Content[i], doc.Content[i+1]
		switch {
		case k.Value == "registry" && v.Kind == yaml.ScalarNode:
			v.Value = resolve(base, v.Value)
		case k.Value == "auth" && v.Kind == yaml.MappingNode:
			for j := 0; j+1 < len(v.Content); j += 2 {
				if v.Content[j].Value == "signingKeyFile" {
					v.Content[j+1].Value = resolve(base, v.Content[j+1].Value)
				}
			}
		}
	}
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
