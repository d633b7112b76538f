package model

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/rohankatakam/graphbridge/internal/errors"
)

// BackendKind identifies which graph database product an adapter targets
type BackendKind string

const (
	BackendNeo4j  BackendKind = "neo4j"
	BackendNebula BackendKind = "nebula"
	BackendJanus  BackendKind = "janus"
)

// AllBackends lists every supported kind in registration order
var AllBackends = []BackendKind{BackendNeo4j, BackendNebula, BackendJanus}

// ParseBackendKind accepts the kind names case-insensitively, plus the
// product spellings "nebulagraph" and "janusgraph".
func ParseBackendKind(s string) (BackendKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "neo4j":
		return BackendNeo4j, nil
	case "nebula", "nebulagraph":
		return BackendNebula, nil
	case "janus", "janusgraph":
		return BackendJanus, nil
	}
	return "", errors.ValidationErrorf("unknown backend kind %q", s)
}

// QueryLanguage returns the one native language the backend speaks
func (k BackendKind) QueryLanguage() QueryLanguage {
	switch k {
	case BackendNeo4j:
		return LanguageCypher
	case BackendNebula:
		return LanguageNGQL
	case BackendJanus:
		return LanguageGremlin
	}
	return ""
}

// DefaultPort is the conventional client port of each backend
func (k BackendKind) DefaultPort() int {
	switch k {
	case BackendNeo4j:
		return 7687
	case BackendNebula:
		return 9669
	case BackendJanus:
		return 8182
	}
	return 0
}

// QueryLanguage is a native query-language tag
type QueryLanguage string

const (
	LanguageCypher  QueryLanguage = "cypher"
	LanguageNGQL    QueryLanguage = "ngql"
	LanguageGremlin QueryLanguage = "gremlin"
)

// ParseQueryLanguage normalizes a caller-supplied language tag. "GQL" is
// accepted as NebulaGraph's dialect and "openCypher" as Cypher. Unknown tags
// are returned verbatim so the adapter can reject them by name.
func ParseQueryLanguage(tag string) QueryLanguage {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "cypher", "opencypher":
		return LanguageCypher
	case "ngql", "gql":
		return LanguageNGQL
	case "gremlin":
		return LanguageGremlin
	}
	return QueryLanguage(tag)
}

// ConnectionConfig describes how to reach one backend. It is treated as
// immutable for the duration of a call.
type ConnectionConfig struct {
	Kind     BackendKind       `yaml:"kind" json:"kind"`
	Host     string            `yaml:"host" json:"host"`
	Port     int               `yaml:"port" json:"port"`
	Username string            `yaml:"username" json:"username"`
	Password string            `yaml:"password" json:"-"`
	Database string            `yaml:"database" json:"database,omitempty"`
	Params   map[string]string `yaml:"params" json:"params,omitempty"`
}

// Address returns host:port
func (c ConnectionConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Param returns a storage/backend parameter or the fallback
func (c ConnectionConfig) Param(key, fallback string) string {
	if v, ok := c.Params[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Validate rejects configurations that cannot possibly connect
func (c ConnectionConfig) Validate() error {
	var problems []string
	switch c.Kind {
	case BackendNeo4j, BackendNebula, BackendJanus:
	case "":
		problems = append(problems, "backend kind is required")
	default:
		problems = append(problems, fmt.Sprintf("unknown backend kind %q", c.Kind))
	}
	if strings.TrimSpace(c.Host) == "" {
		problems = append(problems, "host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d is out of range", c.Port))
	}
	if len(problems) > 0 {
		return errors.ConfigErrorf("invalid connection config: %s", strings.Join(problems, "; ")).
			WithContext("kind", string(c.Kind))
	}
	return nil
}

// Equal reports whether two configs address the same backend with the same
// credentials and parameters.
func (c ConnectionConfig) Equal(o ConnectionConfig) bool {
	if c.Kind != o.Kind || c.Host != o.Host || c.Port != o.Port ||
		c.Username != o.Username || c.Password != o.Password || c.Database != o.Database {
		return false
	}
	if len(c.Params) != len(o.Params) {
		return false
	}
	for k, v := range c.Params {
		if o.Params[k] != v {
			return false
		}
	}
	return true
}

// String renders the config without the password
func (c ConnectionConfig) String() string {
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("%s://%s@%s/%s%v", c.Kind, c.Username, c.Address(), c.Database, keys)
}
