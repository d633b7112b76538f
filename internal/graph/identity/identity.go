// Package identity mints and decodes the external uid carried by every vertex
// and edge, independent of the backend-native identifier.
package identity

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Reserved property keys written by adapters that store identity and
// timestamps as properties. They are stripped from returned property maps.
const (
	UIDProperty       = "uid"
	CreatedAtProperty = "created_at"
	UpdatedAtProperty = "updated_at"
)

// Placeholder identity for elements that failed conversion
const (
	PlaceholderVertexUID   = "unknown_vertex"
	PlaceholderEdgeUID     = "unknown_edge"
	PlaceholderVertexLabel = "Vertex"
	PlaceholderEdgeLabel   = "Edge"
)

// NewUID mints a time-ordered random uid (UUIDv7). It falls back to a v4 uuid
// if the clock source fails.
func NewUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// IsReserved reports whether key is one of the identity/timestamp keys
func IsReserved(key string) bool {
	switch key {
	case UIDProperty, CreatedAtProperty, UpdatedAtProperty:
		return true
	}
	return false
}

// SplitReserved separates identity and timestamp values from user
// properties. The input map is not modified.
func SplitReserved(props map[string]any) (user map[string]any, uid string, created, updated int64) {
	user = make(map[string]any, len(props))
	for k, v := range props {
		switch k {
		case UIDProperty:
			uid = fmt.Sprint(v)
		case CreatedAtProperty:
			created = toMillis(v)
		case UpdatedAtProperty:
			updated = toMillis(v)
		default:
			user[k] = v
		}
	}
	return user, uid, created, updated
}

func toMillis(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	}
	return 0
}

// EdgeKey identifies an edge on backends that key edges by their endpoints
// rather than by a single id. The composite uid derived from it changes if any
// component changes; update and delete re-derive the key from the uid.
type EdgeKey struct {
	Source string
	Label  string
	Target string
	Rank   int64
}

const compositeSep = "|"

// CompositeEdgeUID encodes an edge key as source|label|target, appending
// |rank only when the rank is non-zero. Components are query-escaped so the
// separator never appears inside them.
func CompositeEdgeUID(k EdgeKey) string {
	parts := []string{url.QueryEscape(k.Source), url.QueryEscape(k.Label), url.QueryEscape(k.Target)}
	if k.Rank != 0 {
		parts = append(parts, strconv.FormatInt(k.Rank, 10))
	}
	return strings.Join(parts, compositeSep)
}

// ParseCompositeEdgeUID is the inverse of CompositeEdgeUID
func ParseCompositeEdgeUID(uid string) (EdgeKey, error) {
	parts := strings.Split(uid, compositeSep)
	if len(parts) != 3 && len(parts) != 4 {
		return EdgeKey{}, fmt.Errorf("malformed edge uid %q: want source|label|target[|rank]", uid)
	}
	var k EdgeKey
	var err error
	dst := []*string{&k.Source, &k.Label, &k.Target}
	for i, p := range dst {
		if *p, err = url.QueryUnescape(parts[i]); err != nil {
			return EdgeKey{}, fmt.Errorf("malformed edge uid %q: %w", uid, err)
		}
		if *p == "" {
			return EdgeKey{}, fmt.Errorf("malformed edge uid %q: empty component", uid)
		}
	}
	if len(parts) == 4 {
		if k.Rank, err = strconv.ParseInt(parts[3], 10, 64); err != nil {
			return EdgeKey{}, fmt.Errorf("malformed edge uid %q: bad rank: %w", uid, err)
		}
	}
	return k, nil
}

// PlaceholderUID builds the uid of the n-th placeholder of a result
func PlaceholderUID(prefix string, n int) string {
	return prefix + "_" + strconv.Itoa(n)
}

// IsPlaceholderUID reports whether uid was produced by PlaceholderUID
func IsPlaceholderUID(uid string) bool {
	return strings.HasPrefix(uid, PlaceholderVertexUID+"_") || strings.HasPrefix(uid, PlaceholderEdgeUID+"_")
}
