package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindsAreDistinguishableWithoutMessages(t *testing.T) {
	cause := fmt.Errorf("bolt: connection refused")
	tests := []struct {
		name     string
		err      *Error
		sentinel *Error
		kind     ErrorType
	}{
		{"connection", ConnectionFailure(cause, "connect to neo4j"), ErrConnectionFailure, ErrorTypeConnectionFailure},
		{"not connected", NotConnected(cause, "lazy connect"), ErrNotConnected, ErrorTypeNotConnected},
		{"vertex", VertexNotFound("v1"), ErrVertexNotFound, ErrorTypeVertexNotFound},
		{"edge", EdgeNotFound("e1"), ErrEdgeNotFound, ErrorTypeEdgeNotFound},
		{"language", QueryLanguageNotSupported("nebula", "cypher"), ErrQueryLanguageNotSupported, ErrorTypeQueryLanguageNotSupported},
		{"execution", QueryExecution(cause, "run query"), ErrQueryExecution, ErrorTypeQueryExecution},
		{"unsupported", Unsupported("drop label"), ErrUnsupportedOperation, ErrorTypeUnsupportedOperation},
		{"partial", PartialExtraction(1, []string{"x"}), ErrPartialExtraction, ErrorTypePartialExtraction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("registry: %w", tt.err)
			assert.True(t, stderrors.Is(wrapped, tt.sentinel))
			assert.True(t, IsType(wrapped, tt.kind))
			assert.Equal(t, tt.kind, GetType(wrapped))
			for _, other := range tests {
				if other.kind != tt.kind {
					assert.False(t, stderrors.Is(wrapped, other.sentinel), "%s must not match %s", tt.kind, other.kind)
				}
			}
		})
	}
}

func TestCauseIsPreserved(t *testing.T) {
	cause := fmt.Errorf("driver failure")
	err := QueryExecution(cause, "run statement")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "driver failure")
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeInternal, SeverityLow, "nothing"))
}

func TestDetailedString(t *testing.T) {
	err := VertexNotFound("abc")
	out := err.DetailedString()
	assert.Contains(t, out, "VERTEX_NOT_FOUND")
	assert.Contains(t, out, "uid: abc")
	assert.NotEmpty(t, err.Timestamp)
}

func TestSeverity(t *testing.T) {
	require.True(t, IsFatal(ConfigErrorf("bad")))
	assert.False(t, IsFatal(VertexNotFound("x")))
	assert.Equal(t, SeverityMedium, GetSeverity(fmt.Errorf("plain")))
	assert.Equal(t, SeverityLow, GetSeverity(nil))
	assert.False(t, IsType(nil, ErrorTypeInternal))
	assert.Equal(t, ErrorTypeInternal, GetType(fmt.Errorf("plain")))
}
