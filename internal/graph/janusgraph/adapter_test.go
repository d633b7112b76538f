package janusgraph

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/graph/graphtest"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// unreachable has no host, so connecting fails config validation
func unreachable() model.ConnectionConfig {
	return model.ConnectionConfig{Kind: model.BackendJanus, Port: 8182}
}

func TestForeignLanguagesRejectedWithoutNetwork(t *testing.T) {
	a := New(unreachable())
	for _, tag := range []model.QueryLanguage{"cypher", "ngql", "GQL"} {
		_, err := a.ExecuteNativeQuery(context.Background(), "", tag, "g.V()")
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeQueryLanguageNotSupported), "tag %s", tag)
	}
	assert.False(t, a.IsConnected())
}

func TestBlankGremlinIsEmptyResult(t *testing.T) {
	a := New(unreachable())
	res, err := a.ExecuteNativeQuery(context.Background(), "", "Gremlin", "  ")
	require.NoError(t, err)
	assert.Empty(t, res.Vertices)
	assert.Equal(t, model.StatusSuccess, res.Statistics.Status)
}

func TestLazyConnectFailureKinds(t *testing.T) {
	a := New(unreachable())

	_, err := a.QueryEdges(context.Background(), "", "")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotConnected))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnectionFailure))
}

func TestLabelDeletionUnsupported(t *testing.T) {
	a := New(unreachable())

	_, err := a.DeleteVertexType(context.Background(), "", "Person")
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedOperation))

	_, err = a.DeleteEdgeType(context.Background(), "", "KNOWS")
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedOperation))
	assert.False(t, a.IsConnected())
}

func TestGraphNameValidated(t *testing.T) {
	a := New(unreachable())

	_, err := a.GetVertex(context.Background(), "bad-name", "1")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	err = a.CreateGraph(context.Background(), "drop me")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestJanusContract(t *testing.T) {
	url := graphtest.Env(t, "GBRIDGE_TEST_JANUS_URL")
	host, portStr, err := graphtest.HostPort(url)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := model.ConnectionConfig{
		Kind:     model.BackendJanus,
		Host:     host,
		Port:     port,
		Database: graphtest.EnvOr("GBRIDGE_TEST_JANUS_GRAPH", ""),
	}
	a := New(cfg)
	require.NoError(t, a.TestConnection(context.Background(), cfg))

	graphtest.Run(t, graphtest.Contract{
		Adapter:       a,
		Graph:         cfg.Database,
		WrongLanguage: model.LanguageNGQL,
	})
}
