package neo4jgraph

import (
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/rohankatakam/graphbridge/internal/errors"
)

// classify converts a driver error into the graph error taxonomy. Errors that
// are already classified pass through unchanged.
func classify(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsError(err); ok {
		return err
	}
	msg := fmt.Sprintf(format, args...)
	if neo4j.IsConnectivityError(err) {
		return errors.ConnectionFailure(err, "%s", msg)
	}
	if neo4j.IsNeo4jError(err) {
		if ne, ok := err.(*neo4j.Neo4jError); ok {
			if strings.Contains(ne.Code, "Unsupported") {
				return errors.Unsupported("%s: %s", msg, ne.Msg).WithContext("code", ne.Code)
			}
			return errors.QueryExecution(err, "%s", msg).WithContext("code", ne.Code)
		}
	}
	return errors.QueryExecution(err, "%s", msg)
}
