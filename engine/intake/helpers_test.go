package intake

import (
	"context"
	"io"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/BoardsightAI/boardsight/engine/graph"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type emptyResult struct{}

func (emptyResult) Next(context.Context) bool { return false }
func (emptyResult) Record() *neo4j.Record     { return nil }

// recordingOpener counts cypher statements across all sessions it opens.
type recordingOpener struct {
	statements int
	lastCypher string
}

func (o *recordingOpener) OpenSession(ctx context.Context) graph.CypherSession {
	return &recordingSession{opener: o}
}

type recordingSession struct {
	opener *recordingOpener
}

func (s *recordingSession) Run(_ context.Context, cypher string, _ map[string]any) (graph.CypherResult, error) {
	s.opener.statements++
	s.opener.lastCypher = cypher
	return emptyResult{}, nil
}

func (s *recordingSession) ExecuteWrite(_ context.Context, work func(tx graph.CypherRunner) (any, error)) (any, error) {
	return work(s)
}

func (s *recordingSession) Close(context.Context) error { return nil }
