package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/BoardsightAI/boardsight/engine/board"
)

// MirrorRegistry exports the registry contents into the knowledge graph in a
// single write transaction. Components become Component nodes keyed by id;
// every connection becomes a DRIVES edge carrying its port pair.
func (g *GraphStore) MirrorRegistry(ctx context.Context, reg *board.Registry, boardName string) error {
	snap := reg.Snapshot()

	components := make([]Component, 0, len(snap.Components))
	for _, st := range snap.Components {
		components = append(components, Component{
			ID:    st.ID,
			Type:  st.Type,
			Board: boardName,
			Properties: map[string]string{
				"description": st.Description,
				"x":           strconv.FormatFloat(st.Position.X, 'f', -1, 64),
				"y":           strconv.FormatFloat(st.Position.Y, 'f', -1, 64),
			},
		})
	}

	edges := make([]Edge, 0, len(snap.Connections))
	for _, conn := range snap.Connections {
		edges = append(edges, Edge{
			ID:      fmt.Sprintf("%s.%s->%s.%s", conn.SrcID, conn.SrcPort, conn.DstID, conn.DstPort),
			From:    conn.SrcID,
			To:      conn.DstID,
			Type:    "drives",
			SrcPort: conn.SrcPort,
			DstPort: conn.DstPort,
		})
	}

	if err := g.SaveBatch(ctx, components, edges); err != nil {
		return fmt.Errorf("mirror board %s: %w", boardName, err)
	}
	slog.Debug("mirrored registry to graph",
		"board", boardName,
		"components", len(components),
		"connections", len(edges))
	return nil
}
