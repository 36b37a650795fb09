package board

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("engine/board")

var (
	componentsImported  metric.Int64Counter
	connectionsImported metric.Int64Counter
	changeCounter       metric.Int64Counter
)

func init() {
	componentsImported, _ = meter.Int64Counter("boardsight_components_imported_total",
		metric.WithDescription("Components loaded into the registry"))
	connectionsImported, _ = meter.Int64Counter("boardsight_connections_imported_total",
		metric.WithDescription("Directed connections derived from nets"))
	changeCounter, _ = meter.Int64Counter("boardsight_port_changes_total",
		metric.WithDescription("Change-log entries appended"))
}
