package rate

import (
	"fmt"

	"github.com/matzehuels/chainflow/pkg/factory"
)

// FormatRate renders a transfer rate as a display label, e.g. "3.142/s".
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.3f/s", rate)
}

// formatEdge renders an edge label. Edges with detected overflow show both
// the carried rate and the unused surplus, e.g. "3.000/s + 1.500/s".
func formatEdge(edge *factory.Edge) string {
	if edge.Overflow > 0 {
		return fmt.Sprintf("%s + %s", FormatRate(edge.Rate), FormatRate(edge.Overflow))
	}
	return FormatRate(edge.Rate)
}
