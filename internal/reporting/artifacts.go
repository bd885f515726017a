package reporting

import "path"

// Artifact file names within a run directory.
const (
	TradesFile     = "trades.csv"
	AggregatesFile = "aggregates.csv"
	ReportFile     = "report.md"
	CombosFile     = "combos.csv"
	CombosMarkdown = "combos.md"
)

// RunArtifacts renders a run report into files under "<run_id>/".
func RunArtifacts(r *Report) []Artifact {
	return []Artifact{
		{Name: path.Join(r.RunID, TradesFile), Body: []byte(RenderTradesCSV(r.Trades))},
		{Name: path.Join(r.RunID, AggregatesFile), Body: []byte(RenderAggregatesCSV(r.Aggregates))},
		{Name: path.Join(r.RunID, ReportFile), Body: []byte(RenderMarkdown(r))},
	}
}

// ComboArtifacts renders a search report into files under "<run_id>/".
func ComboArtifacts(r *ComboReport) []Artifact {
	return []Artifact{
		{Name: path.Join(r.RunID, CombosFile), Body: []byte(RenderCombosCSV(r.Combos))},
		{Name: path.Join(r.RunID, CombosMarkdown), Body: []byte(RenderCombosMarkdown(r))},
	}
}
