package templates

import (
	"sort"

	"github.com/esrs-tools/csvprep/internal/pipeline"
)

// sortedArtifacts returns a run's artifacts in stable order, spreadsheet
// download first, overflow file after.
func sortedArtifacts(res *pipeline.Result) []pipeline.Artifact {
	out := make([]pipeline.Artifact, 0, len(res.Artifacts))
	for _, a := range res.Artifacts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return artifactRank(out[i].Name) < artifactRank(out[j].Name)
	})
	return out
}

func artifactRank(name string) int {
	if name == pipeline.ArtifactPrimary {
		return 0
	}
	return 1
}
