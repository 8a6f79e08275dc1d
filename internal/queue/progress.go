package queue

// StageWeights assigns each pipeline stage its share of the overall progress
// percentage. The weights sum to 100 and are not configurable per job; the
// table must change together with PipelineStages.
var StageWeights = map[Stage]int{
	StageDownload:        20,
	StageAudioExtraction: 15,
	StageTranscription:   50,
	StageSegmentation:    15,
}

// OverallProgress maps per-stage progress percentages to a single 0-100 value
// using the fixed stage weights. Missing entries count as zero. Inputs are
// expected to be 0-100; out-of-range values are not guarded against.
func OverallProgress(stageProgress map[Stage]int) int {
	sum := 0
	for _, stage := range PipelineStages {
		sum += StageWeights[stage] * stageProgress[stage]
	}
	return (sum + 50) / 100
}
