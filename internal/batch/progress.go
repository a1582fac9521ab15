package batch

const (
	progressStep    = 5
	progressCeiling = 95
)

// EstimateProgress maps the number of not-done polls to a display
// percentage. The remote operation reports no real progress, so this is a
// linear ramp capped below 100; only an observed completion sets 100.
func EstimateProgress(attempts int) int {
	if attempts <= 0 {
		return 0
	}
	if attempts >= progressCeiling/progressStep {
		return progressCeiling
	}
	return attempts * progressStep
}
