package engine

// PriorityLevel buckets integer priorities for ranking weights.
type PriorityLevel int

const (
	PriorityLow PriorityLevel = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

var priorityWeights = map[PriorityLevel]float64{
	PriorityLow:      0.5,
	PriorityMedium:   0.7,
	PriorityHigh:     0.9,
	PriorityCritical: 1.0,
}

// LevelOf maps an integer priority onto a level. Values below 1 are low and
// values above 4 are critical.
func LevelOf(priority int) PriorityLevel {
	switch {
	case priority <= int(PriorityLow):
		return PriorityLow
	case priority >= int(PriorityCritical):
		return PriorityCritical
	}
	return PriorityLevel(priority)
}

// PriorityWeight is the ranking weight of an integer priority.
func PriorityWeight(priority int) float64 {
	return priorityWeights[LevelOf(priority)]
}
