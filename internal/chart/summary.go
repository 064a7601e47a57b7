package chart

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the plotted series.
type Summary struct {
	Count          int     `json:"count"`
	Min            float64 `json:"min"`
	MinGeneration  int     `json:"min_generation"`
	Mean           float64 `json:"mean"`
	StdDev         float64 `json:"std_dev"`
	First          float64 `json:"first"`
	Last           float64 `json:"last"`
	LastGeneration int     `json:"last_generation"`
	// Improvement is the relative drop from the first to the minimum distance.
	Improvement float64 `json:"improvement"`
}

// Summary computes statistics over the current series.
func (c *Chart) Summary() Summary {
	return Summarize(c.Series().Generations, c.Series().Distances)
}

// Summarize computes statistics over a generation/distance series.
func Summarize(generations []int, distances []float64) Summary {
	n := len(distances)
	if n == 0 || len(generations) != n {
		return Summary{}
	}

	minIdx := floats.MinIdx(distances)
	s := Summary{
		Count:          n,
		Min:            distances[minIdx],
		MinGeneration:  generations[minIdx],
		First:          distances[0],
		Last:           distances[n-1],
		LastGeneration: generations[n-1],
	}
	if n > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(distances, nil)
	} else {
		s.Mean = distances[0]
	}
	if s.First > 0 {
		s.Improvement = (s.First - s.Min) / s.First
	}
	return s
}
