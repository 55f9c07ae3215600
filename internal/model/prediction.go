package model

import "time"

// PredictionTable is the 0/1 output of one backend for one level.
type PredictionTable struct {
	Method string
	Labels []string
	IDs    []string
	Values [][]int
}

// Evaluation is a scored run of one backend on one level partition.
type Evaluation struct {
	RunID     string
	Level     string
	Method    string
	Partition Usage
	AvgF1     float64
	Accuracy  float64
	F1        map[string]float64
	At        time.Time
}
