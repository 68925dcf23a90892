package mxverify

import "time"

// BatchReport is the outcome of ValidateBatch. Results holds every result
// in input order; Valid and Invalid partition it, keeping that order.
type BatchReport struct {
	Total        int           `json:"totalCount"`
	ValidCount   int           `json:"validCount"`
	InvalidCount int           `json:"invalidCount"`
	Elapsed      time.Duration `json:"-"`
	Results      []Result      `json:"-"`
	Valid        []Result      `json:"-"`
	Invalid      []Result      `json:"-"`
}

// ElapsedSeconds returns Elapsed in seconds.
func (r BatchReport) ElapsedSeconds() float64 {
	return r.Elapsed.Seconds()
}

// Progress is reported after every wave of a batch.
type Progress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"` // 0-100
	Wave      int `json:"wave"`    // 1-based
	Waves     int `json:"waves"`
}
