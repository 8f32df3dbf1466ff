package models

// House is one of the fixed competing teams. Houses are created once from
// the configured default table and never added or removed at runtime; only
// the point total changes.
type House struct {
	Points int    `json:"points"`
	Colour string `json:"colour"`
	Img    string `json:"img"`
}

// ScoreboardRow is a rendering-ready scoreboard line. Share is the point
// total relative to the leading house, in [0, 1], and is 0 when the leader
// is at or below zero.
type ScoreboardRow struct {
	Name   string  `json:"name"`
	Points int     `json:"points"`
	Colour string  `json:"colour"`
	Img    string  `json:"img"`
	Share  float64 `json:"share"`
}
