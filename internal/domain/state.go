package domain

// Snapshot is the projected playback position derived from the authoritative
// state at a single instant. Time is in seconds.
type Snapshot struct {
	File    string  `json:"file"`
	Time    float64 `json:"time"`
	Playing bool    `json:"playing"`
}
