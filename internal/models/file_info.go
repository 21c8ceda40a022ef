package models

// TraceFile describes one input file discovered in the trace directory.
type TraceFile struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Archived bool   `json:"archived"` // compressed, must be extracted before parsing
	Current  bool   `json:"current"`  // the live trace file, always processed last
}
