package runtimes

// NodeStats is the timing record of one executed operation node, collected
// into RunMetadata when graph collection is enabled.
type NodeStats struct {
	Device         string
	OpName         string
	AllStartMicros int64
	AllEndMicros   int64
}

// RunMetadata is the diagnostic record accumulated by a context while
// "should store graphs" is set: per-node timings and the names of function
// graphs registered during the collection window.
//
// ExportRunMetadata transfers exclusive ownership of a RunMetadata to the
// caller and resets the context's internal buffer, so a second consecutive
// export yields an empty record.
type RunMetadata struct {
	// SessionID identifies the collection window this record came from.
	SessionID string

	NodeStats      []NodeStats
	FunctionGraphs []string
}

// Empty reports whether nothing was collected.
func (m *RunMetadata) Empty() bool {
	return m == nil || (len(m.NodeStats) == 0 && len(m.FunctionGraphs) == 0)
}
