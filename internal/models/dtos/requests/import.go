package requests

// BeginImportRequest opens an import session for a file in the import directory.
type BeginImportRequest struct {
	File     string `json:"file"`
	StartRow *int   `json:"start_row,omitempty"`
}

// ResetCheckpointRequest rewinds a checkpoint so the next import resumes at Row+1.
type ResetCheckpointRequest struct {
	Row int `json:"row"`
}
