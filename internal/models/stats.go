package models

// FileStat is the per-file outcome of an ingestion run.
type FileStat struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
	Status   string `json:"status"`
}

// Succeeded reports whether the file was stored.
func (f FileStat) Succeeded() bool {
	return f.Status == StatusSuccess
}

// ProcessingStats aggregates an ingestion run.
type ProcessingStats struct {
	FilesProcessed int        `json:"files_processed"`
	TotalChunks    int        `json:"total_chunks"`
	PerFileStats   []FileStat `json:"per_file_stats"`
	FailedFiles    []string   `json:"failed_files"`
}

// NewProcessingStats returns stats with non-nil slices so they encode as [].
func NewProcessingStats() ProcessingStats {
	return ProcessingStats{
		PerFileStats: []FileStat{},
		FailedFiles:  []string{},
	}
}

// TableStats describes the stored chunks.
type TableStats struct {
	TotalRows   int      `json:"total_rows"`
	UniqueFiles []string `json:"unique_files"`
}

// FailedStatus builds "failed: <reason>" keeping at most MaxStatusReasonRune runes of the reason.
func FailedStatus(err error) string {
	reason := []rune(err.Error())
	if len(reason) > MaxStatusReasonRune {
		reason = reason[:MaxStatusReasonRune]
	}
	return StatusFailedPrefix + string(reason)
}
