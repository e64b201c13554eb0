package etl

import (
	"path/filepath"
	"strings"
	"time"
)

// ProcessingResult summarizes one scanned span file
type ProcessingResult struct {
	TotalRecords    int64         `json:"total_records"`
	ProcessedOK     int64         `json:"processed_ok"`
	ProcessedFailed int64         `json:"processed_failed"`
	MaskedRecords   int64         `json:"masked_records"`
	Findings        int64         `json:"findings"`
	Duration        time.Duration `json:"duration"`
	ScanTime        time.Duration `json:"scan_time"`
	WriteTime       time.Duration `json:"write_time"`
	Errors          []string      `json:"errors,omitempty"`
}

// ProcessingStats tracks real-time processing statistics
type ProcessingStats struct {
	StartTime      time.Time `json:"start_time"`
	RecordsRead    int64     `json:"records_read"`
	CurrentBatch   int64     `json:"current_batch"`
	ProcessingRate float64   `json:"processing_rate"` // records per second
}

// FileFormat represents supported span file formats
type FileFormat string

const (
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension. Anything that is
// not parquet is read as one JSON span per line.
func DetectFileFormat(filename string) FileFormat {
	if strings.EqualFold(filepath.Ext(filename), ".parquet") {
		return FormatParquet
	}
	return FormatJSON
}
