package responses

import "time"

type CheckpointResponse struct {
	ID               string    `json:"id"`
	FileName         string    `json:"file_name"`
	ContentHash      string    `json:"content_hash"`
	ByteSize         int64     `json:"byte_size"`
	LastProcessedRow int       `json:"last_processed_row"`
	TotalRows        int       `json:"total_rows"`
	TotalCreated     int       `json:"total_created"`
	Completed        bool      `json:"completed"`
	LastUpdatedAt    time.Time `json:"last_updated_at"`
	SessionOpen      bool      `json:"session_open"`
}

type CoordinatesResponse struct {
	RecordID       string  `json:"record_id"`
	RawCoordinates string  `json:"raw_coordinates,omitempty"`
	LegacyLat      float64 `json:"legacy_lat"`
	LegacyLon      float64 `json:"legacy_lon"`
	GlobalLat      float64 `json:"global_lat"`
	GlobalLon      float64 `json:"global_lon"`
	Resolved       bool    `json:"resolved"`
}

type BacklogResponse struct {
	Unresolved int64 `json:"unresolved"`
}
