// internal/domain/models/history.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// History entry types.
const (
	HistoryUpload   = "upload"
	HistoryDownload = "download"
)

// History entry statuses.
const (
	HistoryStatusUploaded = "Uploaded"
	HistoryStatusAnalyzed = "Analyzed"
)

// HistoryEntry records one upload or chart download.
// UploadedAt is indexed together with UserID for the per-user history view.
type HistoryEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Type      string             `bson:"type" json:"type"` // upload | download
	FileName  string             `bson:"file_name,omitempty" json:"file_name,omitempty"`
	ChartType string             `bson:"chart_type,omitempty" json:"chart_type,omitempty"`
	Date      string             `bson:"date,omitempty" json:"date,omitempty"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Rows      int                `bson:"rows" json:"rows"`
	Status    string             `bson:"status" json:"status"`
	FileSize  int64              `bson:"file_size,omitempty" json:"file_size,omitempty"`

	UploadedAt time.Time `bson:"uploaded_at" json:"uploaded_at"`
}

// UploadStats summarizes a user's uploads.
type UploadStats struct {
	TotalFiles   int `json:"totalFiles"`
	AnalyzedRows int `json:"analyzedRows"`
	AverageValue int `json:"averageValue"`
	MaxValue     int `json:"maxValue"`
}
