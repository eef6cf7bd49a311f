package models

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// MediaMetadata is the geometry and timing reported by a probe run.
// All-zero values mean the prober could not see a video stream; callers
// treat that as "unknown" rather than an error.
type MediaMetadata struct {
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Duration      float64 `json:"duration"`
	FileSizeBytes int64   `json:"file_size_bytes"`
}

func (m MediaMetadata) IsZero() bool {
	return m.Width == 0 && m.Height == 0 && m.Duration == 0
}

// EncodePlan is the fixed-policy transcode target derived from source
// metadata. Target dimensions are always even; zero dimensions mean
// "keep source geometry" (no scale filter).
type EncodePlan struct {
	TargetWidth  int    `json:"target_width"`
	TargetHeight int    `json:"target_height"`
	VideoCodec   string `json:"video_codec"`
	AudioCodec   string `json:"audio_codec"`
	AudioBitrate string `json:"audio_bitrate"`
	CRF          int    `json:"crf"`
	Preset       string `json:"preset"`
}

// UploadRequest is the read-once inbound payload handed over by the
// upload collaborator. Body is consumed exactly once per call.
type UploadRequest struct {
	Body        io.Reader `json:"-" validate:"required"`
	FileName    string    `json:"file_name" validate:"required,lte=255"`
	FileSize    int64     `json:"file_size" validate:"required,gt=0"`
	ContentType string    `json:"content_type" validate:"omitempty,lte=100"`
	UserID      uuid.UUID `json:"user_id" validate:"required"`
}

// VideoAsset is the committed, servable result of one pipeline run.
// ThumbnailPath is empty when thumbnail generation failed; the video is
// still valid in that case.
type VideoAsset struct {
	AssetID         uuid.UUID `json:"asset_id" db:"asset_id" validate:"omitempty"`
	UserID          uuid.UUID `json:"user_id" db:"user_id" validate:"omitempty"`
	FileName        string    `json:"file_name" db:"file_name" validate:"required,lte=255"`
	VideoPath       string    `json:"video_path" db:"video_path" validate:"required,lte=512"`
	ThumbnailPath   string    `json:"thumbnail_path" db:"thumbnail_path" validate:"omitempty,lte=512"`
	Width           int       `json:"width" db:"width" validate:"omitempty"`
	Height          int       `json:"height" db:"height" validate:"omitempty"`
	DurationSeconds float64   `json:"duration_seconds" db:"duration_seconds" validate:"omitempty"`
	FileSizeBytes   int64     `json:"file_size_bytes" db:"file_size_bytes" validate:"omitempty"`
	CreatedAt       time.Time `json:"created_at" db:"created_at" validate:"omitempty"`
}

type AssetList struct {
	Assets     []*VideoAsset `json:"assets"`
	TotalCount int           `json:"total_count"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	HasMore    bool          `json:"has_more"`
}
