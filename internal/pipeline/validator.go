package pipeline

import (
	"strings"

	"github.com/salmlabs/video-pipeline/internal/config"
	"github.com/salmlabs/video-pipeline/internal/models"
)

// Content types commonly declared by browsers for the allowed
// containers. An empty declaration is tolerated; the probe decides.
var allowedContentTypes = map[string]struct{}{
	"video/mp4":                {},
	"video/quicktime":          {},
	"video/x-msvideo":          {},
	"video/avi":                {},
	"video/webm":               {},
	"video/x-matroska":         {},
	"application/octet-stream": {},
}

// Validator holds the static upload policy: extension allow-list, raw
// size ceiling and post-probe duration ceiling. All checks are pure.
type Validator struct {
	allowedExts map[string]struct{}
	maxFileSize int64
	maxDuration float64
}

func NewValidator(cfg *config.PipelineConfig) *Validator {
	exts := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	return &Validator{
		allowedExts: exts,
		maxFileSize: cfg.MaxFileSizeBytes,
		maxDuration: float64(cfg.MaxDurationSeconds),
	}
}

// ValidateUpload runs the pre-probe checks against declared values only.
func (v *Validator) ValidateUpload(fileName string, declaredSize int64, contentType string) error {
	ext := ExtensionOf(fileName)
	if ext == "" {
		return validationErrorf("file %q has no extension", fileName)
	}
	if _, ok := v.allowedExts[ext]; !ok {
		return validationErrorf("file type %q is not allowed", ext)
	}
	if contentType != "" {
		if _, ok := allowedContentTypes[strings.ToLower(contentType)]; !ok {
			return validationErrorf("content type %q is not allowed", contentType)
		}
	}
	if declaredSize > v.maxFileSize {
		return validationErrorf("file size exceeds the %d MB limit", v.maxFileSize>>20)
	}
	return nil
}

// ValidateDuration is the post-probe pass. A zero duration means the
// probe could not see one; the check is skipped rather than failed.
func (v *Validator) ValidateDuration(meta models.MediaMetadata) error {
	if meta.Duration == 0 {
		return nil
	}
	if meta.Duration > v.maxDuration {
		return validationErrorf("video length exceeds the %.0f second limit", v.maxDuration)
	}
	return nil
}

// ExtensionOf returns the lowercased last dot-delimited segment of
// name, or "" when there is none.
func ExtensionOf(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}
