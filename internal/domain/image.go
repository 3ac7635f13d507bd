package domain

import (
	"errors"
	"time"
)

// Common validation errors for ImageVariant
var (
	ErrEmptyImageTaskID     = errors.New("image task ID cannot be empty")
	ErrEmptyImageResolution = errors.New("image resolution cannot be empty")
	ErrEmptyImagePath       = errors.New("image path cannot be empty")
	ErrEmptyContentHash     = errors.New("image content hash cannot be empty")
)

// ImageVariant is one resized output of a task's source image.
//
// ContentHash is the digest of the original source bytes, so every variant
// generated from identical bytes carries the same hash.
type ImageVariant struct {
	ID          string    `json:"id,omitempty"`
	TaskID      string    `json:"task_id"`
	Resolution  string    `json:"resolution"`
	Path        string    `json:"path"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks if the ImageVariant has valid data.
func (i *ImageVariant) Validate() error {
	if i.TaskID == "" {
		return ErrEmptyImageTaskID
	}
	if i.Resolution == "" {
		return ErrEmptyImageResolution
	}
	if i.Path == "" {
		return ErrEmptyImagePath
	}
	if i.ContentHash == "" {
		return ErrEmptyContentHash
	}
	return nil
}

// TaskImage strips store and hash fields from the variant.
func (i *ImageVariant) TaskImage() TaskImage {
	return TaskImage{
		Resolution: i.Resolution,
		Path:       i.Path,
	}
}

// TaskImages converts variants to task images, keeping their order.
func TaskImages(variants []*ImageVariant) []TaskImage {
	images := make([]TaskImage, 0, len(variants))
	for _, v := range variants {
		images = append(images, v.TaskImage())
	}
	return images
}
