package types

import "time"

// MediaFile is an uploaded image or video attached to a property.
type MediaFile struct {
	ID         int64     `json:"id"`
	PropertyID int64     `json:"property_id"`
	FileName   string    `json:"file_name"`
	FileURL    string    `json:"file_url"`
	FileType   string    `json:"file_type"`
	FileSize   int64     `json:"file_size"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// VRExperience links a property to its walkthrough model.
type VRExperience struct {
	ID           int64     `json:"id"`
	PropertyID   int64     `json:"property_id"`
	Property     *Property `json:"property,omitempty"`
	ModelURL     string    `json:"model_url"`
	ThumbnailURL *string   `json:"thumbnail_url,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// VRExperienceCreateRequest carries the fields to register a VR model.
type VRExperienceCreateRequest struct {
	PropertyID   int64   `json:"property_id"`
	ModelURL     string  `json:"model_url"`
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`
}
