package model

import (
	"encoding/json"
	"time"
)

// ListMeta is the pagination block of every list response.
type ListMeta struct {
	Count      int `json:"count" yaml:"count"`
	Page       int `json:"page" yaml:"page"`
	PageCount  int `json:"pageCount" yaml:"pageCount"`
	TotalCount int `json:"totalCount,omitempty" yaml:"totalCount,omitempty"`
}

// Trace is a GPS trace in its GeoJSON feature form.
type Trace struct {
	Type       string          `json:"type,omitempty" yaml:"type,omitempty"`
	Properties TraceProperties `json:"properties" yaml:"properties"`
	Geometry   json.RawMessage `json:"geometry,omitempty" yaml:"-"`
}

type TraceProperties struct {
	ID               string    `json:"id" yaml:"id"`
	OwnerID          int64     `json:"ownerId" yaml:"ownerId"`
	OwnerDisplayName string    `json:"ownerDisplayName,omitempty" yaml:"ownerDisplayName,omitempty"`
	Description      string    `json:"description" yaml:"description"`
	Length           float64   `json:"length" yaml:"length"`
	RecordedAt       time.Time `json:"recordedAt" yaml:"recordedAt"`
	UploadedAt       time.Time `json:"uploadedAt" yaml:"uploadedAt"`
	UpdatedAt        time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Photo is a geotagged photo.
type Photo struct {
	ID               string          `json:"id" yaml:"id"`
	OwnerID          int64           `json:"ownerId" yaml:"ownerId"`
	OwnerDisplayName string          `json:"ownerDisplayName,omitempty" yaml:"ownerDisplayName,omitempty"`
	Description      string          `json:"description" yaml:"description"`
	CreatedAt        time.Time       `json:"createdAt" yaml:"createdAt"`
	UploadedAt       time.Time       `json:"uploadedAt,omitempty" yaml:"uploadedAt,omitempty"`
	OsmElement       string          `json:"osmElement,omitempty" yaml:"osmElement,omitempty"`
	URLs             PhotoURLs       `json:"urls" yaml:"urls"`
	Location         json.RawMessage `json:"location,omitempty" yaml:"-"`
}

type PhotoURLs struct {
	Thumb string `json:"thumb,omitempty" yaml:"thumb,omitempty"`
	Full  string `json:"full,omitempty" yaml:"full,omitempty"`
}
