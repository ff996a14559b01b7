package model

import "time"

// User is a row of the Observe users list.
type User struct {
	OsmID          int64     `json:"osmId" yaml:"osmId"`
	OsmDisplayName string    `json:"osmDisplayName" yaml:"osmDisplayName"`
	OsmCreatedAt   time.Time `json:"osmCreatedAt" yaml:"osmCreatedAt"`
	IsAdmin        bool      `json:"isAdmin" yaml:"isAdmin"`
	Traces         int       `json:"traces" yaml:"traces"`
	Photos         int       `json:"photos" yaml:"photos"`
}

// Profile is the authenticated user as returned by /profile, plus the
// access token the session was opened with.
type Profile struct {
	OsmID          int64  `json:"osmId"`
	OsmDisplayName string `json:"osmDisplayName"`
	IsAdmin        bool   `json:"isAdmin"`
	AccessToken    string `json:"accessToken,omitempty"`
}

// CanEdit reports whether the profile may edit or delete a resource owned
// by ownerID.
func (p Profile) CanEdit(ownerID int64) bool {
	return p.IsAdmin || (p.OsmID != 0 && p.OsmID == ownerID)
}
