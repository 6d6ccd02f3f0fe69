package models

import "time"

// LibraryImage is a generated image as listed from object storage. It
// has no table; Name and CreatedAt come from the storage listing.
type LibraryImage struct {
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
