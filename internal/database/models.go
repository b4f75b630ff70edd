package database

import "media-curator/internal/mediatypes"

// Directory is one filesystem directory that contains media.
type Directory struct {
	Path         string          `json:"path"`
	Thumbnail    string          `json:"thumbnail"`
	Filename     string          `json:"filename"`
	MediaCount   int             `json:"mediaCount"`
	LastModified int64           `json:"lastModified"`
	DateTaken    int64           `json:"dateTaken"`
	Size         int64           `json:"size"`
	Location     int             `json:"location"` // opaque storage code, kept across reaggregation
	MediaTypes   mediatypes.Mask `json:"mediaTypes"`
}

// MediaState tags whether a media row is live or in the recycle bin.
type MediaState string

const (
	StateActive  MediaState = "active"
	StateTrashed MediaState = "trashed"
)

// Media is one indexed file. While trashed its Path carries the trash prefix.
type Media struct {
	Path             string          `json:"path"`
	Name             string          `json:"name"`
	ParentPath       string          `json:"parentPath"`
	Size             int64           `json:"size"`
	LastModified     int64           `json:"lastModified"`
	DateTaken        int64           `json:"dateTaken"`
	Type             mediatypes.Mask `json:"type"`
	Favorite         bool            `json:"favorite"`
	DeletedTimestamp int64           `json:"deletedTimestamp"`
	State            MediaState      `json:"state"`
}

// IsTrashed reports whether the row is in the recycle bin.
func (m *Media) IsTrashed() bool {
	return m.State == StateTrashed
}
