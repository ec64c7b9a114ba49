package queue

type TrackStatus string

const (
	TrackStatusSubmitted         TrackStatus = "submitted"
	TrackStatusReady             TrackStatus = "ready"
	TrackStatusSeparating        TrackStatus = "separating"
	TrackStatusDownloadingAudio  TrackStatus = "downloading_audio"
	TrackStatusDownloadingLyrics TrackStatus = "downloading_lyrics"
)

type Artist struct {
	Id   string `json:"id"`
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// Track is a queued playable item. TimeAdded is stamped on insertion
// and is part of the track's identity within a queue: the same catalog
// id queued twice yields two distinct entries.
type Track struct {
	Id        string         `json:"id"`
	Name      string         `json:"name"`
	Artists   []Artist       `json:"artists"`
	Album     map[string]any `json:"album,omitempty"`
	TimeAdded int64          `json:"time_added,omitempty"`
	OrderedBy string         `json:"ordered_by,omitempty"`
	Status    TrackStatus    `json:"status,omitempty"`
	Progress  *float64       `json:"progress,omitempty"`
}

// SameEntry reports whether other is the same queue entry, matching on
// the (id, time_added) composite key.
func (t Track) SameEntry(other Track) bool {
	return t.Id == other.Id && t.TimeAdded == other.TimeAdded
}
