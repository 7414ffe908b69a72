package models

// SyncResult is the summary returned by one feed synchronization run.
// Not persisted; returned to the caller and logged.
type SyncResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Total   int `json:"total"`
}
