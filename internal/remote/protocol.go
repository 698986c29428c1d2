package remote

import "time"

// Entry describes a single directory entry as returned by the server.
type Entry struct {
	Name    string    `json:"name"`
	IsDir   bool      `json:"is_dir"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mtime,omitempty"`
}

