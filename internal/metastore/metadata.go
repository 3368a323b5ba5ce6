package metastore

// FileMetadata is the durable per-path sync state. A zero SHA means the path
// has never been uploaded; Dirty means local bytes have changed since the
// content addressed by SHA; JustDownloaded suppresses reacting to the
// engine's own write exactly once. Timestamps are epoch milliseconds.
type FileMetadata struct {
	SHA            string `json:"sha,omitempty"`
	Dirty          bool   `json:"dirty,omitempty"`
	JustDownloaded bool   `json:"justDownloaded,omitempty"`
	LastModified   int64  `json:"lastModified"`
	Deleted        bool   `json:"deleted,omitempty"`
	DeletedAt      int64  `json:"deletedAt,omitempty"`
}

// Document is the single persisted metadata document.
type Document struct {
	LastSync int64                    `json:"lastSync"`
	Files    map[string]*FileMetadata `json:"files"`
}

func emptyDocument() *Document {
	return &Document{
		LastSync: 0,
		Files:    make(map[string]*FileMetadata),
	}
}
