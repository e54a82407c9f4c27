package workflows

type DocumentIngestInput struct {
	DocumentID   int64  `json:"document_id"`
	StoragePath  string `json:"storage_path"`
	Filename     string `json:"filename"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

type DocumentIngestResult struct {
	Status        string `json:"status"`
	ChunksWritten int    `json:"chunks_written"`
}

// IngestProgress is exposed through a query handler so operators can inspect
// a running ingestion without touching the database.
type IngestProgress struct {
	DocumentID    int64             `json:"document_id"`
	CurrentStep   string            `json:"current_step"`
	Status        string            `json:"status"`
	FailReason    string            `json:"fail_reason,omitempty"`
	Steps         map[string]string `json:"steps"`
	ChunkCount    int               `json:"chunk_count"`
	EmbedProvider string            `json:"embed_provider,omitempty"`
}
