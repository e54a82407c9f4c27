package activities

type ClaimDocumentInput struct {
	DocumentID int64  `json:"document_id"`
	LeaseID    string `json:"lease_id"`
}

type ClaimDocumentOutput struct {
	Claimed bool   `json:"claimed"`
	Status  string `json:"status"`
}

type FetchDocumentTextInput struct {
	StoragePath string `json:"storage_path"`
	Filename    string `json:"filename"`
}

type FetchDocumentTextOutput struct {
	Text string `json:"text"`
}

type ChunkDocumentInput struct {
	Text         string `json:"text"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

type ChunkItem struct {
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
}

type ChunkDocumentOutput struct {
	Chunks []ChunkItem `json:"chunks"`
}

type EmbedChunksInput struct {
	Inputs []string `json:"inputs"`
}

type EmbedChunksOutput struct {
	Vectors      [][]float32 `json:"vectors"`
	ProviderName string      `json:"provider_name"`
	Model        string      `json:"model"`
}

type ReplaceChunksInput struct {
	DocumentID int64       `json:"document_id"`
	Chunks     []ChunkItem `json:"chunks"`
	Vectors    [][]float32 `json:"vectors"`
}

type ReplaceChunksOutput struct {
	ChunksWritten int `json:"chunks_written"`
}

type UpdateDocumentStatusInput struct {
	DocumentID int64  `json:"document_id"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
}
