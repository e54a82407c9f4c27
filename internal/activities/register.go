package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ClaimDocumentActivity)
	w.RegisterActivity(a.FetchDocumentTextActivity)
	w.RegisterActivity(a.ChunkDocumentActivity)
	w.RegisterActivity(a.EmbedChunksActivity)
	w.RegisterActivity(a.ReplaceChunksActivity)
	w.RegisterActivity(a.UpdateDocumentStatusActivity)
}
