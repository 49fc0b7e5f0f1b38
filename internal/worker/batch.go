package worker

import "context"

// Reindexer retries indexing for one queued artifact
type Reindexer interface {
	Reindex(ctx context.Context, artifactID string) error
}

// ReindexJob retries one artifact
type ReindexJob struct {
	ArtifactID string
	Reindexer  Reindexer
}

// Execute runs the reindex attempt
func (j *ReindexJob) Execute(ctx context.Context) Result {
	return &ReindexResult{
		ArtifactID: j.ArtifactID,
		Error:      j.Reindexer.Reindex(ctx, j.ArtifactID),
	}
}

// ReindexResult is the outcome of one reindex attempt
type ReindexResult struct {
	ArtifactID string
	Error      error
}

// GetError returns the attempt's error, if any
func (r *ReindexResult) GetError() error {
	return r.Error
}

// ReindexBatch retries a set of queued artifacts concurrently. Artifacts
// that fail again stay queued for the next scheduler pass.
func ReindexBatch(reindexer Reindexer, concurrency int, artifactIDs []string) []*ReindexResult {
	if len(artifactIDs) == 0 {
		return []*ReindexResult{}
	}

	pool := NewPool(concurrency)
	pool.Start()

	for _, id := range artifactIDs {
		pool.Submit(&ReindexJob{ArtifactID: id, Reindexer: reindexer})
	}

	results := pool.Wait()
	out := make([]*ReindexResult, len(results))
	for i, r := range results {
		out[i] = r.(*ReindexResult)
	}
	return out
}
