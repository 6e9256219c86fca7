package memory

import (
	"sort"

	"github.com/m-mizutani/goerr/v2"

	"github.com/hiroq/engram/pkg/model"
)

// Candidate pairs a message ID with its embedding for similarity ranking.
type Candidate struct {
	ID        model.MessageID
	Embedding model.Vector
}

// TopK scores every candidate by dot product against the query and returns
// the IDs of the k best, descending by score. Score ties keep candidate
// input order. The scan is exact: O(N*D) scoring plus a sort, which is
// sufficient at the scale of a single conversation's history.
//
// An empty candidate set or k <= 0 yields an empty result. Any candidate
// whose embedding length differs from the query's fails the whole call with
// model.ErrDimensionMismatch.
func TopK(query model.Vector, candidates []Candidate, k int) ([]model.MessageID, error) {
	if len(candidates) == 0 || k <= 0 {
		return nil, nil
	}

	type scored struct {
		id    model.MessageID
		score float64
	}
	scores := make([]scored, len(candidates))
	for i, c := range candidates {
		score, err := query.Dot(c.Embedding)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to score candidate", goerr.V("message_id", c.ID))
		}
		scores[i] = scored{id: c.ID, score: score}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	if k > len(scores) {
		k = len(scores)
	}
	ids := make([]model.MessageID, k)
	for i := range ids {
		ids[i] = scores[i].id
	}
	return ids, nil
}
