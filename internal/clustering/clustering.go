// Package clustering implements the Face Clustering pass: grouping
// unassigned detected faces that likely belong to the same unidentified
// person, and suggesting an existing Person for each group when one is a
// close enough match. Clustering only ever proposes; it never overwrites
// a face's existing person assignment.
package clustering

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photovault/internal/models"
	"github.com/your-org/photovault/internal/observability"
	"github.com/your-org/photovault/internal/storage"
)

// candidateCap bounds how many unassigned faces a single pass considers,
// so a long-neglected backlog can't make one pass unbounded. Subsequent
// passes pick up whatever is left, since RebuildClusters only replaces
// clusters, never marks candidates as seen.
const candidateCap = 20000

type Clusterer struct {
	store          *storage.Store
	minSimilarity  float64
	minClusterSize int
	candidateWindow int64 // seconds
}

// Config mirrors config.ClusteringConfig's fields the clusterer needs,
// kept narrow so this package doesn't import internal/config directly.
type Config struct {
	MinSimilarity   float64
	MinClusterSize  int
	CandidateWindowSeconds int64
}

func New(store *storage.Store, cfg Config) *Clusterer {
	return &Clusterer{
		store:           store,
		minSimilarity:   cfg.MinSimilarity,
		minClusterSize:  cfg.MinClusterSize,
		candidateWindow: cfg.CandidateWindowSeconds,
	}
}

type accumulator struct {
	centroid []float32
	sum      []float32
	members  []uuid.UUID
}

func (a *accumulator) add(faceID uuid.UUID, embedding []float32) {
	if a.sum == nil {
		a.sum = make([]float32, len(embedding))
	}
	for i, v := range embedding {
		a.sum[i] += v
	}
	a.members = append(a.members, faceID)
	n := float32(len(a.members))
	a.centroid = make([]float32, len(a.sum))
	for i, v := range a.sum {
		a.centroid[i] = v / n
	}
}

// Run executes one clustering pass: it pulls every unassigned face
// discovered within the configured window, groups them by a single-pass
// nearest-centroid assignment (simpler than full agglomerative linkage;
// the candidate set is bounded only by the time window and candidateCap,
// with no ANN prefilter), picks as each cluster's representative the
// member most similar to its centroid, attaches a suggested Person to
// clusters whose centroid is a close match to an existing Person, and
// replaces the persisted cluster set.
func (c *Clusterer) Run(ctx context.Context) (int, error) {
	window := windowDuration(c.candidateWindow)
	candidates, err := c.store.CandidateFaces(ctx, window, nil, candidateCap)
	if err != nil {
		return 0, fmt.Errorf("load candidate faces: %w", err)
	}
	if len(candidates) == 0 {
		observability.ClustersFormed.Set(0)
		return 0, nil
	}

	var accs []*accumulator
	for _, cand := range candidates {
		best := -1
		bestScore := float32(0)
		for i, acc := range accs {
			score := cosineSimilarity(acc.centroid, cand.Embedding)
			if score > bestScore {
				bestScore = score
				best = i
			}
		}
		if best >= 0 && bestScore >= float32(c.minSimilarity) {
			accs[best].add(cand.FaceID, cand.Embedding)
			continue
		}
		acc := &accumulator{}
		acc.add(cand.FaceID, cand.Embedding)
		accs = append(accs, acc)
	}

	clusters := make([]models.FaceCluster, 0, len(accs))
	members := make(map[uuid.UUID][]uuid.UUID, len(accs))
	dropped := 0

	embeddings := make(map[uuid.UUID][]float32, len(candidates))
	for _, cand := range candidates {
		embeddings[cand.FaceID] = cand.Embedding
	}

	for _, acc := range accs {
		if len(acc.members) < c.minClusterSize {
			dropped += len(acc.members)
			continue
		}

		representative, bestSim := acc.members[0], float32(-2)
		for _, id := range acc.members {
			if s := cosineSimilarity(acc.centroid, embeddings[id]); s > bestSim {
				representative, bestSim = id, s
			}
		}

		cluster := models.FaceCluster{
			ID:                   uuid.New(),
			RepresentativeFaceID: representative,
			MemberCount:          len(acc.members),
		}

		matches, err := c.store.NearestPersons(ctx, acc.centroid, 1)
		if err != nil {
			slog.Error("clustering nearest person lookup", "error", err)
		} else if len(matches) > 0 && float64(matches[0].Score) >= c.minSimilarity {
			personID := matches[0].PersonID
			cluster.SuggestedPersonID = &personID
			cluster.PersonConfidence = float64(matches[0].Score)
		}

		clusters = append(clusters, cluster)
		members[cluster.ID] = acc.members
	}

	if err := c.store.RebuildClusters(ctx, clusters, members); err != nil {
		return 0, fmt.Errorf("rebuild clusters: %w", err)
	}

	// Every face in a cluster that met the reporting threshold is a
	// pending suggestion, confirmed or not, until C9 assigns it.
	for _, cluster := range clusters {
		for _, faceID := range members[cluster.ID] {
			if err := c.store.MarkClusterSuggestion(ctx, faceID, cluster.SuggestedPersonID); err != nil {
				slog.Error("mark cluster suggestion", "face_id", faceID, "error", err)
			}
		}
	}

	observability.ClustersFormed.Set(float64(len(clusters)))
	slog.Info("clustering pass complete", "clusters", len(clusters), "candidates", len(candidates), "singletons_dropped", dropped)
	return len(clusters), nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func windowDuration(seconds int64) time.Duration {
	if seconds <= 0 {
		return 90 * 24 * time.Hour
	}
	return time.Duration(seconds) * time.Second
}
