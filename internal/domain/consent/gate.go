package consent

import (
	"context"

	"github.com/google/uuid"

	"github.com/kinetic/kinetic/internal/domain/episode"
)

// Gate is the only path from stored episodes to signal computation. An
// episode passes only while its consent is granted.
type Gate struct {
	consents Repository
	episodes episode.Repository
}

func NewGate(consents Repository, episodes episode.Repository) *Gate {
	return &Gate{consents: consents, episodes: episodes}
}

// ConsentedEpisodes returns the physio's consented episodes with visits
// ordered by visit number.
func (g *Gate) ConsentedEpisodes(ctx context.Context, physioID uuid.UUID) ([]episode.WithVisits, error) {
	ids, err := g.consents.ListGrantedEpisodeIDs(ctx, physioID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	eps, err := g.episodes.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	visits, err := g.episodes.ListVisitsForEpisodes(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]episode.WithVisits, 0, len(eps))
	for _, e := range eps {
		if e.PhysioID != physioID {
			continue
		}
		vs := visits[e.ID]
		episode.SortVisits(vs)
		out = append(out, episode.WithVisits{Episode: *e, Visits: vs})
	}
	return out, nil
}
