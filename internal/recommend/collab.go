package recommend

import (
	"sort"

	"github.com/ever-flow/ETF/internal/profile"
	"github.com/ever-flow/ETF/pkg/formulas"
)

// maxSimilarPeers caps how many neighbours contribute votes.
const maxSimilarPeers = 5

// Votes holds peer-vote weights per ticker. Tickers preserves the order in
// which tickers first received a vote so candidate lists built from the votes
// stay deterministic.
type Votes struct {
	Tickers []string
	Weights map[string]float64
}

// Weight returns the accumulated vote weight for a ticker, zero if none.
func (v Votes) Weight(ticker string) float64 {
	return v.Weights[ticker]
}

// CollabVotes scores tickers by the preferences of the most similar peers.
// Similarity is cosine similarity between 6-dimensional profile vectors; each
// of the top peers votes for its preferred tickers with weight equal to its
// similarity. An empty peer base yields empty votes.
func CollabVotes(p profile.Profile, peers []PeerPreference) Votes {
	votes := Votes{Weights: make(map[string]float64)}
	if len(peers) == 0 {
		return votes
	}

	type scoredPeer struct {
		index      int
		similarity float64
	}
	target := p.Vector()
	scored := make([]scoredPeer, 0, len(peers))
	for i, peer := range peers {
		sim := formulas.CosineSimilarity(target, peer.Profile.Vector())
		if sim > 0 {
			scored = append(scored, scoredPeer{index: i, similarity: sim})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].similarity > scored[j].similarity
	})
	if len(scored) > maxSimilarPeers {
		scored = scored[:maxSimilarPeers]
	}

	for _, sp := range scored {
		for _, tk := range peers[sp.index].PreferredETFs {
			if _, ok := votes.Weights[tk]; !ok {
				votes.Tickers = append(votes.Tickers, tk)
			}
			votes.Weights[tk] += sp.similarity
		}
	}
	return votes
}
