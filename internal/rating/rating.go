// Package rating implements the skill model used for matchmaking and
// leaderboards: Gaussian beliefs updated with the Plackett-Luce posterior
// after every rated game, plus a draw-probability estimate that matchmaking
// uses as its pair-quality score.
package rating

import "math"

// Defaults for fresh accounts, matching the users table schema.
const (
	DefaultMu    = 25.0
	DefaultSigma = 8.333
)

const (
	// beta is the shared per-game performance variance.
	beta = DefaultMu / 6
	// kappa keeps sigma strictly positive through pathological updates.
	kappa = 0.0001
)

// Rating is a Gaussian skill belief.
type Rating struct {
	Mu    float64
	Sigma float64
}

func New(mu, sigma float64) Rating {
	return Rating{Mu: mu, Sigma: sigma}
}

// Default is the rating assigned to newly registered users.
func Default() Rating {
	return Rating{Mu: DefaultMu, Sigma: DefaultSigma}
}

// PredictDraw estimates how evenly matched two players are, as the
// probability mass of a drawn outcome under the combined skill belief.
// Result is in [0, 1]; two fresh default ratings score ≈ 0.447 and the
// value decays exponentially in the mu difference.
func PredictDraw(a, b Rating) float64 {
	denom := 2*beta*beta + a.Sigma*a.Sigma + b.Sigma*b.Sigma
	spread := math.Sqrt(2 * beta * beta / denom)
	diff := a.Mu - b.Mu
	return spread * math.Exp(-diff*diff/(2*denom))
}

// Rate returns the posterior ratings after a game with the given final
// scores. The higher score wins, equal scores are a draw. Deterministic in
// its inputs.
func Rate(a, b Rating, scoreA, scoreB float64) (Rating, Rating) {
	rankA, rankB := 1, 1
	switch {
	case scoreA > scoreB:
		rankB = 2
	case scoreB > scoreA:
		rankA = 2
	}

	c := math.Sqrt(a.Sigma*a.Sigma + b.Sigma*b.Sigma + 2*beta*beta)
	expA := math.Exp(a.Mu / c)
	expB := math.Exp(b.Mu / c)

	omegaA, deltaA := plTerms(expA, rankA, expB, rankB)
	omegaB, deltaB := plTerms(expB, rankB, expA, rankA)

	return posterior(a, omegaA, deltaA, c), posterior(b, omegaB, deltaB, c)
}

// plTerms accumulates the Plackett-Luce omega and delta sums for one player
// of a two-player game. Ranks are 1-based, lower is better, equal means the
// game was drawn.
func plTerms(expSelf float64, rankSelf int, expOpp float64, rankOpp int) (omega, delta float64) {
	type team struct {
		exp    float64
		rank   int
		isSelf bool
	}
	teams := [2]team{{expSelf, rankSelf, true}, {expOpp, rankOpp, false}}

	for _, q := range teams {
		if q.rank > rankSelf {
			continue
		}
		var cq, ties float64
		for _, s := range teams {
			if s.rank >= q.rank {
				cq += s.exp
			}
			if s.rank == q.rank {
				ties++
			}
		}
		p := expSelf / cq
		if q.isSelf {
			omega += (1 - p) / ties
		} else {
			omega -= p / ties
		}
		delta += p * (1 - p) / ties
	}
	return omega, delta
}

func posterior(r Rating, omegaSum, deltaSum, c float64) Rating {
	sigSq := r.Sigma * r.Sigma
	gamma := r.Sigma / c
	omega := omegaSum * sigSq / c
	delta := deltaSum * gamma * sigSq / (c * c)
	return Rating{
		Mu:    r.Mu + omega,
		Sigma: r.Sigma * math.Sqrt(math.Max(1-delta, kappa)),
	}
}
