package rating

import (
	"math"
	"testing"
)

func TestPredictDrawFreshPair(t *testing.T) {
	q := PredictDraw(Default(), Default())
	if q <= 0.3 {
		t.Errorf("fresh pair quality = %v, want > 0.3", q)
	}
	if q <= 0 || q >= 1 {
		t.Errorf("quality %v out of (0, 1)", q)
	}
	// Equal ratings with shared sigma: known closed form sqrt(2β²/(2β²+2σ²)).
	want := math.Sqrt(2 * beta * beta / (2*beta*beta + 2*DefaultSigma*DefaultSigma))
	if math.Abs(q-want) > 1e-12 {
		t.Errorf("fresh pair quality = %v, want %v", q, want)
	}
}

func TestPredictDrawMismatchedPair(t *testing.T) {
	q := PredictDraw(New(5, 1), New(45, 1))
	if q >= 1e-6 {
		t.Errorf("mismatched pair quality = %v, want < 1e-6", q)
	}
}

func TestPredictDrawSymmetric(t *testing.T) {
	a, b := New(30, 2), New(20, 5)
	if q1, q2 := PredictDraw(a, b), PredictDraw(b, a); q1 != q2 {
		t.Errorf("PredictDraw not symmetric: %v vs %v", q1, q2)
	}
}

func TestPredictDrawBounds(t *testing.T) {
	cases := []struct {
		a, b Rating
	}{
		{Default(), Default()},
		{New(5, 1), New(45, 1)},
		{New(0, 0.5), New(0, 0.5)},
		{New(100, 8.333), New(-100, 8.333)},
	}
	for _, c := range cases {
		q := PredictDraw(c.a, c.b)
		if q < 0 || q > 1 {
			t.Errorf("PredictDraw(%v, %v) = %v, out of [0, 1]", c.a, c.b, q)
		}
	}
}

func TestRateWinnerGainsLoserLoses(t *testing.T) {
	a, b := Default(), Default()
	newA, newB := Rate(a, b, 10, 3)

	if newA.Mu <= a.Mu {
		t.Errorf("winner mu %v -> %v, want increase", a.Mu, newA.Mu)
	}
	if newB.Mu >= b.Mu {
		t.Errorf("loser mu %v -> %v, want decrease", b.Mu, newB.Mu)
	}
	if newA.Sigma >= a.Sigma || newB.Sigma >= b.Sigma {
		t.Errorf("sigma should shrink after a game: %v -> %v, %v -> %v",
			a.Sigma, newA.Sigma, b.Sigma, newB.Sigma)
	}
	if newA.Sigma <= 0 || newB.Sigma <= 0 {
		t.Errorf("sigma must stay positive: %v, %v", newA.Sigma, newB.Sigma)
	}
}

func TestRateEqualPairIsSymmetric(t *testing.T) {
	newA, newB := Rate(Default(), Default(), 1, 0)
	gain := newA.Mu - DefaultMu
	loss := DefaultMu - newB.Mu
	if math.Abs(gain-loss) > 1e-9 {
		t.Errorf("equal pair update not symmetric: gain %v, loss %v", gain, loss)
	}
}

func TestRateDraw(t *testing.T) {
	a, b := Default(), Default()
	newA, newB := Rate(a, b, 4, 4)

	if math.Abs(newA.Mu-a.Mu) > 1e-9 || math.Abs(newB.Mu-b.Mu) > 1e-9 {
		t.Errorf("draw of equals should keep mu: %v, %v", newA.Mu, newB.Mu)
	}
	if newA.Sigma >= a.Sigma || newB.Sigma >= b.Sigma {
		t.Errorf("draw should still shrink sigma: %v -> %v, %v -> %v",
			a.Sigma, newA.Sigma, b.Sigma, newB.Sigma)
	}
}

func TestRateDrawPullsUnequalTogether(t *testing.T) {
	strong, weak := New(30, 4), New(20, 4)
	newStrong, newWeak := Rate(strong, weak, 2, 2)
	if newStrong.Mu >= strong.Mu {
		t.Errorf("drawing against a weaker player should cost mu: %v -> %v", strong.Mu, newStrong.Mu)
	}
	if newWeak.Mu <= weak.Mu {
		t.Errorf("drawing against a stronger player should gain mu: %v -> %v", weak.Mu, newWeak.Mu)
	}
}

func TestRateMonotonicity(t *testing.T) {
	cases := []struct {
		a, b           Rating
		scoreA, scoreB float64
	}{
		{Default(), Default(), 5, 0},
		{New(30, 3), New(20, 6), 1, 0},
		{New(20, 6), New(30, 3), 7, 2},
		{New(5, 1), New(45, 1), 10, 0},
		{Default(), Default(), 3, 3},
	}
	for _, c := range cases {
		newA, newB := Rate(c.a, c.b, c.scoreA, c.scoreB)
		dA, dB := newA.Mu-c.a.Mu, newB.Mu-c.b.Mu
		if c.scoreA > c.scoreB && dA < dB {
			t.Errorf("Rate(%v, %v, %v, %v): winner delta %v < loser delta %v",
				c.a, c.b, c.scoreA, c.scoreB, dA, dB)
		}
	}
}

func TestRateDeterministic(t *testing.T) {
	a, b := New(27.1, 7.2), New(23.9, 5.5)
	a1, b1 := Rate(a, b, 2, 1)
	a2, b2 := Rate(a, b, 2, 1)
	if a1 != a2 || b1 != b2 {
		t.Errorf("Rate is not deterministic: %v/%v vs %v/%v", a1, b1, a2, b2)
	}
}

func TestUpsetMovesMoreThanExpectedWin(t *testing.T) {
	strong, weak := New(35, 5), New(15, 5)

	_, weakAfterUpset := Rate(strong, weak, 0, 1)
	upsetGain := weakAfterUpset.Mu - weak.Mu

	strongAfterWin, _ := Rate(strong, weak, 1, 0)
	expectedGain := strongAfterWin.Mu - strong.Mu

	if upsetGain <= expectedGain {
		t.Errorf("upset gain %v should exceed expected-win gain %v", upsetGain, expectedGain)
	}
}
