// File: internal/checkin/detector_test.go
package checkin

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/forumsign/forumsign/internal/browser"
	"github.com/forumsign/forumsign/internal/browser/browsertest"
)

func newTestDetector(drv browser.Driver) *Detector {
	return NewDetector(drv, time.Second, zap.NewNop())
}

// notSignedIn simulates the forum bouncing an incomplete check-in off the
// plugin address, so the address itself cannot count as evidence.
func notSignedIn(drv *browsertest.FakeDriver) {
	drv.Redirects[SignPageURL] = "https://www.55188.com/forum.php"
}

// -- Signal reduction --

func TestReduceExplicitSignalDominates(t *testing.T) {
	signals := []CompletionSignal{
		{Kind: WeakIndicator, Text: "连续签到 2 天"},
		{Kind: ExplicitSuccess, Text: "您的签到排名：123"},
		{Kind: WeakIndicator, Text: "签到等级：Lv.3"},
	}
	out := reduce(signals, newOutcome("a"))
	assert.True(t, out.Succeeded)
	assert.Equal(t, BasisExplicit, out.ConfidenceBasis)
}

func TestReduceAlreadyDoneWins(t *testing.T) {
	signals := []CompletionSignal{
		{Kind: WeakIndicator, Text: "每日签到"},
		{Kind: AlreadyDone, Text: "您今日已经签到"},
	}
	out := reduce(signals, newOutcome("a"))
	assert.True(t, out.Succeeded)
	assert.Equal(t, BasisAlreadyDone, out.ConfidenceBasis)
}

func TestReduceWeakIndicatorThresholdBoundary(t *testing.T) {
	weak := func(n int) []CompletionSignal {
		signals := make([]CompletionSignal, n)
		for i := range signals {
			signals[i] = CompletionSignal{Kind: WeakIndicator, Text: fmt.Sprintf("indicator %d", i)}
		}
		return signals
	}

	t.Run("two weak votes are not enough", func(t *testing.T) {
		out := reduce(weak(WeakIndicatorThreshold-1), newOutcome("a"))
		assert.False(t, out.Succeeded)
		assert.Equal(t, BasisNoSignal, out.ConfidenceBasis)
	})

	t.Run("three weak votes suffice", func(t *testing.T) {
		out := reduce(weak(WeakIndicatorThreshold), newOutcome("a"))
		assert.True(t, out.Succeeded)
		assert.Equal(t, BasisAggregate, out.ConfidenceBasis)
	})
}

func TestReduceNoSignals(t *testing.T) {
	out := reduce(nil, newOutcome("a"))
	assert.False(t, out.Succeeded)
	assert.Equal(t, BasisNoSignal, out.ConfidenceBasis)
}

// -- Detection against a scripted surface --

func TestDetectRankPhrasePromotesToExplicit(t *testing.T) {
	drv := browsertest.New()
	notSignedIn(drv)
	drv.Add(completionEvidence[0].Selector.Expr, "您的签到排名：88")

	out := newTestDetector(drv).Detect(context.Background(), newOutcome("a"))
	assert.True(t, out.Succeeded)
	assert.Equal(t, BasisExplicit, out.ConfidenceBasis)
	assert.Equal(t, "您的签到排名：88", out.Metadata["rank"])
}

func TestDetectAddressAloneIsExplicit(t *testing.T) {
	drv := browsertest.New()
	// Navigation sticks on the plugin address: the page state itself proves
	// the check-in occurred.
	out := newTestDetector(drv).Detect(context.Background(), newOutcome("a"))
	assert.True(t, out.Succeeded)
	assert.Equal(t, BasisAddress, out.ConfidenceBasis)
}

func TestDetectAlreadyDonePhrasing(t *testing.T) {
	drv := browsertest.New()
	notSignedIn(drv)
	drv.Add(alreadyDoneTargets[0].Expr, "今日已签到")

	out := newTestDetector(drv).Detect(context.Background(), newOutcome("a"))
	assert.True(t, out.Succeeded)
	assert.Equal(t, BasisAlreadyDone, out.ConfidenceBasis)
}

func TestDetectAggregatesWeakIndicators(t *testing.T) {
	drv := browsertest.New()
	notSignedIn(drv)
	drv.Add(completionEvidence[1].Selector.Expr, "连续签到 5 天")
	drv.Add(completionEvidence[2].Selector.Expr, "签到等级：Lv.4")
	drv.Add(completionEvidence[4].Selector.Expr, "每日签到")

	out := newTestDetector(drv).Detect(context.Background(), newOutcome("a"))
	assert.True(t, out.Succeeded)
	assert.Equal(t, BasisAggregate, out.ConfidenceBasis)
	assert.Equal(t, "连续签到 5 天", out.Metadata["streak"])
	assert.Equal(t, "签到等级：Lv.4", out.Metadata["level"])
}

func TestDetectTwoWeakIndicatorsAreNotEnough(t *testing.T) {
	drv := browsertest.New()
	notSignedIn(drv)
	drv.Add(completionEvidence[1].Selector.Expr, "连续签到 5 天")
	drv.Add(completionEvidence[2].Selector.Expr, "签到等级：Lv.4")

	out := newTestDetector(drv).Detect(context.Background(), newOutcome("a"))
	assert.False(t, out.Succeeded)
	assert.Equal(t, BasisNoSignal, out.ConfidenceBasis)
}

func TestDetectNoSignal(t *testing.T) {
	drv := browsertest.New()
	notSignedIn(drv)

	out := newTestDetector(drv).Detect(context.Background(), newOutcome("a"))
	assert.False(t, out.Succeeded)
	assert.Equal(t, BasisNoSignal, out.ConfidenceBasis)
}

func TestDetectIsIdempotentOnUnchangedSurface(t *testing.T) {
	drv := browsertest.New()
	notSignedIn(drv)
	drv.Add(completionEvidence[0].Selector.Expr, "您的签到排名：7")
	drv.Add(completionEvidence[1].Selector.Expr, "连续签到 9 天")

	d := newTestDetector(drv)
	first := d.Detect(context.Background(), newOutcome("a"))
	second := d.Detect(context.Background(), newOutcome("a"))
	require.Empty(t, cmp.Diff(first, second))
}
