package gameclient

import (
	"math"
	"testing"

	"github.com/tilemine/gameserver/models"
)

func TestRemoteView_ExcludesSelf(t *testing.T) {
	view := NewRemoteView(DefaultSmoothing)

	view.ApplySnapshot(map[string]models.PlayerState{
		"me":    {X: 1, Y: 1},
		"other": {X: 2, Y: 2},
	}, "me")

	players := view.Players()
	if _, exists := players["me"]; exists {
		t.Error("Local session must not appear in the remote view")
	}
	if _, exists := players["other"]; !exists {
		t.Error("Remote session missing from the view")
	}
}

func TestRemoteView_SnapsOnFirstSight(t *testing.T) {
	view := NewRemoteView(DefaultSmoothing)

	view.ApplySnapshot(map[string]models.PlayerState{
		"other": {X: 7, Y: -3},
	}, "me")

	p := view.Players()["other"]
	if p.RenderX != 7 || p.RenderY != -3 {
		t.Errorf("New remote should render at its authoritative position, got (%v, %v)",
			p.RenderX, p.RenderY)
	}
}

func TestRemoteView_DropsAbsentSessions(t *testing.T) {
	view := NewRemoteView(DefaultSmoothing)

	view.ApplySnapshot(map[string]models.PlayerState{
		"a": {}, "b": {},
	}, "me")
	view.ApplySnapshot(map[string]models.PlayerState{
		"a": {},
	}, "me")

	if view.Count() != 1 {
		t.Fatalf("Expected 1 remote after b left, got %d", view.Count())
	}

	view.Remove("a")
	if view.Count() != 0 {
		t.Errorf("Expected empty view after explicit removal, got %d", view.Count())
	}
}

func TestRemoteView_Convergence(t *testing.T) {
	view := NewRemoteView(DefaultSmoothing)

	view.ApplySnapshot(map[string]models.PlayerState{"a": {X: 0, Y: 0}}, "me")
	// Move the authoritative target; rendered position must chase it.
	view.ApplySnapshot(map[string]models.PlayerState{"a": {X: 5, Y: 0}}, "me")

	const dt = 1.0 / 60
	prevDist := math.Abs(5 - view.Players()["a"].RenderX)

	for i := 0; i < 120; i++ {
		view.Advance(dt)
		dist := math.Abs(5 - view.Players()["a"].RenderX)
		if dist > prevDist {
			t.Fatalf("Distance to target increased on tick %d: %v > %v", i, dist, prevDist)
		}
		prevDist = dist
	}

	// Two seconds of simulated frames at k=8 is far beyond the convergence horizon.
	if prevDist > 0.001 {
		t.Errorf("Rendered position did not converge, still %v away", prevDist)
	}
}

func TestRemoteView_AdvanceClampsFactor(t *testing.T) {
	view := NewRemoteView(DefaultSmoothing)

	view.ApplySnapshot(map[string]models.PlayerState{"a": {X: 0, Y: 0}}, "me")
	view.ApplySnapshot(map[string]models.PlayerState{"a": {X: 10, Y: 10}}, "me")

	// A frame long enough that k*dt > 1 must snap, never overshoot.
	view.Advance(5)

	p := view.Players()["a"]
	if p.RenderX != 10 || p.RenderY != 10 {
		t.Errorf("Expected snap to (10, 10), got (%v, %v)", p.RenderX, p.RenderY)
	}
}

func TestRemoteView_IdempotentAtRest(t *testing.T) {
	view := NewRemoteView(DefaultSmoothing)
	view.ApplySnapshot(map[string]models.PlayerState{"a": {X: 3, Y: 4}}, "me")

	view.Advance(0.016)
	p := view.Players()["a"]
	if p.RenderX != 3 || p.RenderY != 4 {
		t.Errorf("A remote at rest on its target must not drift, got (%v, %v)",
			p.RenderX, p.RenderY)
	}
}

func TestRemoteView_ZeroDtIsNoop(t *testing.T) {
	view := NewRemoteView(DefaultSmoothing)
	view.ApplySnapshot(map[string]models.PlayerState{"a": {X: 0, Y: 0}}, "me")
	view.ApplySnapshot(map[string]models.PlayerState{"a": {X: 5, Y: 5}}, "me")

	view.Advance(0)
	p := view.Players()["a"]
	if p.RenderX != 0 || p.RenderY != 0 {
		t.Errorf("Zero elapsed time should not move the rendered position, got (%v, %v)",
			p.RenderX, p.RenderY)
	}
}
