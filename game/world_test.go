package game

import (
	"testing"

	"github.com/tilemine/gameserver/models"
)

func newTestWorld() *World {
	return NewWorld(WorldConfig{})
}

func TestWorld_Step(t *testing.T) {
	w := newTestWorld()

	st := w.Step(models.DirectionRight, 2)
	if st.X != 2 || st.Y != 0 {
		t.Errorf("Expected (2, 0) after stepping right, got (%v, %v)", st.X, st.Y)
	}
	if st.Direction != models.DirectionRight || !st.IsMoving {
		t.Errorf("Step should set direction and movement flag, got %s/%v", st.Direction, st.IsMoving)
	}

	st = w.Step(models.DirectionUp, 3)
	if st.X != 2 || st.Y != 3 {
		t.Errorf("Expected (2, 3) after stepping up, got (%v, %v)", st.X, st.Y)
	}

	st = w.Idle()
	if st.IsMoving {
		t.Error("Idle should clear the movement flag")
	}
	if st.X != 2 || st.Y != 3 {
		t.Error("Idle should not move the avatar")
	}
}

func TestWorld_StepClampsToBounds(t *testing.T) {
	w := NewWorld(WorldConfig{Width: 10, Height: 10})

	for i := 0; i < 20; i++ {
		w.Step(models.DirectionRight, 1)
	}
	if st := w.Player(); st.X != 5 {
		t.Errorf("Expected X clamped to half extent 5, got %v", st.X)
	}

	for i := 0; i < 20; i++ {
		w.Step(models.DirectionDown, 1)
	}
	if st := w.Player(); st.Y != -5 {
		t.Errorf("Expected Y clamped to -5, got %v", st.Y)
	}
}

func TestWorld_NearestPrize(t *testing.T) {
	w := newTestWorld()
	w.UpdatePrizeLocations([]Prize{
		{X: 1, Y: 0},   // within reach
		{X: 1.5, Y: 0}, // within reach, but farther
		{X: 50, Y: 50}, // far away
	})

	if idx := w.NearestPrize(); idx != 0 {
		t.Errorf("Expected nearest prize index 0, got %d", idx)
	}

	w.UpdatePlayerPosition(50, 49)
	if idx := w.NearestPrize(); idx != 2 {
		t.Errorf("Expected nearest prize index 2, got %d", idx)
	}

	// Out of interaction distance from everything.
	w.UpdatePlayerPosition(-40, -40)
	if idx := w.NearestPrize(); idx != -1 {
		t.Errorf("Expected no prize in reach, got %d", idx)
	}
}

func TestWorld_Mine_ProgressAndCompletion(t *testing.T) {
	w := NewWorld(WorldConfig{MiningIncrement: 50, MaxMiningProgress: 100})
	w.UpdatePrizeLocations([]Prize{{X: 0, Y: 0, Amount: 25}})

	var callbacks int
	w.SetMinedCallback(func(p Prize) {
		callbacks++
		if p.Amount != 25 {
			t.Errorf("Callback got wrong prize amount: %d", p.Amount)
		}
	})

	res := w.Mine()
	if !res.Mined || res.Completed {
		t.Fatalf("First strike should mine without completing: %+v", res)
	}
	if w.Prizes()[0].Progress != 50 {
		t.Errorf("Expected progress 50, got %d", w.Prizes()[0].Progress)
	}
	if w.Balance() != 0 || w.MinedCount() != 0 {
		t.Error("Balance and count must only change on completion")
	}

	res = w.Mine()
	if !res.Completed || res.Amount != 25 {
		t.Fatalf("Second strike should complete with amount 25: %+v", res)
	}
	if w.Balance() != 25 {
		t.Errorf("Expected balance 25, got %d", w.Balance())
	}
	if w.MinedCount() != 1 {
		t.Errorf("Expected mined count 1, got %d", w.MinedCount())
	}
	if callbacks != 1 {
		t.Errorf("Expected exactly one completion callback, got %d", callbacks)
	}
	if !w.ShowingSuccess() {
		t.Error("Completion should raise the success flag")
	}

	w.DismissSuccess()
	if w.ShowingSuccess() {
		t.Error("DismissSuccess should clear the flag")
	}

	// 挖完的矿格不再参与，也不会重复计入
	res = w.Mine()
	if res.Mined || res.PrizeIndex != -1 {
		t.Fatalf("A completed prize must no longer be minable: %+v", res)
	}
	if w.Balance() != 25 || w.MinedCount() != 1 || callbacks != 1 {
		t.Error("Completed prize was credited more than once")
	}
}

func TestWorld_Mine_ProgressCaps(t *testing.T) {
	w := NewWorld(WorldConfig{MiningIncrement: 30, MaxMiningProgress: 100})
	w.UpdatePrizeLocations([]Prize{{X: 0, Y: 0, Amount: 10}})

	var res MineResult
	for i := 0; i < 4; i++ {
		res = w.Mine()
	}
	if !res.Completed {
		t.Fatal("Fourth strike at increment 30 should complete")
	}
	if got := w.Prizes()[0].Progress; got != 100 {
		t.Errorf("Progress must cap at 100, got %d", got)
	}
}

func TestWorld_Mine_OutOfReach(t *testing.T) {
	w := newTestWorld()
	w.UpdatePrizeLocations([]Prize{{X: 30, Y: 30, Amount: 10}})

	res := w.Mine()
	if res.Mined || res.Completed || res.PrizeIndex != -1 {
		t.Errorf("Mining with nothing in reach should be a no-op: %+v", res)
	}
}

func TestWorld_SetBalance(t *testing.T) {
	w := newTestWorld()
	w.SetBalance(1234)
	if w.Balance() != 1234 {
		t.Errorf("Expected balance 1234, got %d", w.Balance())
	}
}
