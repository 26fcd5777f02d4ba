package game

import (
	"math"
	"math/rand"
	"testing"
)

func TestGeneratePrizes_Placement(t *testing.T) {
	cfg := PrizeConfig{GridSize: 100, Count: 3, MinAmount: 50, MaxAmount: 500}

	for seed := int64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		prizes := GeneratePrizes(cfg, rng)

		if len(prizes) == 0 || len(prizes) > cfg.Count {
			t.Fatalf("Seed %d: expected between 1 and %d prizes, got %d", seed, cfg.Count, len(prizes))
		}

		// 100 格的地图落点范围是 [-3, 3]
		for i, p := range prizes {
			if p.X < -3 || p.X > 3 || p.Y < -3 || p.Y > 3 {
				t.Errorf("Seed %d: prize %d out of bounds at (%v, %v)", seed, i, p.X, p.Y)
			}
			if p.Progress != 0 {
				t.Errorf("Seed %d: prize %d should start with zero progress", seed, i)
			}
			if p.Amount < cfg.MinAmount || p.Amount > cfg.MaxAmount {
				t.Errorf("Seed %d: prize %d amount %d outside [%d, %d]",
					seed, i, p.Amount, cfg.MinAmount, cfg.MaxAmount)
			}
		}

		// Pairwise spacing holds for every prize that was placed.
		for i := 0; i < len(prizes); i++ {
			for j := i + 1; j < len(prizes); j++ {
				d := math.Hypot(prizes[i].X-prizes[j].X, prizes[i].Y-prizes[j].Y)
				if d < 4 {
					t.Errorf("Seed %d: prizes %d and %d only %v apart", seed, i, j, d)
				}
			}
		}
	}
}

func TestGeneratePrizes_FixedAmount(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	prizes := GeneratePrizes(PrizeConfig{GridSize: 100, Count: 2, MinAmount: 100, MaxAmount: 100}, rng)

	for _, p := range prizes {
		if p.Amount != 100 {
			t.Errorf("Expected fixed amount 100, got %d", p.Amount)
		}
	}
}

func TestGeneratePrizes_CrowdedMapSkips(t *testing.T) {
	// Asking for far more prizes than the spacing rule allows must not hang
	// and must never violate the minimum distance.
	rng := rand.New(rand.NewSource(7))
	prizes := GeneratePrizes(PrizeConfig{GridSize: 100, Count: 50, MinAmount: 1, MaxAmount: 1}, rng)

	if len(prizes) == 0 {
		t.Fatal("Expected at least one prize even on a crowded map")
	}
	for i := 0; i < len(prizes); i++ {
		for j := i + 1; j < len(prizes); j++ {
			d := math.Hypot(prizes[i].X-prizes[j].X, prizes[i].Y-prizes[j].Y)
			if d < 4 {
				t.Errorf("Prizes %d and %d only %v apart", i, j, d)
			}
		}
	}
}
