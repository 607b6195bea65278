package CG_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	CG "github.com/sqlvibe/svcomp/internal/CG"
	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/config"
)

func compileSelect(t *testing.T, sql string) *CG.Plan {
	t.Helper()
	plan, err := CG.CompilePlan(IS.NewSchema(), config.DefaultConfig().Compiler, QP.MustParseSelect(sql))
	if err != nil {
		t.Fatal(err)
	}
	return plan
}

func TestPlanCache_GetPut(t *testing.T) {
	pc := CG.NewPlanCache(10)
	plan := compileSelect(t, "SELECT 1")
	pc.Put("SELECT 1", 1, plan)
	got, ok := pc.Get("SELECT 1", 1)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != plan {
		t.Error("expected same plan pointer")
	}
}

func TestPlanCache_Miss(t *testing.T) {
	pc := CG.NewPlanCache(10)
	if _, ok := pc.Get("SELECT 99", 1); ok {
		t.Error("expected cache miss")
	}
}

func TestPlanCache_SchemaVersion(t *testing.T) {
	pc := CG.NewPlanCache(10)
	pc.Put("SELECT 1", 3, compileSelect(t, "SELECT 1"))
	if _, ok := pc.Get("SELECT 1", 4); ok {
		t.Error("plan compiled for version 3 returned for version 4")
	}
	if _, ok := pc.Get("SELECT 1", 3); !ok {
		t.Error("expected hit for the matching version")
	}

	// recompiling replaces the entry
	pc.Put("SELECT 1", 4, compileSelect(t, "SELECT 1"))
	if pc.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", pc.Len())
	}
	if _, ok := pc.Get("SELECT 1", 3); ok {
		t.Error("old version still cached")
	}
}

func TestPlanCache_Invalidate(t *testing.T) {
	pc := CG.NewPlanCache(10)
	pc.Put("SELECT 1", 1, compileSelect(t, "SELECT 1"))
	pc.Invalidate()
	if _, ok := pc.Get("SELECT 1", 1); ok {
		t.Error("expected cache miss after Invalidate")
	}
	if pc.Len() != 0 {
		t.Errorf("expected 0 entries, got %d", pc.Len())
	}
}

func TestPlanCache_Eviction(t *testing.T) {
	pc := CG.NewPlanCache(2)
	pc.Put("A", 1, compileSelect(t, "SELECT 1"))
	time.Sleep(time.Millisecond) // ensure different timestamps
	pc.Put("B", 1, compileSelect(t, "SELECT 2"))
	time.Sleep(time.Millisecond)
	pc.Put("C", 1, compileSelect(t, "SELECT 3"))
	if pc.Len() != 2 {
		t.Errorf("expected 2 entries after eviction, got %d", pc.Len())
	}
	if _, ok := pc.Get("A", 1); ok {
		t.Error("expected A to be evicted")
	}
	if _, ok := pc.Get("C", 1); !ok {
		t.Error("expected C to be present")
	}
}

func TestPlanCache_Unbounded(t *testing.T) {
	pc := CG.NewPlanCache(0)
	plan := compileSelect(t, "SELECT 1")
	for i := 0; i < 100; i++ {
		pc.Put(fmt.Sprintf("SELECT %d", i), 1, plan)
	}
	if pc.Len() != 100 {
		t.Errorf("expected 100 entries, got %d", pc.Len())
	}
}

func TestPlanCache_Stats(t *testing.T) {
	pc := CG.NewPlanCache(10)
	pc.Put("SELECT 1", 1, compileSelect(t, "SELECT 1"))
	pc.Get("SELECT 1", 1)
	pc.Get("SELECT 1", 1)
	pc.Get("SELECT 2", 1)
	hits, misses := pc.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("hits %d misses %d, want 2 and 1", hits, misses)
	}
}

func TestPlanCache_Concurrent(t *testing.T) {
	pc := CG.NewPlanCache(8)
	plan := compileSelect(t, "SELECT 1")
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				sql := fmt.Sprintf("SELECT %d", (g+i)%16)
				pc.Put(sql, 1, plan)
				pc.Get(sql, 1)
			}
		}(g)
	}
	wg.Wait()
	if pc.Len() > 8 {
		t.Errorf("cache grew past its limit: %d", pc.Len())
	}
}
