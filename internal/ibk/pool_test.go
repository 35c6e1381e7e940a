package ibk

import (
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunPool(t *testing.T) {
	t.Run("every task yields one result", func(t *testing.T) {
		tasks := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
		got := RunPool(3, tasks, func(n int) int { return n * n })

		if len(got) != len(tasks) {
			t.Fatalf("got %d results, want %d", len(got), len(tasks))
		}
		sort.Ints(got)
		for i, n := range tasks {
			if got[i] != n*n {
				t.Errorf("result[%d] = %d, want %d", i, got[i], n*n)
			}
		}
	})

	t.Run("no tasks", func(t *testing.T) {
		got := RunPool(4, nil, func(n int) int { return n })
		if len(got) != 0 {
			t.Errorf("got %d results, want 0", len(got))
		}
	})

	t.Run("concurrency never exceeds the bound", func(t *testing.T) {
		var running, peak atomic.Int32
		tasks := make([]int, 20)

		RunPool(3, tasks, func(int) struct{} {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return struct{}{}
		})

		if p := peak.Load(); p > 3 {
			t.Errorf("peak concurrency = %d, want <= 3", p)
		}
	})

	t.Run("a failing task does not cancel its siblings", func(t *testing.T) {
		type result struct {
			n   int
			err error
		}
		tasks := []int{1, 2, 3, 4}
		got := RunPool(2, tasks, func(n int) result {
			if n == 2 {
				return result{n: n, err: errors.New("boom")}
			}
			time.Sleep(time.Millisecond)
			return result{n: n}
		})

		if len(got) != 4 {
			t.Fatalf("got %d results, want 4", len(got))
		}
		failed := 0
		for _, r := range got {
			if r.err != nil {
				failed++
			}
		}
		if failed != 1 {
			t.Errorf("failed results = %d, want 1", failed)
		}
	})

	t.Run("zero workers uses the default", func(t *testing.T) {
		got := RunPool(0, []string{"a", "b"}, func(s string) string { return s })
		if len(got) != 2 {
			t.Errorf("got %d results, want 2", len(got))
		}
	})
}
