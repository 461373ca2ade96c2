package jtagtap

import "testing"

// walk replays seq from source and returns the state it lands on.
func walk(source State, seq []int) State {
	s := source
	for _, tms := range seq {
		s = Next(s, tms)
	}
	return s
}

func TestTMSSequenceReachesEveryTarget(t *testing.T) {
	for s := State(0); s < numStates; s++ {
		for target := State(0); target < numStates; target++ {
			seq := TMSSequence(s, target)
			got := walk(s, seq)
			if got != target {
				t.Errorf("TMSSequence(%s, %s) = %v, landed on %s", s, target, seq, got)
			}
		}
	}
}

func TestTMSSequenceSameStateIsEmpty(t *testing.T) {
	for s := State(0); s < numStates; s++ {
		if seq := TMSSequence(s, s); len(seq) != 0 {
			t.Errorf("TMSSequence(%s, %s) = %v, want empty", s, s, seq)
		}
	}
}

// bfsDistance independently recomputes the shortest hop count between every
// state pair, so the table built in sequence.go can be checked for
// optimality without re-testing its own BFS implementation against itself.
func bfsDistance(source State) [numStates]int {
	const unreached = -1
	dist := [numStates]int{}
	for i := range dist {
		dist[i] = unreached
	}
	dist[source] = 0
	queue := []State{source}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for tms := 0; tms < 2; tms++ {
			v := transitions[u][tms]
			if dist[v] == unreached {
				dist[v] = dist[u] + 1
				queue = append(queue, v)
			}
		}
	}
	return dist
}

func TestTMSSequenceIsShortest(t *testing.T) {
	for s := State(0); s < numStates; s++ {
		dist := bfsDistance(s)
		for target := State(0); target < numStates; target++ {
			if got := len(TMSSequence(s, target)); got != dist[target] {
				t.Errorf("len(TMSSequence(%s, %s)) = %d, want shortest-path length %d",
					s, target, got, dist[target])
			}
		}
	}
}
