package testutil

import "testing"

// Given, When and Then nest subtests so a failure reads as a sentence.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Given", desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "When", desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Then", desc, fn)
}

func step(t *testing.T, keyword, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run(keyword+" "+desc, fn)
}

// Scenario is one row of a flat Given/When/Then table. Arrange runs under the
// Given step and Assert under the Then step, both against the value Act returns.
type Scenario[S, R any] struct {
	Given   string
	When    string
	Then    string
	Arrange func(t *testing.T) S
	Act     func(t *testing.T, s S) R
	Assert  func(t *testing.T, s S, r R)
}

// RunScenarios runs each scenario as its own Given/When/Then subtree.
func RunScenarios[S, R any](t *testing.T, scenarios []Scenario[S, R]) {
	t.Helper()
	for _, sc := range scenarios {
		Given(t, sc.Given, func(t *testing.T) {
			s := sc.Arrange(t)
			When(t, sc.When, func(t *testing.T) {
				r := sc.Act(t, s)
				Then(t, sc.Then, func(t *testing.T) {
					sc.Assert(t, s, r)
				})
			})
		})
	}
}
