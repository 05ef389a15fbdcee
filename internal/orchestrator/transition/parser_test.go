package transition

import "testing"

func TestParse(t *testing.T) {
	t.Run("no tag yields NoTransition", func(t *testing.T) {
		got := Parse("just some text, no directive here")
		if got != NoTransition {
			t.Errorf("Parse() = %+v, want NoTransition", got)
		}
	})

	t.Run("goto extracts trimmed filename", func(t *testing.T) {
		got := Parse("Looks good.\n<goto>  NEXT.md  </goto>")
		if got.Kind != KindGoto || got.File != "NEXT.md" {
			t.Errorf("Parse() = %+v, want goto NEXT.md", got)
		}
	})

	t.Run("reset is recognized", func(t *testing.T) {
		got := Parse("<reset>RETRY.md</reset>")
		if got.Kind != KindReset || got.File != "RETRY.md" {
			t.Errorf("Parse() = %+v, want reset RETRY.md", got)
		}
	})

	t.Run("call is recognized", func(t *testing.T) {
		got := Parse("<call>SUB.md</call>")
		if got.Kind != KindCall || got.File != "SUB.md" {
			t.Errorf("Parse() = %+v, want call SUB.md", got)
		}
	})

	t.Run("result carries free-text body", func(t *testing.T) {
		got := Parse("<result>the answer is 42</result>")
		if got.Kind != KindResult || got.Body != "the answer is 42" {
			t.Errorf("Parse() = %+v, want result body", got)
		}
	})

	t.Run("case insensitive matching", func(t *testing.T) {
		got := Parse("<GoTo>NEXT.MD</GoTo>")
		if got.Kind != KindGoto || got.File != "NEXT.MD" {
			t.Errorf("Parse() = %+v, want goto NEXT.MD", got)
		}
	})

	t.Run("last tag wins when multiple are present", func(t *testing.T) {
		got := Parse("<goto>A.md</goto> then changed my mind <goto>B.md</goto>")
		if got.Kind != KindGoto || got.File != "B.md" {
			t.Errorf("Parse() = %+v, want goto B.md (last wins)", got)
		}
	})

	t.Run("fork-only response yields NoTransition for the parent", func(t *testing.T) {
		got := Parse("<fork>WORKER.md</fork><id>w1</id>")
		if got != NoTransition {
			t.Errorf("Parse() = %+v, want NoTransition", got)
		}
	})

	t.Run("fork plus a trailing goto: parent takes the goto", func(t *testing.T) {
		got := Parse("<fork>WORKER.md</fork><id>w1</id><goto>WAIT.md</goto>")
		if got.Kind != KindGoto || got.File != "WAIT.md" {
			t.Errorf("Parse() = %+v, want goto WAIT.md", got)
		}
	})

	t.Run("fork after the goto still lets the non-fork tag win", func(t *testing.T) {
		got := Parse("<goto>WAIT.md</goto><fork>WORKER.md</fork><id>w1</id>")
		if got.Kind != KindGoto || got.File != "WAIT.md" {
			t.Errorf("Parse() = %+v, want goto WAIT.md", got)
		}
	})
}

func TestParseForks(t *testing.T) {
	t.Run("finds a fork with its sibling id", func(t *testing.T) {
		forks := ParseForks("<fork>WORKER.md</fork><id>w1</id><goto>WAIT.md</goto>")
		if len(forks) != 1 || forks[0].File != "WORKER.md" || forks[0].ID != "w1" {
			t.Errorf("ParseForks() = %+v, want one WORKER.md/w1 fork", forks)
		}
	})

	t.Run("fork without an id tag", func(t *testing.T) {
		forks := ParseForks("<fork>WORKER.md</fork>")
		if len(forks) != 1 || forks[0].ID != "" {
			t.Errorf("ParseForks() = %+v, want empty ID", forks)
		}
	})

	t.Run("multiple forks in one response", func(t *testing.T) {
		forks := ParseForks("<fork>A.md</fork><id>a</id><fork>B.md</fork><id>b</id>")
		if len(forks) != 2 || forks[0].File != "A.md" || forks[1].File != "B.md" {
			t.Errorf("ParseForks() = %+v, want A.md then B.md", forks)
		}
	})

	t.Run("no forks present", func(t *testing.T) {
		forks := ParseForks("<goto>NEXT.md</goto>")
		if len(forks) != 0 {
			t.Errorf("ParseForks() = %+v, want none", forks)
		}
	})
}
