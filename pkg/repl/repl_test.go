package repl_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"pmhash/pkg/repl"
)

func echo(payload string, _ *repl.REPLConfig) (string, error) { return payload, nil }
func fail(string, *repl.REPLConfig) (string, error)           { return "", errors.New("boom") }
func nothing(string, *repl.REPLConfig) (string, error)        { return "", nil }

func TestRepl(t *testing.T) {
	t.Run("NewRepl", testNewRepl)
	t.Run("Add", testAdd)
	t.Run("ReservedTriggers", testReservedTriggers)
	t.Run("HelpString", testHelpString)
	t.Run("CombineZeroRepl", testCombineZeroRepl)
	t.Run("Combine", testCombine)
	t.Run("CombineOverlapping", testCombineOverlapping)
}

// Tests that a new REPL doesn't contain any commands other than the metacommands.
func testNewRepl(t *testing.T) {
	r := repl.NewRepl()
	if len(r.GetCommands()) != 0 || len(r.GetHelp()) != 0 {
		t.Fatal("a new repl should have no commands")
	}
}

func testAdd(t *testing.T) {
	r := repl.NewRepl()
	for _, trigger := range []string{"1", "2", "3"} {
		if err := r.AddCommand(trigger, nothing, trigger+" help"); err != nil {
			t.Fatal(err)
		}
	}
	for _, trigger := range []string{"1", "2", "3"} {
		if _, ok := r.GetCommands()[trigger]; !ok {
			t.Fatal("bad add command")
		}
		if r.GetHelp()[trigger] != trigger+" help" {
			t.Fatal("bad add help")
		}
	}
}

func testReservedTriggers(t *testing.T) {
	r := repl.NewRepl()
	for _, trigger := range []string{repl.TriggerHelpMetacommand, repl.TriggerExitMetacommand} {
		if err := r.AddCommand(trigger, nothing, ""); !errors.Is(err, repl.ErrReservedTrigger) {
			t.Fatalf("%s: expected ErrReservedTrigger, got %v", trigger, err)
		}
	}
}

// Help lines are sorted by trigger.
func testHelpString(t *testing.T) {
	r := repl.NewRepl()
	r.AddCommand("b", nothing, "b help")
	r.AddCommand("a", nothing, "a help")
	if got := r.HelpString(); got != "a: a help\nb: b help\n" {
		t.Fatalf("unexpected help string %q", got)
	}
}

// Tests that combining zero REPLs gives you an empty REPL
func testCombineZeroRepl(t *testing.T) {
	r, err := repl.CombineRepls([]*repl.REPL{})
	if err != nil {
		t.Fatal("bad combine")
	}
	if len(r.GetCommands()) != 0 {
		t.Fatal("bad combine - should not have any commands")
	}
}

func testCombine(t *testing.T) {
	r1, r2 := repl.NewRepl(), repl.NewRepl()
	r1.AddCommand("1", nothing, "1 help")
	r2.AddCommand("2", nothing, "2 help")
	r, err := repl.CombineRepls([]*repl.REPL{r1, r2})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.GetCommands()) != 2 || r.GetHelp()["2"] != "2 help" {
		t.Fatal("bad combine")
	}
}

func testCombineOverlapping(t *testing.T) {
	r1, r2 := repl.NewRepl(), repl.NewRepl()
	r1.AddCommand("1", nothing, "")
	r2.AddCommand("1", nothing, "")
	if _, err := repl.CombineRepls([]*repl.REPL{r1, r2}); !errors.Is(err, repl.ErrOverlappingCommands) {
		t.Fatalf("expected ErrOverlappingCommands, got %v", err)
	}
}

func TestReplRun(t *testing.T) {
	r := repl.NewRepl()
	r.AddCommand("echo", echo, "echo the line")
	r.AddCommand("fail", fail, "always fails")
	var output bytes.Buffer
	input := "echo hello world\n\n.help\nfail\nmissing\n.exit\necho unreachable\n"
	r.Run(uuid.New(), "> ", strings.NewReader(input), &output)
	got := output.String()
	for _, want := range []string{
		"echo hello world\n",
		"echo: echo the line\n",
		repl.ErrorPrependStr + "boom\n",
		repl.ErrorPrependStr + repl.ErrCommandNotFound.Error() + "\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output is missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "unreachable") {
		t.Fatal("input after .exit should not run")
	}
}

func TestExecute(t *testing.T) {
	r := repl.NewRepl()
	r.AddCommand("echo", echo, "")
	var output bytes.Buffer
	if !r.Execute("echo x", nil, &output) || output.String() != "echo x\n" {
		t.Fatalf("unexpected output %q", output.String())
	}
	if r.Execute(".exit", nil, &output) {
		t.Fatal(".exit should end the session")
	}
}
