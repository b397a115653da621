// Package repl implements the line-oriented command shell used by the command line tools.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
)

type ReplCommand func(string, *REPLConfig) (output string, err error)

const (
	// Trigger for the help meta-command that prints out all help strings
	TriggerHelpMetacommand = ".help"

	// Trigger that ends an interactive session
	TriggerExitMetacommand = ".exit"

	// String that should be prepended to any error before being sent to the output writer
	ErrorPrependStr = "ERROR: "
)

var (
	// use in combine repls function
	ErrOverlappingCommands = errors.New("found overlapping")

	// Error for when a sent trigger is not associated with any known commands
	ErrCommandNotFound = errors.New("command not found")

	// Error for registering a command under a reserved trigger
	ErrReservedTrigger = errors.New("trigger is reserved")
)

// REPL struct.
type REPL struct {
	commands map[string]ReplCommand
	help     map[string]string
}

// REPL Config struct.
type REPLConfig struct {
	clientId uuid.UUID
	output   io.Writer
}

// Get address.
func (replConfig *REPLConfig) GetAddr() uuid.UUID {
	return replConfig.clientId
}

// GetOutput returns the writer the session prints to.
func (replConfig *REPLConfig) GetOutput() io.Writer {
	return replConfig.output
}

// Construct an empty REPL.
func NewRepl() *REPL {
	return &REPL{make(map[string]ReplCommand), make(map[string]string)}
}

// Combines a slice of REPLs.
// Error if the REPLs being combined have any overlapping commands (same trigger).
// If no REPLs are given, return a new empty REPL.
func CombineRepls(repls []*REPL) (*REPL, error) {
	newrepl := NewRepl()
	for _, r := range repls {
		for trigger, action := range r.commands {
			if _, exists := newrepl.commands[trigger]; exists {
				return nil, fmt.Errorf("%w: %s", ErrOverlappingCommands, trigger)
			}
			newrepl.commands[trigger] = action
			newrepl.help[trigger] = r.help[trigger]
		}
	}
	return newrepl, nil
}

// Get commands.
func (r *REPL) GetCommands() map[string]ReplCommand {
	return r.commands
}

// Get help.
func (r *REPL) GetHelp() map[string]string {
	return r.help
}

// Add a command, along with its help string, to the set of commands.
// A duplicate trigger overwrites the previous command.
func (r *REPL) AddCommand(trigger string, action ReplCommand, help string) error {
	if trigger == TriggerHelpMetacommand || trigger == TriggerExitMetacommand {
		return fmt.Errorf("%w: %s", ErrReservedTrigger, trigger)
	}
	r.commands[trigger] = action
	r.help[trigger] = help
	return nil
}

// Return all REPL commands' help strings as one string, sorted by trigger.
func (r *REPL) HelpString() string {
	triggers := make([]string, 0, len(r.help))
	for k := range r.help {
		triggers = append(triggers, k)
	}
	sort.Strings(triggers)
	var sb strings.Builder
	for _, k := range triggers {
		fmt.Fprintf(&sb, "%s: %s\n", k, r.help[k])
	}
	return sb.String()
}

// Execute runs one line of input and writes its result to output.
// It returns false once the exit meta-command is seen.
func (r *REPL) Execute(payload string, replConfig *REPLConfig, output io.Writer) bool {
	fields := strings.Fields(payload)
	if len(fields) == 0 {
		return true
	}
	trigger := fields[0]
	switch trigger {
	case TriggerHelpMetacommand:
		io.WriteString(output, r.HelpString())
		return true
	case TriggerExitMetacommand:
		return false
	}
	command, exists := r.commands[trigger]
	if !exists {
		fmt.Fprintf(output, "%s%s\n", ErrorPrependStr, ErrCommandNotFound)
		return true
	}
	result, err := command(payload, replConfig)
	if err != nil {
		fmt.Fprintf(output, "%s%s\n", ErrorPrependStr, err)
		return true
	}
	// Append newline if there is output and if it doesn't end with a newline already
	if len(result) != 0 && !strings.HasSuffix(result, "\n") {
		result = result + "\n"
	}
	io.WriteString(output, result)
	return true
}

// Run writes the welcome string and then runs the REPL loop over input until
// it is exhausted. Input and output default to Stdin and Stdout.
// The whole line, trigger included, is passed to the command.
func (r *REPL) Run(clientId uuid.UUID, prompt string, input io.Reader, output io.Writer) {
	if input == nil {
		input = os.Stdin
	}
	if output == nil {
		output = os.Stdout
	}
	scanner := bufio.NewScanner(input)
	replConfig := &REPLConfig{clientId: clientId, output: output}
	fmt.Fprintln(output, welcome)
	io.WriteString(output, prompt)
	for scanner.Scan() {
		if !r.Execute(scanner.Text(), replConfig, output) {
			break
		}
		io.WriteString(output, prompt)
	}
	// Print an additional line if we encountered an EOF character.
	io.WriteString(output, "\n")
}

// RunInteractive runs the REPL on a terminal with line editing, history and
// completion of command triggers. historyFile may be empty.
func (r *REPL) RunInteractive(clientId uuid.UUID, prompt string, historyFile string) error {
	items := make([]readline.PrefixCompleterInterface, 0, len(r.commands)+2)
	items = append(items, readline.PcItem(TriggerHelpMetacommand), readline.PcItem(TriggerExitMetacommand))
	for trigger := range r.commands {
		items = append(items, readline.PcItem(trigger))
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       TriggerExitMetacommand,
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	output := rl.Stdout()
	replConfig := &REPLConfig{clientId: clientId, output: output}
	fmt.Fprintln(output, welcome)
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if !r.Execute(line, replConfig, output) {
			return nil
		}
	}
}

const welcome = "Welcome to the pmhash REPL! Please type '.help' to see the list of available commands."
