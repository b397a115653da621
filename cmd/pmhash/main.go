package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"pmhash/pkg/config"
	"pmhash/pkg/hash"
	"pmhash/pkg/repl"
)

// Listens for SIGINT or SIGTERM and closes the index.
func setupCloseHandler(index *hash.HashIndex) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("closehandler invoked")
		index.Close()
		os.Exit(0)
	}()
}

// loadOptions reads the options file if one is given, then applies any flags set on the command line.
func loadOptions(path string, set map[string]bool, flags *config.Options) (*config.Options, error) {
	opts := config.NewDefaultOptions(flags.Dir)
	if path != "" {
		loaded, err := config.LoadOptions(path)
		if err != nil && !(errors.Is(err, config.ErrOptionsNotFound) && set["save-config"]) {
			return nil, err
		}
		if err == nil {
			opts = loaded
		}
	}
	if set["dir"] || path == "" {
		opts.Dir = flags.Dir
	}
	if set["backend"] {
		opts.Backend = flags.Backend
	}
	if set["hasher"] {
		opts.Hasher = flags.Hasher
	}
	if set["max-units"] {
		opts.MaxUnits = flags.MaxUnits
	}
	if set["log-level"] {
		opts.LogLevel = flags.LogLevel
	}
	if set["log-file"] {
		opts.LogFile = flags.LogFile
	}
	if set["clear"] {
		opts.ClearOnClose = flags.ClearOnClose
	}
	return opts, opts.Validate()
}

// optionsRepl exposes the effective configuration.
func optionsRepl(opts *config.Options) *repl.REPL {
	r := repl.NewRepl()
	r.AddCommand("options", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		data, err := json.MarshalIndent(opts, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	}, "Print the options the index was opened with. usage: options")
	return r
}

// Start the index shell.
func main() {
	var flags config.Options
	var promptFlag = flag.Bool("c", true, "use prompt?")
	var configFlag = flag.String("config", "", "options file (JSON)")
	var saveFlag = flag.Bool("save-config", false, "write the effective options to -config and continue")
	flag.StringVar(&flags.Dir, "dir", config.DefaultDirectory, "backing directory")
	flag.StringVar(&flags.Backend, "backend", config.BackendMmap, "storage backend: [mmap,direct]")
	flag.StringVar(&flags.Hasher, "hasher", config.HasherIdentity, "key hasher: [identity,xxhash,murmur3]")
	var maxUnits = flag.Uint("max-units", 0, "maximum number of allocation units (0 is unlimited)")
	flag.StringVar(&flags.LogLevel, "log-level", "info", "log level: [debug,info,warn,error]")
	flag.StringVar(&flags.LogFile, "log-file", "", "log file (default <dir>/"+config.LogFileName+")")
	flag.BoolVar(&flags.ClearOnClose, "clear", false, "erase the backing directory on exit")
	flag.Parse()
	flags.MaxUnits = uint32(*maxUnits)

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	opts, err := loadOptions(*configFlag, set, &flags)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if opts.LogFile == "" {
		opts.LogFile = filepath.Join(filepath.Dir(filepath.Clean(opts.Dir)), config.LogFileName)
	}
	if *saveFlag && *configFlag != "" {
		if err := opts.Save(*configFlag); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	}

	index, err := hash.Open(opts)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer index.Close()
	setupCloseHandler(index)

	r, err := repl.CombineRepls([]*repl.REPL{hash.HashRepl(index), optionsRepl(opts)})
	if err != nil {
		fmt.Println(err)
		return
	}
	prompt := config.GetPrompt(*promptFlag)
	if *promptFlag && readline.IsTerminal(int(os.Stdin.Fd())) {
		history := filepath.Join(os.TempDir(), config.DBName+"_history")
		if err := r.RunInteractive(uuid.New(), prompt, history); err != nil {
			fmt.Println(err)
		}
		return
	}
	r.Run(uuid.New(), prompt, nil, nil)
}
