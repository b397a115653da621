package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"pmhash/pkg/config"
	"pmhash/pkg/hash"
	"pmhash/pkg/workload"
)

// Default workload names, read as <workloads>/<name>-load.txt and <workloads>/<name>-run.txt.
var defaultWorkloads = []string{"1w-rw-50-50", "10w-rw-0-100", "10w-rw-100-0", "10w-rw-25-75",
	"10w-rw-75-25", "10w-rw-50-50", "220w-rw-50-50"}

// Listens for SIGINT or SIGTERM and erases the index being benchmarked.
func setupCloseHandler(current **hash.HashIndex) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("closehandler invoked")
		if *current != nil {
			(*current).Destroy()
		}
		os.Exit(1)
	}()
}

// phase replays one workload file and prints its throughput.
func phase(index *hash.HashIndex, name string, path string) error {
	ops, err := workload.ParseFile(path)
	if err != nil {
		return err
	}
	fmt.Printf("filename: %s\n", path)
	printResult(name, workload.Replay(index, ops))
	return nil
}

func printResult(name string, result workload.Result) {
	fmt.Printf("%s time: %fs\n", name, result.Elapsed.Seconds())
	fmt.Printf("%s OPS: %.2f/s\n", name, result.OPS())
	for kind, n := range result.Failed {
		fmt.Printf("%s failed %s: %d\n", name, kind, n)
	}
	fmt.Println()
}

// Replay each workload against a fresh index.
func main() {
	var dirFlag = flag.String("dir", filepath.Join(os.TempDir(), config.DBName+"_bench"), "backing directory")
	var workloadsFlag = flag.String("workloads", "./workloads", "directory holding <name>-load.txt and <name>-run.txt")
	var namesFlag = flag.String("names", strings.Join(defaultWorkloads, ","), "comma separated workload names")
	var generateFlag = flag.Int("generate", 0, "instead of reading files, generate a workload of n keys")
	var readsFlag = flag.Int("reads", 50, "percentage of reads in a generated run phase")
	var backendFlag = flag.String("backend", config.BackendMmap, "storage backend: [mmap,direct]")
	var hasherFlag = flag.String("hasher", config.HasherIdentity, "key hasher: [identity,xxhash,murmur3]")
	var verifyFlag = flag.Bool("verify", false, "verify the index structure after each workload")
	var clearFlag = flag.Bool("clear", true, "erase the backing directory after each workload")
	flag.Parse()

	opts := config.NewDefaultOptions(*dirFlag)
	opts.Backend = *backendFlag
	opts.Hasher = *hasherFlag
	opts.LogLevel = "warn"
	opts.ClearOnClose = *clearFlag

	var current *hash.HashIndex
	setupCloseHandler(&current)

	run := func(name string, body func(*hash.HashIndex) error) bool {
		index, err := hash.Open(opts)
		if err != nil {
			fmt.Println(err)
			return false
		}
		current = index
		defer func() {
			current = nil
			if err := index.Close(); err != nil {
				fmt.Println(err)
			}
		}()
		if err := body(index); err != nil {
			fmt.Printf("%s: %v\n", name, err)
			return false
		}
		if *verifyFlag {
			if err := index.Verify(); err != nil {
				fmt.Printf("%s: verify failed: %v\n", name, err)
				return false
			}
			fmt.Printf("%s: verify ok\n", name)
		}
		return true
	}

	if *generateFlag > 0 {
		load, runOps := workload.Generate(*generateFlag, *readsFlag, 1)
		name := fmt.Sprintf("generated-%d-r%d", *generateFlag, *readsFlag)
		if !run(name, func(index *hash.HashIndex) error {
			printResult("load", workload.Replay(index, load))
			printResult("run", workload.Replay(index, runOps))
			return nil
		}) {
			os.Exit(1)
		}
		return
	}

	ok := true
	for _, name := range strings.Split(*namesFlag, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		ok = run(name, func(index *hash.HashIndex) error {
			if err := phase(index, "load", filepath.Join(*workloadsFlag, name+"-load.txt")); err != nil {
				return err
			}
			return phase(index, "run", filepath.Join(*workloadsFlag, name+"-run.txt"))
		}) && ok
	}
	if !ok {
		os.Exit(1)
	}
}
