// Package config loads morpher.toml, the single configuration file
// backing both subcommands. The dotted collector.*/fuzzer.*/
// directories.* key names map onto TOML tables directly.
package config

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/pelletier/go-toml/v2"
)

// Collector mirrors the collector.* configuration keys.
type Collector struct {
	Enabled     bool   `toml:"enabled"`
	List        string `toml:"list"`
	Timeout     int    `toml:"timeout"`
	StackAlign  int    `toml:"stack_align"`
	CopyLimit   int    `toml:"copy_limit"`
	GlobalLimit bool   `toml:"global_limit"`
}

// Fuzzer mirrors the fuzzer.* configuration keys.
type Fuzzer struct {
	Enabled      bool   `toml:"enabled"`
	Target       string `toml:"target"`
	DLLType      string `toml:"dll_type"`
	Timeout      int    `toml:"timeout"`
	FuzzPointers bool   `toml:"fuzz_pointers"`
	SnapshotMode string `toml:"snapshot_mode"`
	TraceMode    string `toml:"trace_mode"`
	Mutational   bool   `toml:"mutational"`
	MutateRange  int    `toml:"mutate_range"`
	Heuristic    bool   `toml:"heuristic"`
	Random       bool   `toml:"random"`
	RandomCases  int    `toml:"random_cases"`
}

// Directories mirrors the directories.* configuration keys.
type Directories struct {
	Data  string `toml:"data"`
	Tools string `toml:"tools"`
	Logs  string `toml:"logs"`
}

// Config is the parsed morpher.toml file.
type Config struct {
	Collector   Collector   `toml:"collector"`
	Fuzzer      Fuzzer      `toml:"fuzzer"`
	Directories Directories `toml:"directories"`
}

// applyDefaults fills in the defaults for every key left unset.
func (c *Config) applyDefaults() {
	if c.Collector.Timeout == 0 {
		c.Collector.Timeout = 10
	}
	if c.Collector.StackAlign == 0 {
		c.Collector.StackAlign = wordSize()
	}
	if c.Collector.CopyLimit == 0 {
		c.Collector.CopyLimit = 5
	}
	if c.Fuzzer.Timeout == 0 {
		c.Fuzzer.Timeout = 5
	}
	if c.Fuzzer.DLLType == "" {
		c.Fuzzer.DLLType = "cdecl"
	}
	if c.Fuzzer.SnapshotMode == "" {
		c.Fuzzer.SnapshotMode = "sequential"
	}
	if c.Fuzzer.TraceMode == "" {
		c.Fuzzer.TraceMode = "sequential"
	}
	if c.Fuzzer.MutateRange == 0 {
		c.Fuzzer.MutateRange = 3
	}
	if c.Fuzzer.RandomCases == 0 {
		c.Fuzzer.RandomCases = 3
	}
	if c.Directories.Data == "" {
		c.Directories.Data = "data"
	}
	if c.Directories.Tools == "" {
		c.Directories.Tools = "tools"
	}
	if c.Directories.Logs == "" {
		c.Directories.Logs = "logs"
	}
}

// WordSize returns the host's pointer/word size in bytes, used for
// collector.stack_align's default and FuncRecorder's return-address
// skip.
func WordSize() int {
	return wordSize()
}

func wordSize() int {
	if runtime.GOARCH == "386" || runtime.GOARCH == "arm" {
		return 4
	}
	return 8
}

// Load reads and parses path, applying defaults for unset keys.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	c.applyDefaults()
	return &c, nil
}

// Validate fails fast on missing required keys: a collect run needs
// collector.list, a fuzz run needs fuzzer.target. Callers pass only
// the keys relevant to the subcommand being run.
func (c *Config) Validate(needCollector, needFuzzer bool) error {
	if needCollector && c.Collector.List == "" {
		return fmt.Errorf("config: collector.list is required")
	}
	if needFuzzer && c.Fuzzer.Target == "" {
		return fmt.Errorf("config: fuzzer.target is required")
	}
	return nil
}

// ExeCase is one line of a collector.list file: a host program and
// the argv it should be run with.
type ExeCase struct {
	Exe  string
	Args []string
}

// LoadExeList reads the collector.list file: one shell-quoted command
// line per case, blank lines and lines starting with "#" ignored.
// Shell-style splitting (rather than naive whitespace splitting) lets
// a case's arguments carry quoted spaces, matching how such exe lists
// are authored by hand.
func LoadExeList(path string) ([]ExeCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: opening exe list %s: %w", path, err)
	}
	defer f.Close()

	var cases []ExeCase
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields, err := shellquote.Split(line)
		if err != nil {
			return nil, fmt.Errorf("config: parsing exe list line %q: %w", line, err)
		}
		if len(fields) == 0 {
			continue
		}
		cases = append(cases, ExeCase{Exe: fields[0], Args: fields[1:]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: reading exe list %s: %w", path, err)
	}
	return cases, nil
}

// Seconds converts a configuration integer-seconds field to a
// time.Duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
