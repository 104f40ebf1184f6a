// Command strata is an interactive shell over a strata database:
// put/get/delete/scan/prefix/stats/reclaim, plus the dot-commands that
// open, close, and inspect a database.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/strata-db/strata/pkg/engine"
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".open"),
	readline.PcItem(".close"),
	readline.PcItem(".exit"),
	readline.PcItem(".stats"),
	readline.PcItem("PUT"),
	readline.PcItem("GET"),
	readline.PcItem("DELETE"),
	readline.PcItem("SCAN"),
	readline.PcItem("PREFIX"),
	readline.PcItem("RECLAIM"),
)

const helpText = `
strata - an embedded transactional key-value storage engine.

Usage:
  strata [database_path]  - start with an optional database path

Commands:
  .help                    - show this help message
  .open PATH               - open a database at PATH
  .close                   - close the current database
  .stats                   - show operation counters
  .exit                    - exit the program

  PUT key value            - store a key-value pair
  GET key                  - retrieve a value by key
  DELETE key                - delete a key-value pair
  SCAN [start] [end]       - scan keys in [start, end); no bounds scans everything
  PREFIX prefix            - list every key carrying prefix
  RECLAIM                  - run one reclaim cycle against the oldest segment
`

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "strata - an embedded transactional key-value storage engine\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: strata [database_path]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	var dbPath string
	if flag.NArg() > 0 {
		dbPath = flag.Arg(0)
	}

	var s *engine.Store
	if dbPath != "" {
		var err error
		s, err = engine.Open(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %s\n", err)
			os.Exit(1)
		}
		defer s.Close()
	}

	runInteractive(s, dbPath)
}

func runInteractive(s *engine.Store, dbPath string) {
	fmt.Println("strata storage engine")
	fmt.Println("Enter .help for usage hints.")

	historyFile := filepath.Join(os.TempDir(), ".strata_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "strata> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %s\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		if dbPath != "" {
			rl.SetPrompt(fmt.Sprintf("strata:%s> ", dbPath))
		} else {
			rl.SetPrompt("strata> ")
		}

		line, readErr := rl.Readline()
		if readErr != nil {
			if readErr == readline.ErrInterrupt {
				if len(line) == 0 {
					break
				}
				continue
			}
			if readErr == io.EOF {
				fmt.Println("Goodbye!")
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %s\n", readErr)
			continue
		}
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToUpper(parts[0])

		if strings.HasPrefix(cmd, ".") {
			cmd = strings.ToLower(cmd)
			switch cmd {
			case ".help":
				fmt.Print(helpText)

			case ".open":
				if len(parts) < 2 {
					fmt.Println("Error: missing path argument")
					continue
				}
				if s != nil {
					s.Close()
				}
				dbPath = parts[1]
				s, err = engine.Open(dbPath)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error opening database: %s\n", err)
					dbPath = ""
					continue
				}
				fmt.Printf("Database opened at %s\n", dbPath)

			case ".close":
				if s == nil {
					fmt.Println("No database open")
					continue
				}
				if err := s.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Error closing database: %s\n", err)
				} else {
					fmt.Printf("Database %s closed\n", dbPath)
					s = nil
					dbPath = ""
				}

			case ".exit":
				if s != nil {
					s.Close()
				}
				fmt.Println("Goodbye!")
				return

			case ".stats":
				if s == nil {
					fmt.Println("No database open")
					continue
				}
				printStats(s.Stats())

			default:
				fmt.Printf("Unknown command: %s (try .help)\n", cmd)
			}
			continue
		}

		if s == nil {
			fmt.Println("No database open (use .open PATH)")
			continue
		}
		dispatch(s, cmd, parts[1:])
	}
}

func dispatch(s *engine.Store, cmd string, args []string) {
	switch cmd {
	case "PUT":
		if len(args) < 2 {
			fmt.Println("Usage: PUT key value")
			return
		}
		if err := s.Put([]byte(args[0]), []byte(strings.Join(args[1:], " "))); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return
		}
		fmt.Println("OK")

	case "GET":
		if len(args) < 1 {
			fmt.Println("Usage: GET key")
			return
		}
		value, err := s.Get([]byte(args[0]))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return
		}
		fmt.Println(string(value))

	case "DELETE":
		if len(args) < 1 {
			fmt.Println("Usage: DELETE key")
			return
		}
		deleted, err := s.Delete([]byte(args[0]))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return
		}
		if deleted {
			fmt.Println("OK")
		} else {
			fmt.Println("Not found")
		}

	case "SCAN":
		var start, end []byte
		if len(args) > 0 {
			start = []byte(args[0])
		}
		if len(args) > 1 {
			end = []byte(args[1])
		}
		iter, err := s.Scan(start, end)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return
		}
		count := 0
		for iter.SeekToFirst(); iter.Valid(); iter.Next() {
			fmt.Printf("%s = %s\n", iter.Key(), iter.Value())
			count++
		}
		fmt.Printf("(%d entries)\n", count)

	case "PREFIX":
		if len(args) < 1 {
			fmt.Println("Usage: PREFIX prefix")
			return
		}
		keys, err := s.PrefixKeys([]byte(args[0]))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return
		}
		for _, k := range keys {
			fmt.Println(string(k))
		}
		fmt.Printf("(%d keys)\n", len(keys))

	case "RECLAIM":
		segment, reclaimed, err := s.Reclaim()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return
		}
		if !reclaimed {
			fmt.Println("Nothing to reclaim")
			return
		}
		fmt.Printf("Reclaimed segment at address %d\n", segment)

	default:
		fmt.Printf("Unknown command: %s (try .help)\n", cmd)
	}
}

func printStats(s map[string]interface{}) {
	fmt.Println("Operations:")
	for _, op := range []string{"put", "get", "delete", "scan", "reclaim"} {
		if v, ok := s[op+"_ops"]; ok {
			fmt.Printf("  %s: %v\n", op, v)
		}
	}
	fmt.Printf("Bytes read: %v, written: %v\n", s["bytes_read"], s["bytes_written"])
	if errs, ok := s["errors"].(map[string]uint64); ok && len(errs) > 0 {
		fmt.Println("Errors:")
		for name, count := range errs {
			fmt.Printf("  %s: %d\n", name, count)
		}
	}
}
