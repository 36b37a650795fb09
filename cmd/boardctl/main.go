// Command boardctl inspects netlist files from the command line: parse a
// design, print its summary or fingerprint, dump the imported registry as
// JSON, or run a forwarding propagation from chosen components.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/BoardsightAI/boardsight/engine/board"
	"github.com/BoardsightAI/boardsight/engine/netlist"
	"github.com/BoardsightAI/boardsight/engine/profile"
	"github.com/BoardsightAI/boardsight/engine/propagate"
	"github.com/BoardsightAI/boardsight/pkg/fn"
)

const usage = `usage: boardctl <command> [flags] <netlist-file>

commands:
  summary      component and net counts
  fingerprint  content fingerprint of the design
  components   list components (use -type to filter)
  snapshot     imported registry as JSON
  propagate    run forwarding propagation (use -from and -set)

flags:
`

func main() {
	var (
		profiles = flag.String("profiles", os.Getenv("BOARDSIGHT_PROFILES"), "extra component profiles YAML")
		typ      = flag.String("type", "", "filter components by type")
		from     = flag.String("from", "", "comma-separated component ids to propagate from")
		set      = flag.String("set", "", "output override as component.port=value")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	command, path := flag.Arg(0), flag.Arg(1)

	if err := dispatch(command, path, *profiles, *typ, *from, *set); err != nil {
		fmt.Fprintf(os.Stderr, "boardctl: %v\n", err)
		os.Exit(1)
	}
}

func dispatch(command, path, profilesPath, typ, from, set string) error {
	doc, err := netlist.ParseFile(path)
	if err != nil {
		return err
	}

	switch command {
	case "summary":
		return printJSON(doc.Summary())

	case "fingerprint":
		fmt.Println(doc.Fingerprint())
		return nil

	case "components":
		recs := doc.Components
		if typ != "" {
			recs = fn.Filter(recs, func(r netlist.ComponentRecord) bool { return r.Type == typ })
		}
		lines := fn.Map(recs, func(r netlist.ComponentRecord) string {
			return fmt.Sprintf("%s\t%s\t%s", r.Name, r.Type, r.Description)
		})
		for _, l := range lines {
			fmt.Println(l)
		}
		return nil

	case "snapshot":
		reg, err := load(doc, profilesPath)
		if err != nil {
			return err
		}
		return printJSON(reg.Snapshot())

	case "propagate":
		reg, err := load(doc, profilesPath)
		if err != nil {
			return err
		}
		return runPropagation(reg, from, set)

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func load(doc *netlist.Document, profilesPath string) (*board.Registry, error) {
	lib := profile.NewLibrary()
	if profilesPath != "" {
		if err := lib.Load(profilesPath); err != nil {
			return nil, err
		}
	}
	reg := board.NewRegistry()
	reg.ImportDocument(doc, lib)
	return reg, nil
}

func runPropagation(reg *board.Registry, from, set string) error {
	sched := propagate.NewScheduler(reg, slog.Default())

	if set != "" {
		target, value, ok := strings.Cut(set, "=")
		if !ok {
			return fmt.Errorf("-set needs component.port=value, got %q", set)
		}
		comp, port, ok := strings.Cut(target, ".")
		if !ok {
			return fmt.Errorf("-set needs component.port=value, got %q", set)
		}
		reg.UpdateOutputs(comp, map[string]string{port: value})
		sched.MarkDirty(comp)
		for _, dest := range reg.OutputDestinations(comp, port) {
			if i := strings.IndexByte(dest, '.'); i > 0 {
				sched.MarkDirty(dest[:i])
			}
		}
	}
	if from != "" {
		sched.MarkDirty(strings.Split(from, ",")...)
	}
	if sched.PendingDirty() == 0 {
		return fmt.Errorf("nothing to propagate: pass -from or -set")
	}

	steps := sched.Run(propagate.ForwardAll(reg), "boardctl")
	return printJSON(steps)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
