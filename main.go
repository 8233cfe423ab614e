package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lotas/listenordnung/internal/applog"
	"github.com/lotas/listenordnung/internal/discovery"
	"github.com/lotas/listenordnung/internal/dom"
	"github.com/lotas/listenordnung/internal/export"
	"github.com/lotas/listenordnung/internal/fetch"
	"github.com/lotas/listenordnung/internal/organizer"
	"github.com/lotas/listenordnung/internal/server"
	"github.com/lotas/listenordnung/internal/settings"
	"github.com/lotas/listenordnung/internal/snapshot"
	"github.com/lotas/listenordnung/internal/storage"
	"github.com/lotas/listenordnung/internal/tui"
	"github.com/lotas/listenordnung/internal/watch"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "organize":
			runOrganize(os.Args[2:])
			return
		case "export":
			runExport(os.Args[2:])
			return
		case "snapshot":
			runSnapshot(os.Args[2:])
			return
		case "groups":
			runGroups(os.Args[2:])
			return
		case "watch":
			runWatch(os.Args[2:])
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
	}

	fs := flag.NewFlagSet("listenordnung", flag.ExitOnError)
	port := fs.Int("port", 0, "WebSocket port for the extension (default: 19191)")
	fs.Parse(os.Args[1:])

	initLog()
	defer applog.Close()

	db := openDBOrNil()
	if db != nil {
		defer db.Close()
	}

	resolvedPort := resolvePort(*port)
	srv := server.New(resolvedPort)
	st := settings.New(kvFor(db))
	session := server.NewSession(srv, st, discovery.DefaultConfig(), watch.DefaultDebounce, watch.DefaultSettle)

	model := tui.NewModel(session, db, resolvedPort)
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Print(`listenordnung — list grouping for pages that refuse to group themselves

Usage:
  listenordnung                                 Start the TUI (waits for the extension)
    --port <n>             WebSocket port (env: LISTENORDNUNG_PORT, default: 19191)

  listenordnung organize                        One-shot: reorganize an HTML document
    --in <file>            Input HTML (default: stdin)
    --out <file>           Output HTML (default: stdout)
    --location <url>       Location recorded for the document
    --select <group>       Visible group after grouping (default: first)

  listenordnung export                          Export the computed grouping
    --in <file>            Input HTML (default: stdin)
    --location <url>       Location recorded for the document
    --json                 Export as JSON instead of markdown
    --enrich               Fetch page titles for absolute links
    --out <file>           Output file path (default: stdout)

  listenordnung snapshot save --in <file> --location <url> [--label "text"]
  listenordnung snapshot list [--location <url>]
  listenordnung snapshot diff <rev> [rev2] --location <url> [--in <file>]
  listenordnung snapshot delete <rev> --location <url> [--yes]

  listenordnung groups list                     List custom groups
  listenordnung groups add <name>               Add a custom group
  listenordnung groups remove <name>            Remove a custom group

  listenordnung watch                           Headless live mode (logs updates)
    --port <n>             WebSocket port (env: LISTENORDNUNG_PORT, default: 19191)

Environment:
  LISTENORDNUNG_DB        Database path (default: ~/.local/share/listenordnung/listenordnung.db)
  LISTENORDNUNG_PORT      Default WebSocket port
  LISTENORDNUNG_LOG_DIR   Log directory (default: ~/.local/share/listenordnung/logs)
`)
}

func initLog() {
	dir := os.Getenv("LISTENORDNUNG_LOG_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		dir = filepath.Join(home, ".local", "share", "listenordnung", "logs")
	}
	if err := applog.Init(dir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
}

func resolvePort(flagValue int) int {
	if flagValue != 0 {
		return flagValue
	}
	if v := os.Getenv("LISTENORDNUNG_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			return p
		}
	}
	return 19191
}

// openDBOrNil opens the database or returns nil. The pipeline keeps working
// without persistence: settings fall back to in-memory, snapshots disable.
func openDBOrNil() *sql.DB {
	dbPath, err := storage.DefaultDBPath()
	if err == nil {
		var db *sql.DB
		db, err = storage.OpenDB(dbPath)
		if err == nil {
			return db
		}
	}
	fmt.Fprintf(os.Stderr, "Warning: persistence unavailable: %v\n", err)
	applog.Warn("main.db", "err", err.Error())
	return nil
}

func openDB() (*sql.DB, error) {
	dbPath, err := storage.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	return storage.OpenDB(dbPath)
}

func kvFor(db *sql.DB) storage.KV {
	if db == nil {
		return storage.NewMemStore()
	}
	return &storage.DBStore{DB: db}
}

// organizeInput parses the input document and runs the full pipeline over it
// once. Shared by organize, export, and snapshot save.
func organizeInput(inFile, location string) (*dom.Document, *organizer.Organizer, error) {
	var r io.Reader = os.Stdin
	if inFile != "" {
		f, err := os.Open(inFile)
		if err != nil {
			return nil, nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	doc, err := dom.Parse(r)
	if err != nil {
		return nil, nil, fmt.Errorf("parse input: %w", err)
	}
	if location != "" {
		doc.SetLocation(location)
	}

	db := openDBOrNil()
	if db != nil {
		defer db.Close()
	}
	st := settings.New(kvFor(db))

	org := organizer.New(doc, discovery.DefaultConfig(), st)
	org.Process()
	return doc, org, nil
}

func writeOutput(outFile, content string) {
	if outFile != "" {
		if err := os.WriteFile(outFile, []byte(content), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Print(content)
}

func runOrganize(args []string) {
	fs := flag.NewFlagSet("organize", flag.ExitOnError)
	inFile := fs.String("in", "", "Input HTML file (default: stdin)")
	outFile := fs.String("out", "", "Output file path (default: stdout)")
	location := fs.String("location", "", "Location recorded for the document")
	selectGroup := fs.String("select", "", "Visible group after grouping")
	fs.Parse(args)

	doc, org, err := organizeInput(*inFile, *location)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *selectGroup != "" {
		for _, c := range org.Containers() {
			org.Select(c, *selectGroup)
		}
	}

	html, err := doc.Render()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering: %v\n", err)
		os.Exit(1)
	}
	writeOutput(*outFile, html)
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	inFile := fs.String("in", "", "Input HTML file (default: stdin)")
	location := fs.String("location", "", "Location recorded for the document")
	jsonFlag := fs.Bool("json", false, "Export as JSON instead of markdown")
	enrich := fs.Bool("enrich", false, "Fetch page titles for absolute links")
	outFile := fs.String("out", "", "Output file path (default: stdout)")
	fs.Parse(args)

	doc, org, err := organizeInput(*inFile, *location)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	page := export.Collect(doc.Location(), org.Organized())
	if *enrich {
		export.Enrich(page, fetch.Title)
	}

	var output string
	if *jsonFlag {
		output, err = export.JSON(page)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating JSON: %v\n", err)
			os.Exit(1)
		}
	} else {
		output = export.Markdown(page)
	}
	writeOutput(*outFile, output)
}

func runSnapshot(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: listenordnung snapshot <save|list|diff|delete> ...")
		os.Exit(1)
	}

	subcmd := args[0]
	subArgs := args[1:]

	switch subcmd {
	case "save":
		runSnapshotSave(subArgs)
	case "list":
		runSnapshotList(subArgs)
	case "diff":
		runSnapshotDiff(subArgs)
	case "delete":
		runSnapshotDelete(subArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown snapshot command %q. Use save, list, diff, or delete.\n", subcmd)
		os.Exit(1)
	}
}

func runSnapshotSave(args []string) {
	fs := flag.NewFlagSet("snapshot save", flag.ExitOnError)
	inFile := fs.String("in", "", "Input HTML file (default: stdin)")
	location := fs.String("location", "", "Location recorded for the document")
	label := fs.String("label", "", "Optional label for the snapshot")
	fs.Parse(args)

	if *location == "" {
		fmt.Fprintln(os.Stderr, "Usage: listenordnung snapshot save --in <file> --location <url> [--label text]")
		os.Exit(1)
	}

	doc, org, err := organizeInput(*inFile, *location)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	db, err := openDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	html, err := doc.Render()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering: %v\n", err)
		os.Exit(1)
	}

	rev, created, diff, err := snapshot.Create(db, doc.Location(), org.Organized(), *label, html)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating snapshot: %v\n", err)
		os.Exit(1)
	}

	if !created {
		fmt.Printf("No changes since snapshot #%d\n", rev)
		return
	}

	items := 0
	groups := 0
	for _, o := range org.Organized() {
		items += len(o.Container.Items)
		groups += len(o.Groups)
	}
	fmt.Printf("Snapshot #%d created: %d items in %d groups\n", rev, items, groups)

	if diff != nil && (len(diff.Added) > 0 || len(diff.Removed) > 0 || len(diff.Moved) > 0) {
		fmt.Println()
		fmt.Print(snapshot.FormatDiff(diff))
	}
}

func runSnapshotList(args []string) {
	fs := flag.NewFlagSet("snapshot list", flag.ExitOnError)
	location := fs.String("location", "", "Only snapshots of this location")
	fs.Parse(args)

	db, err := openDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	var snaps []storage.SnapshotSummary
	if *location != "" {
		snaps, err = storage.ListSnapshotsByLocation(db, *location)
	} else {
		snaps, err = storage.ListSnapshots(db)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing snapshots: %v\n", err)
		os.Exit(1)
	}

	if len(snaps) == 0 {
		fmt.Println("No snapshots found.")
		return
	}

	fmt.Printf("%-5s %5s  %-40s %-20s  %s\n", "REV", "ITEMS", "LOCATION", "LABEL", "CREATED")
	for _, s := range snaps {
		fmt.Printf("%5d %5d  %-40s %-20s  %s\n",
			s.Rev,
			s.ItemCount,
			s.Location,
			s.Label,
			s.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
}

func runSnapshotDiff(args []string) {
	fs := flag.NewFlagSet("snapshot diff", flag.ExitOnError)
	location := fs.String("location", "", "Location the revisions belong to")
	inFile := fs.String("in", "", "HTML file to diff a revision against")
	fs.Parse(reorderArgs(args))

	if *location == "" {
		fmt.Fprintln(os.Stderr, "Usage: listenordnung snapshot diff <rev> [rev2] --location <url> [--in file]")
		os.Exit(1)
	}

	db, err := openDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	switch fs.NArg() {
	case 1:
		// Diff a revision against a freshly organized document.
		rev, err := strconv.Atoi(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid revision number: %s\n", fs.Arg(0))
			os.Exit(1)
		}
		_, org, err := organizeInput(*inFile, *location)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		result, err := snapshot.Diff(db, *location, rev, org.Organized())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(snapshot.FormatDiff(result))

	case 2:
		rev1, err := strconv.Atoi(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid revision number: %s\n", fs.Arg(0))
			os.Exit(1)
		}
		rev2, err := strconv.Atoi(fs.Arg(1))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid revision number: %s\n", fs.Arg(1))
			os.Exit(1)
		}
		result, err := snapshot.DiffRevisions(db, *location, rev1, rev2)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(snapshot.FormatDiff(result))

	default:
		fmt.Fprintln(os.Stderr, "Usage: listenordnung snapshot diff <rev> [rev2] --location <url> [--in file]")
		os.Exit(1)
	}
}

func runSnapshotDelete(args []string) {
	fs := flag.NewFlagSet("snapshot delete", flag.ExitOnError)
	location := fs.String("location", "", "Location the revision belongs to")
	yes := fs.Bool("yes", false, "Skip confirmation prompt")
	fs.Parse(reorderArgs(args))

	if fs.NArg() < 1 || *location == "" {
		fmt.Fprintln(os.Stderr, "Usage: listenordnung snapshot delete <rev> --location <url> [--yes]")
		os.Exit(1)
	}

	rev, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid revision number: %s\n", fs.Arg(0))
		os.Exit(1)
	}

	if !*yes {
		fmt.Printf("Delete snapshot #%d of %s? [y/N] ", rev, *location)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return
		}
	}

	db, err := openDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := storage.DeleteSnapshot(db, *location, rev); err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting snapshot: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Snapshot #%d deleted.\n", rev)
}

func runGroups(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: listenordnung groups <list|add|remove> [name]")
		os.Exit(1)
	}

	db, err := openDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	st := settings.New(&storage.DBStore{DB: db})

	switch args[0] {
	case "list":
		names := st.CustomGroups().Names()
		if len(names) == 0 {
			fmt.Println("No custom groups. Names fall back to prefix grouping.")
			return
		}
		for _, name := range names {
			fmt.Println(name)
		}

	case "add":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: listenordnung groups add <name>")
			os.Exit(1)
		}
		if err := st.AddCustomGroup(args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added custom group %q.\n", args[1])

	case "remove":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: listenordnung groups remove <name>")
			os.Exit(1)
		}
		if err := st.RemoveCustomGroup(args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed custom group %q.\n", args[1])

	default:
		fmt.Fprintf(os.Stderr, "Unknown groups command %q. Use list, add, or remove.\n", args[0])
		os.Exit(1)
	}
}

// runWatch is headless live mode: the session runs without a TUI and every
// published update becomes one line on stdout.
func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	port := fs.Int("port", 0, "WebSocket port (default: 19191)")
	fs.Parse(args)

	initLog()
	defer applog.Close()

	db := openDBOrNil()
	if db != nil {
		defer db.Close()
	}

	resolvedPort := resolvePort(*port)
	srv := server.New(resolvedPort)
	st := settings.New(kvFor(db))
	session := server.NewSession(srv, st, discovery.DefaultConfig(), watch.DefaultDebounce, watch.DefaultSettle)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Waiting for the extension on port %d...\n", resolvedPort)

	go func() {
		for u := range session.Updates() {
			items := 0
			for _, c := range u.Containers {
				items += c.Items
			}
			fmt.Printf("%s: %d containers, %d items\n", u.Location, len(u.Containers), items)
		}
	}()

	if err := session.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// reorderArgs moves flag arguments before positional arguments so that
// flag.Parse handles them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "-") {
			flags = append(flags, args[i])
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				flags = append(flags, args[i+1])
				i++
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
