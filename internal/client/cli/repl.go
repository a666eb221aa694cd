package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	List(ctx context.Context) error
	Add(ctx context.Context) error
	Show(ctx context.Context, id string) error
	Edit(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Tags(ctx context.Context) error
	AddTag(ctx context.Context) error
	DeleteTag(ctx context.Context, id string) error
	SyncNow(ctx context.Context) error
	ShowStatus(ctx context.Context) error
	Reset(ctx context.Context) error
}

// runREPL starts a simple read-eval-print loop for the souzou CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current sync status (from statusFn) and accepts:
//
//	help           — show available commands
//	list | l       — list live records
//	add            — create a record (interactive prompts)
//	show <id>      — print a single record
//	edit <id>      — edit a record (interactive prompts)
//	del <id>       — delete a record
//	tags           — list tags
//	addtag         — create a tag (interactive prompts)
//	deltag <id>    — delete a tag
//	sync           — run a sync cycle now
//	status         — show sync status
//	reset          — rewind the cursor and re-pull everything
//	exit | quit    — leave the program
//
// Any errors returned by command handlers are printed by the handlers
// themselves; the loop stays resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("souzou (%s) > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			printlnFn("Available commands: (l)ist, add, show <id>, edit <id>, del <id>, tags, addtag, deltag <id>, sync, status, reset, exit")

		case "l", "list":
			_ = a.List(ctx)

		case "add":
			_ = a.Add(ctx)

		case "show":
			if len(args) == 0 {
				printlnFn("Usage: show <id>")
				continue
			}
			_ = a.Show(ctx, args[0])

		case "edit":
			if len(args) == 0 {
				printlnFn("Usage: edit <id>")
				continue
			}
			_ = a.Edit(ctx, args[0])

		case "del":
			if len(args) == 0 {
				printlnFn("Usage: del <id>")
				continue
			}
			_ = a.Delete(ctx, args[0])

		case "tags":
			_ = a.Tags(ctx)

		case "addtag":
			_ = a.AddTag(ctx)

		case "deltag":
			if len(args) == 0 {
				printlnFn("Usage: deltag <id>")
				continue
			}
			_ = a.DeleteTag(ctx, args[0])

		case "sync":
			_ = a.SyncNow(ctx)

		case "status":
			_ = a.ShowStatus(ctx)

		case "reset":
			_ = a.Reset(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
