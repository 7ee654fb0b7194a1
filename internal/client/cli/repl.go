package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to. Every handler
// receives the words after the command name.
type execIface interface {
	Sync(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Favorite(ctx context.Context, args []string) error
	Hide(ctx context.Context, args []string) error
	Unhide(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Restore(ctx context.Context, args []string) error
	Bin(ctx context.Context, args []string) error
	Expired(ctx context.Context, args []string) error
	Purge(ctx context.Context, args []string) error
	Stats(ctx context.Context, args []string) error
}

const helpText = `Available commands:
  sync                      reconcile with the catalog
  list [key=value ...]      view= kind= from= to= size= fav= bucket= q= sort= group=day
  show <id>                 show one item
  fav <id>                  toggle favorite
  hide <id> | unhide <id>   hide or unhide an item
  delete <ids>              move items to the recycle bin
  restore <ids>             bring items back from the recycle bin
  bin                       list the recycle bin
  expired [window]          ids past the retention window
  purge [ids]               permanently delete ids, or everything expired
  stats                     library counters
  exit | quit               leave the shell`

// runREPL reads commands from lines until EOF, "exit"/"quit" or ctx is done.
// Handler errors are printed and the loop carries on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, lines <-chan string, out io.Writer) {
	for {
		fmt.Fprintf(out, "mk %s> ", statusFn())

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return
			}
			line = l
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		var err error
		switch cmd {
		case "help", "?":
			fmt.Fprintln(out, helpText)
		case "sync":
			err = a.Sync(ctx, args)
		case "l", "ls", "list":
			err = a.List(ctx, args)
		case "show":
			err = a.Show(ctx, args)
		case "fav", "favorite":
			err = a.Favorite(ctx, args)
		case "hide":
			err = a.Hide(ctx, args)
		case "unhide":
			err = a.Unhide(ctx, args)
		case "delete", "rm":
			err = a.Delete(ctx, args)
		case "restore":
			err = a.Restore(ctx, args)
		case "bin":
			err = a.Bin(ctx, args)
		case "expired":
			err = a.Expired(ctx, args)
		case "purge":
			err = a.Purge(ctx, args)
		case "stats":
			err = a.Stats(ctx, args)
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}

		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("error: "+err.Error()))
		}
	}
}
