// Package cli provides the interactive mediakeeper shell.
//
// It opens the local store and the configured catalog, then runs a REPL over
// standard input. The same line stream answers consent prompts, so a
// permanent delete typed at the shell asks for confirmation inline.
//
// Commands:
//   - sync                 reconcile the store with the catalog
//   - list [key=value...]  browse with filters, sort and day grouping
//   - show, fav, hide, unhide
//   - delete, restore      move items in and out of the recycle bin
//   - bin, expired, purge  recycle bin maintenance
//   - stats
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
