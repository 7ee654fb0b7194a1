package cli

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/common"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
)

func (a *App) Sync(ctx context.Context, _ []string) error {
	report, err := a.lib.Sync(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, formatSyncReport(report))
	return nil
}

// List parses key=value words the same way the HTTP API parses its query
// string.
func (a *App) List(ctx context.Context, args []string) error {
	values := url.Values{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return fmt.Errorf("%w: expected key=value, got %q", common.ErrInvalidArgument, arg)
		}
		values.Add(strings.ToLower(k), v)
	}

	opts, err := models.ParseQueryOptions(values, a.loc)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidArgument, err)
	}

	res, err := a.lib.Query(ctx, opts)
	if err != nil {
		return err
	}

	if len(res.Items) == 0 {
		fmt.Fprintln(a.out, "no items")
		return nil
	}
	if opts.GroupByDay {
		fmt.Fprintln(a.out, renderGroups(res.Groups, a.loc))
		return nil
	}
	fmt.Fprintln(a.out, renderRecords(res.Items, a.loc))
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	rec, err := a.lib.Get(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, renderRecord(rec, a.loc))
	return nil
}

func (a *App) Favorite(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	fav, err := a.lib.ToggleFavorite(ctx, id)
	if err != nil {
		return err
	}
	if fav {
		fmt.Fprintf(a.out, "%d is now a favorite\n", id)
	} else {
		fmt.Fprintf(a.out, "%d is no longer a favorite\n", id)
	}
	return nil
}

func (a *App) Hide(ctx context.Context, args []string) error {
	return a.setHidden(ctx, args, true)
}

func (a *App) Unhide(ctx context.Context, args []string) error {
	return a.setHidden(ctx, args, false)
}

func (a *App) setHidden(ctx context.Context, args []string, hidden bool) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	if err := a.lib.SetHidden(ctx, id, hidden); err != nil {
		return err
	}
	if hidden {
		fmt.Fprintf(a.out, "%d hidden\n", id)
	} else {
		fmt.Fprintf(a.out, "%d visible\n", id)
	}
	return nil
}

// Delete moves items to the recycle bin. Items that could be moved are
// reported even when others failed.
func (a *App) Delete(ctx context.Context, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	done, err := a.lib.SoftDelete(ctx, ids)
	if len(done) > 0 {
		fmt.Fprintf(a.out, "moved to recycle bin: %s\n", joinIDs(done))
	}
	return err
}

func (a *App) Restore(ctx context.Context, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	done, err := a.lib.Restore(ctx, ids)
	if len(done) > 0 {
		fmt.Fprintf(a.out, "restored: %s\n", joinIDs(done))
	}
	return err
}

func (a *App) Bin(ctx context.Context, _ []string) error {
	entries, err := a.lib.RecycleBin(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "recycle bin is empty")
		return nil
	}
	fmt.Fprintln(a.out, renderBin(entries, a.loc))
	return nil
}

// Expired lists ids past the retention window, or past window when given.
func (a *App) Expired(ctx context.Context, args []string) error {
	window := a.lib.Retention()
	if len(args) > 0 {
		d, err := time.ParseDuration(args[0])
		if err != nil || d < 0 {
			return fmt.Errorf("%w: invalid window %q", common.ErrInvalidArgument, args[0])
		}
		window = d
	}
	ids, err := a.lib.ScanExpired(ctx, window)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(a.out, "nothing has expired")
		return nil
	}
	fmt.Fprintf(a.out, "expired: %s\n", joinIDs(ids))
	return nil
}

// Purge permanently deletes the given ids, or every expired item when none
// are given. The consent prompt, if any, reads the next input line.
func (a *App) Purge(ctx context.Context, args []string) error {
	var (
		report models.PermanentDeleteReport
		err    error
	)
	if len(args) == 0 {
		report, err = a.lib.PurgeExpired(ctx)
	} else {
		ids, perr := parseIDs(args)
		if perr != nil {
			return perr
		}
		report, err = a.lib.RequestPermanentDelete(ctx, ids)
	}
	if out := formatPurgeReport(report); out != "" {
		fmt.Fprintln(a.out, out)
	}
	return err
}

func (a *App) Stats(ctx context.Context, _ []string) error {
	stats, err := a.lib.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, renderStats(stats))
	return nil
}
