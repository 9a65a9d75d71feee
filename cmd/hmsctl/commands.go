package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/jwalitptl/hms/internal/client"
	"github.com/jwalitptl/hms/internal/config"
	"github.com/jwalitptl/hms/internal/listview"
	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/notify"
	"github.com/jwalitptl/hms/internal/session"
	"github.com/jwalitptl/hms/internal/store"
)

const usage = `usage: hmsctl <command> [flags]

commands:
  whoami                       show the signed-in account and its views
  patient  -id PAT-XXXXXX      look up a patient by unique ID
  labs     [list flags]        list lab records
  xrays    [list flags]        list x-ray records
  walkins  [list flags]        list walk-in x-ray records
  users    [list flags]        list accounts (admin)
  stats                        walk-in statistics
  export   -kind K -format F   export a list as csv or xlsx
  report   -kind K -id ID      print a lab or x-ray report as HTML
  image    -url URL -o FILE    download an x-ray image

Credentials come from HMS_EMAIL and HMS_PASSWORD.
`

type cli struct {
	cfg    *config.Config
	app    *store.App
	api    *client.Client
	gate   *session.Gate
	logger *zap.Logger
	out    io.Writer
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(out, usage)
		if len(args) == 0 {
			return errors.New("no command given")
		}
		return nil
	}

	api := client.New(cfg.APIURL, cfg.Timeout, logger)
	c := &cli{
		cfg:    cfg,
		app:    store.NewApp(api, notify.NewLogger(logger), logger),
		api:    api,
		gate:   session.NewGate(nil),
		logger: logger,
		out:    out,
	}

	cmd, rest := args[0], args[1:]
	handlers := map[string]func(context.Context, []string) error{
		"whoami":  c.whoami,
		"patient": c.patient,
		"labs":    c.labs,
		"xrays":   c.xrays,
		"walkins": c.walkins,
		"users":   c.users,
		"stats":   c.stats,
		"export":  c.export,
		"report":  c.report,
		"image":   c.image,
	}
	h, ok := handlers[cmd]
	if !ok {
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}

	if err := c.signIn(ctx); err != nil {
		return err
	}
	defer c.app.Logout(context.WithoutCancel(ctx))

	return h(ctx, rest)
}

func (c *cli) signIn(ctx context.Context) error {
	if c.cfg.Email == "" || c.cfg.Password == "" {
		return errors.New("HMS_EMAIL and HMS_PASSWORD must be set")
	}
	res := c.app.Users.Login(ctx, model.LoginRequest{Email: c.cfg.Email, Password: c.cfg.Password})
	if !res.Success {
		return fmt.Errorf("sign in failed: %s", res.Error)
	}
	c.logger.Debug("Signed in", zap.String("email", res.Data.Email), zap.String("role", string(res.Data.Role)))
	return nil
}

func (c *cli) require(ctx context.Context, view session.View) error {
	s := c.app.Users.CheckSession(ctx)
	if d := c.gate.Allow(s, view); d != session.Allowed {
		return fmt.Errorf("%s: %s (%s)", view, d, d.Path())
	}
	return nil
}

func (c *cli) whoami(ctx context.Context, args []string) error {
	s := c.app.Users.CheckSession(ctx)
	if !s.Authenticated {
		return errors.New("not signed in")
	}
	u := s.User
	views := c.gate.Available(u.Role)
	names := make([]string, len(views))
	for i, v := range views {
		names[i] = string(v)
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Name\t%s\n", u.Name)
	fmt.Fprintf(tw, "Email\t%s\n", u.Email)
	fmt.Fprintf(tw, "Role\t%s\n", u.Role)
	if u.UniqueID != "" {
		fmt.Fprintf(tw, "Patient ID\t%s\n", u.UniqueID)
	}
	fmt.Fprintf(tw, "Home\t%s\n", session.Home(u.Role))
	fmt.Fprintf(tw, "Views\t%s\n", strings.Join(names, ", "))
	return tw.Flush()
}

func (c *cli) patient(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("patient", flag.ContinueOnError)
	fs.SetOutput(c.out)
	id := fs.String("id", "", "patient unique ID")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p := c.app.Users.FindPatient(ctx, *id)
	if p == nil {
		return errors.New(c.app.Users.Snapshot().Err)
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Patient ID\t%s\n", p.UniqueID)
	fmt.Fprintf(tw, "Name\t%s\n", p.Name)
	fmt.Fprintf(tw, "Age\t%d\n", p.Age)
	fmt.Fprintf(tw, "Gender\t%s\n", p.Gender)
	fmt.Fprintf(tw, "Phone\t%s\n", p.Phone)
	return tw.Flush()
}

// listFlags are shared by every list and export command.
type listFlags struct {
	page     int
	search   string
	filter   string
	date     string
	status   string
	priority string
	category string
}

func (f *listFlags) register(fs *flag.FlagSet) {
	fs.IntVar(&f.page, "page", 1, "page to load")
	fs.StringVar(&f.search, "search", "", "search the whole dataset")
	fs.StringVar(&f.filter, "filter", "", "filter the loaded page by text")
	fs.StringVar(&f.date, "date", "", "filter the loaded page by date (YYYY-MM-DD)")
	fs.StringVar(&f.status, "status", "", "Pending or Completed")
	fs.StringVar(&f.priority, "priority", "", "Routine, Urgent or Emergency")
	fs.StringVar(&f.category, "category", "", "record category")
}

func (f *listFlags) query() model.ListQuery {
	return model.ListQuery{
		Search:   strings.TrimSpace(f.search),
		Status:   f.status,
		Priority: f.priority,
		Category: f.category,
	}
}

func open[T model.Listable](ctx context.Context, c *cli, view session.View, fetcher listview.Fetcher[T], lf *listFlags) (*listview.Controller[T], error) {
	if err := c.require(ctx, view); err != nil {
		return nil, err
	}
	ctrl := listview.New[T](fetcher, c.cfg.PageSize, c.logger)
	ctrl.SetQuery(lf.query())
	if err := ctrl.LoadPage(ctx, 1); err != nil {
		return nil, err
	}
	if lf.page != 1 {
		if err := ctrl.ChangePage(ctx, lf.page); err != nil {
			return nil, err
		}
	}
	ctrl.SetSearch(lf.filter)
	ctrl.SetDate(lf.date)
	return ctrl, nil
}

func list[T model.Listable](ctx context.Context, c *cli, name string, view session.View, fetcher listview.Fetcher[T], cols []listview.Column[T], args []string) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.out)
	var lf listFlags
	lf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctrl, err := open(ctx, c, view, fetcher, &lf)
	if err != nil {
		return err
	}
	return printList(c.out, ctrl, cols)
}

func printList[T model.Listable](out io.Writer, ctrl *listview.Controller[T], cols []listview.Column[T]) error {
	rows := ctrl.Filtered()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	headers := make([]string, len(cols))
	for i, col := range cols {
		headers[i] = col.Header
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fields := make([]string, len(cols))
		for i, col := range cols {
			fields[i] = col.Value(row)
		}
		fmt.Fprintln(tw, strings.Join(fields, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	nav := ctrl.Nav()
	pages := make([]string, len(nav.Pages))
	for i, p := range nav.Pages {
		if p == nav.Current {
			pages[i] = fmt.Sprintf("[%d]", p)
		} else {
			pages[i] = fmt.Sprint(p)
		}
	}
	stats := ctrl.Stats()
	fmt.Fprintf(out, "\nPage %d of %d  %s  (%s records)\n", nav.Current, nav.Total, strings.Join(pages, " "), humanize.Comma(int64(stats.TotalRecords)))
	fmt.Fprintf(out, "Shown %d  Today %d  Patients %d%s\n", len(rows), stats.Today, stats.Patients, byStatus(stats.ByStatus))
	return nil
}

func byStatus(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		if k == "" {
			continue
		}
		fmt.Fprintf(&b, "  %s %d", k, counts[k])
	}
	return b.String()
}

func (c *cli) labs(ctx context.Context, args []string) error {
	return list[model.LabRecord](ctx, c, "labs", session.ViewLabRecords, c.app.Labs, listview.LabColumns, args)
}

func (c *cli) xrays(ctx context.Context, args []string) error {
	return list[model.XrayRecord](ctx, c, "xrays", session.ViewXrayRecords, c.app.Xrays, listview.XrayColumns, args)
}

func (c *cli) walkins(ctx context.Context, args []string) error {
	return list[model.XrayRecord](ctx, c, "walkins", session.ViewWalkIns, c.app.WalkIns, listview.XrayColumns, args)
}

func (c *cli) users(ctx context.Context, args []string) error {
	return list[model.User](ctx, c, "users", session.ViewUsers, c.app.Users, listview.UserColumns, args)
}

func (c *cli) stats(ctx context.Context, args []string) error {
	if err := c.require(ctx, session.ViewWalkIns); err != nil {
		return err
	}
	s := c.app.WalkInStatistics(ctx)
	if s == nil {
		return errors.New("walk-in statistics are unavailable")
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Total\t%d\n", s.Total)
	fmt.Fprintf(tw, "Today\t%d\n", s.Today)
	fmt.Fprintf(tw, "Pending\t%d\n", s.Pending)
	fmt.Fprintf(tw, "Completed\t%d\n", s.Completed)
	for _, p := range []model.Priority{model.PriorityRoutine, model.PriorityUrgent, model.PriorityEmergency} {
		fmt.Fprintf(tw, "%s\t%d\n", p, s.ByPriority[string(p)])
	}
	return tw.Flush()
}

func (c *cli) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(c.out)
	var lf listFlags
	lf.register(fs)
	kind := fs.String("kind", "labs", "labs, xrays, walkins or users")
	format := fs.String("format", "csv", "csv or xlsx")
	path := fs.String("o", "", "output file (csv defaults to stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *format != "csv" && *format != "xlsx" {
		return fmt.Errorf("unknown format %q", *format)
	}
	if *format == "xlsx" && *path == "" {
		return errors.New("xlsx export needs -o")
	}

	switch *kind {
	case "labs":
		ctrl, err := open[model.LabRecord](ctx, c, session.ViewLabRecords, c.app.Labs, &lf)
		if err != nil {
			return err
		}
		return writeExport(c, ctrl, listview.LabColumns, "Lab Records", *format, *path)
	case "xrays":
		ctrl, err := open[model.XrayRecord](ctx, c, session.ViewXrayRecords, c.app.Xrays, &lf)
		if err != nil {
			return err
		}
		return writeExport(c, ctrl, listview.XrayColumns, "X-Ray Records", *format, *path)
	case "walkins":
		ctrl, err := open[model.XrayRecord](ctx, c, session.ViewWalkIns, c.app.WalkIns, &lf)
		if err != nil {
			return err
		}
		return writeExport(c, ctrl, listview.XrayColumns, "Walk-In Records", *format, *path)
	case "users":
		ctrl, err := open[model.User](ctx, c, session.ViewUsers, c.app.Users, &lf)
		if err != nil {
			return err
		}
		return writeExport(c, ctrl, listview.UserColumns, "Users", *format, *path)
	default:
		return fmt.Errorf("unknown kind %q", *kind)
	}
}

func writeExport[T model.Listable](c *cli, ctrl *listview.Controller[T], cols []listview.Column[T], sheet, format, path string) error {
	w, done, err := c.output(path)
	if err != nil {
		return err
	}
	defer done()

	if format == "xlsx" {
		err = ctrl.ExportXLSX(w, sheet, cols)
	} else {
		err = ctrl.ExportCSV(w, cols)
	}
	if err != nil {
		return err
	}
	c.logger.Info("Exported records", zap.String("sheet", sheet), zap.String("format", format), zap.Int("rows", len(ctrl.Filtered())))
	return nil
}

func (c *cli) report(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(c.out)
	kind := fs.String("kind", "lab", "lab, xray or walkin")
	id := fs.String("id", "", "record ID")
	path := fs.String("o", "", "output file (defaults to stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("report needs -id")
	}

	head := listview.Letterhead{Hospital: c.cfg.Hospital, Address: c.cfg.Address, Phone: c.cfg.Phone}
	w, done, err := c.output(*path)
	if err != nil {
		return err
	}
	defer done()

	switch *kind {
	case "lab":
		if err := c.require(ctx, session.ViewLabRecords); err != nil {
			return err
		}
		rec, err := c.app.LabReport(ctx, *id)
		if err != nil {
			return err
		}
		return listview.RenderLabReport(w, head, rec)
	case "xray", "walkin":
		view := session.ViewXrayRecords
		if *kind == "walkin" {
			view = session.ViewWalkIns
		}
		if err := c.require(ctx, view); err != nil {
			return err
		}
		rec, err := c.app.XrayReport(ctx, *id, *kind == "walkin")
		if err != nil {
			return err
		}
		return listview.RenderXrayReport(w, head, rec)
	default:
		return fmt.Errorf("unknown kind %q", *kind)
	}
}

func (c *cli) image(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("image", flag.ContinueOnError)
	fs.SetOutput(c.out)
	url := fs.String("url", "", "image URL as stored on the record")
	path := fs.String("o", "", "output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *url == "" || *path == "" {
		return errors.New("image needs -url and -o")
	}

	w, done, err := c.output(*path)
	if err != nil {
		return err
	}
	defer done()

	n, err := c.api.DownloadImage(ctx, *url, w)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Saved %s to %s\n", humanize.Bytes(uint64(n)), *path)
	return nil
}

// output opens path for writing, or returns the command output when path
// is empty.
func (c *cli) output(path string) (io.Writer, func(), error) {
	if path == "" {
		return c.out, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			c.logger.Warn("Failed to close output", zap.String("path", path), zap.Error(err))
		}
	}, nil
}
