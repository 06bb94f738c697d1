package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"quicknote/internal/diagnostics"
	"quicknote/internal/domain"
	"quicknote/internal/guard"
	"quicknote/internal/history"
	"quicknote/internal/jobs"
	"quicknote/internal/result"
	"quicknote/internal/transcribe"
	"quicknote/internal/view"
)

var stdin = bufio.NewReader(os.Stdin)

func prompt(label string) string {
	fmt.Fprint(os.Stderr, label)
	line, _ := stdin.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

// gate applies the same route policy as the desktop shell.
func (c *cli) gate(ctx context.Context, route string) error {
	s := c.session.Refresh(ctx)
	if d := guard.Evaluate(route, s); d.Redirect == guard.RouteLogin {
		return domain.NewError(domain.KindAuthRequired, "Not logged in. Run `quicknote login` first.")
	}
	return nil
}

func (c *cli) saveCookies() {
	if err := c.cookies.Save(c.client.Cookies()); err != nil {
		warn("could not save session: %v", err)
	}
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		*email = prompt("Email: ")
	}
	if *password == "" {
		*password = prompt("Password: ")
	}

	s, err := c.session.Login(ctx, domain.Credentials{Email: *email, Password: *password})
	if err != nil {
		return err
	}
	c.saveCookies()
	if s.Identity != nil && s.Identity.Email != "" {
		ok("Logged in as %s", s.Identity.Email)
	} else {
		ok("Logged in")
	}
	return nil
}

func (c *cli) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		*email = prompt("Email: ")
	}
	confirm := *password
	if *password == "" {
		*password = prompt("Password: ")
		confirm = prompt("Confirm password: ")
	}

	err := c.session.Register(ctx, domain.Registration{Email: *email, Password: *password, ConfirmPassword: confirm})
	var derr *domain.Error
	if errors.As(err, &derr) {
		for field, msg := range derr.Fields {
			warn("%s: %s", field, msg)
		}
	}
	if err != nil {
		return err
	}
	ok("Registration successful! Please log in.")
	return nil
}

func (c *cli) logout(ctx context.Context) error {
	c.session.Logout(ctx)
	c.client.ClearCookies()
	if err := c.cookies.Save(nil); err != nil {
		return err
	}
	ok("Logged out")
	return nil
}

func (c *cli) whoami(ctx context.Context) error {
	s := c.session.Refresh(ctx)
	if s.Identity == nil {
		return domain.NewError(domain.KindAuthRequired, "Not logged in.")
	}
	c.saveCookies()
	switch {
	case s.Identity.Email != "":
		fmt.Println(s.Identity.Email)
	case s.Identity.ID != "":
		fmt.Println(s.Identity.ID)
	default:
		fmt.Println(string(s.Identity.Raw))
	}
	return nil
}

func (c *cli) transcribe(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: quicknote transcribe FILE")
	}
	if err := c.gate(ctx, guard.RouteTranscribe); err != nil {
		return err
	}

	events := jobs.NewEventBus(100)
	events.Subscribe(func(e jobs.Event) {
		if e.Type == jobs.EventTypeStatus {
			info("%s %s", view.StatusLabel(string(e.Status)), e.File)
		}
	})
	ctrl := transcribe.NewController(c.client, events, c.log)
	if _, err := ctrl.Select(args[0]); err != nil {
		return err
	}

	st, err := ctrl.Submit(ctx)
	w := view.NewWorkflow(st)
	if err != nil {
		if w.ShowHistoryLink {
			info("Check `quicknote history` later for the result.")
		}
		return err
	}
	fmt.Print(view.RenderWorkflow(w))
	ok("Transcription complete")
	return nil
}

func (c *cli) history(ctx context.Context) error {
	if err := c.gate(ctx, guard.RouteHistory); err != nil {
		return err
	}
	records, err := history.NewController(c.client, c.session, c.log).Load(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		info("No transcriptions yet.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED\tSTATUS")
	for _, row := range view.History(records, time.Local) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.ID, row.Name, row.CreatedAt, row.StatusLabel)
	}
	return tw.Flush()
}

func (c *cli) show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: quicknote show ID")
	}
	if err := c.gate(ctx, guard.ResultRoute(args[0])); err != nil {
		return err
	}
	viewer := c.viewer()
	detail, err := viewer.Load(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Print(view.RenderMarkdown(view.NewResult(detail, viewer, time.Local)))
	return nil
}

func (c *cli) delete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	if err := fs.Parse(reorder(args)); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: quicknote delete ID [--yes]")
	}
	id := fs.Arg(0)
	if err := c.gate(ctx, guard.RouteHistory); err != nil {
		return err
	}

	ctrl := history.NewController(c.client, c.session, c.log)
	if _, err := ctrl.Load(ctx); err != nil {
		return err
	}

	confirm := func(_ domain.HistoryRecord, question string) (bool, error) {
		if *yes {
			return true, nil
		}
		answer := strings.ToLower(strings.TrimSpace(prompt(question + " [y/N] ")))
		return answer == "y" || answer == "yes", nil
	}
	err := ctrl.Delete(ctx, id, confirm)
	if errors.Is(err, history.ErrDeleteCancelled) {
		info("Nothing deleted.")
		return nil
	}
	if err != nil {
		return err
	}
	ok("Deleted %s", id)
	return nil
}

func (c *cli) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	format := fs.String("format", string(domain.ExportPDF), "Document format: pdf|docx")
	if err := fs.Parse(reorder(args)); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: quicknote export ID --format pdf|docx")
	}
	id := fs.Arg(0)
	if err := c.gate(ctx, guard.ResultRoute(id)); err != nil {
		return err
	}

	dl, err := c.viewer().Export(ctx, id, domain.ExportFormat(strings.ToLower(*format)))
	if err != nil {
		return err
	}
	if dl.Fallback {
		warn("Server did not name the file; saved as %s", dl.Filename)
	}
	ok("Saved %s (%d bytes)", dl.Path, dl.Size)
	return nil
}

func (c *cli) doctor() error {
	report := diagnostics.NewChecker().Run(c.settings)
	for _, item := range report.Items {
		if item.Status == domain.DiagnosticStatusPass {
			ok("%s: %s", item.Name, item.Message)
			continue
		}
		fail("%s: %s", item.Name, item.Message)
		if item.Hint != "" {
			info("  %s", item.Hint)
		}
	}
	if report.HasFailures {
		return fmt.Errorf("some checks failed")
	}
	return nil
}

func (c *cli) viewer() *result.Viewer {
	dir := c.settings.DownloadDir
	return result.NewViewer(c.client, result.NewDirSink(func() string { return dir }), c.log)
}

// reorder moves flags ahead of positional arguments so "ID --format x" parses.
func reorder(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			positional = append(positional, a)
			continue
		}
		flags = append(flags, a)
		if !strings.Contains(a, "=") && i+1 < len(args) {
			flags = append(flags, args[i+1])
			i++
		}
	}
	return append(flags, positional...)
}
