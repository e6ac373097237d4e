// Copyright 2026 The EHSAdmin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command rolectl manages roles and checks route access against a running
// EHS admin backend.
//
// The backend URL is read from EHS_API_URL and the session token from
// EHS_SESSION; "rolectl login" prints the export line for the latter.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/greenledger/ehsadmin/internal/client"
	"github.com/greenledger/ehsadmin/internal/editor"
	"github.com/greenledger/ehsadmin/internal/guard"
	"github.com/greenledger/ehsadmin/internal/observability/logger"
	"github.com/greenledger/ehsadmin/internal/permission"
)

const usage = `usage: rolectl <command> [args]

commands:
  login <email> <password>                 sign in and print the session export line
  whoami                                   show the signed-in user and role
  sections                                 print the permission section map
  nav <path>                               decide whether the current user may open path
  roles list                               list roles
  roles show <id>                          print a role's grant matrix
  roles export <id> <file.xlsx>            download a role's grant matrix
  roles create <name> <description> [--viewer]
  roles toggle <id> <STEM> <ACTION>        flip one grant with the cascade rule
  roles delete <id> --yes
`

var errUsage = errors.New("invalid usage")

func main() {
	logger.InitLogger(logger.Config{
		Level:  os.Getenv("EHS_LOG_LEVEL"),
		Format: "text",
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, os.Args[1:], os.Getenv("EHS_API_URL"), os.Getenv("EHS_SESSION"), os.Stdout, os.Stderr)
	if errors.Is(err, errUsage) {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "rolectl: %v\n", err)
		os.Exit(1)
	}
}

// cli carries the per-invocation state of one command.
type cli struct {
	c      *client.Client
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, baseURL, token string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	c, err := client.New(baseURL, client.WithSessionToken(token))
	if err != nil {
		return err
	}
	app := &cli{c: c, stdout: stdout, stderr: stderr}

	pos, flags := splitFlags(args[1:])
	switch args[0] {
	case "login":
		if len(pos) != 2 {
			return errUsage
		}
		return app.login(ctx, pos[0], pos[1])
	case "whoami":
		return app.whoami(ctx)
	case "sections":
		return app.sections(ctx)
	case "nav":
		if len(pos) != 1 {
			return errUsage
		}
		return app.nav(ctx, pos[0])
	case "roles":
		if len(pos) == 0 {
			return errUsage
		}
		return app.roles(ctx, pos[0], pos[1:], flags)
	}
	return errUsage
}

func (a *cli) roles(ctx context.Context, sub string, pos []string, flags map[string]bool) error {
	switch {
	case sub == "list" && len(pos) == 0:
		return a.listRoles(ctx)
	case sub == "show" && len(pos) == 1:
		return a.showRole(ctx, pos[0])
	case sub == "export" && len(pos) == 2:
		return a.exportRole(ctx, pos[0], pos[1])
	case sub == "create" && len(pos) == 2:
		return a.createRole(ctx, pos[0], pos[1], flags["viewer"])
	case sub == "toggle" && len(pos) == 3:
		return a.toggle(ctx, pos[0], pos[1], pos[2])
	case sub == "delete" && len(pos) == 1:
		if !flags["yes"] {
			return fmt.Errorf("refusing to delete %s without --yes", pos[0])
		}
		return a.deleteRole(ctx, pos[0])
	}
	return errUsage
}

func (a *cli) login(ctx context.Context, email, password string) error {
	user, err := a.c.Login(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stderr, "signed in as %s (%s)\n", user.Name, user.UserType.Name)
	fmt.Fprintf(a.stdout, "export EHS_SESSION=%s\n", a.c.SessionToken())
	return nil
}

func (a *cli) whoami(ctx context.Context) error {
	user, err := a.c.CurrentUser(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s <%s>\nrole: %s (%s)\ngranted: %d of %d keys\n",
		user.Name, user.Email, user.UserType.Name, user.UserType.ID,
		len(user.PermissionObject.Granted()), permission.Len())
	return nil
}

func (a *cli) sections(ctx context.Context) error {
	sections, err := a.c.Sections(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, s := range sections {
		fmt.Fprintf(tw, "%s\n", s.Name)
		for _, item := range s.Items {
			if item.IsBreak() {
				fmt.Fprintf(tw, "  %s\n", item.Break)
				continue
			}
			actions := make([]string, 0, permission.NumActions)
			for _, act := range item.Row.Applicable.Actions() {
				actions = append(actions, act.String())
			}
			fmt.Fprintf(tw, "    %s\t%s\t%s\n", item.Row.Name, item.Row.Stem, strings.Join(actions, ","))
		}
	}
	return tw.Flush()
}

// nav resolves the current user through a tracker, the way the admin
// shell does, and asks the guard about path.
func (a *cli) nav(ctx context.Context, path string) error {
	tracker := guard.NewTracker()
	state := tracker.Resolve(ctx, a.c.Principal)
	if state.Err != nil {
		fmt.Fprintf(a.stderr, "could not resolve current user: %v\n", state.Err)
	}

	d := guard.Navigate(state, path)
	fmt.Fprintf(a.stdout, "%s %s\n", d.Outcome, d.Route.Path)
	if d.Route.Key != "" {
		fmt.Fprintf(a.stdout, "requires %s\n", d.Route.Key)
	}
	if d.RedirectTo != "" {
		fmt.Fprintf(a.stdout, "redirect %s\n", d.RedirectTo)
	}
	if len(d.Route.Breadcrumb) > 0 {
		fmt.Fprintf(a.stdout, "breadcrumb %s\n", strings.Join(d.Route.Breadcrumb, " > "))
	}
	return nil
}

func (a *cli) listRoles(ctx context.Context) error {
	ed := a.editor()
	defer ed.Close()
	if err := ed.Refresh(ctx); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSER TYPE\tGRANTED\tDESCRIPTION")
	for _, r := range ed.Snapshot().Roles {
		name := r.Name
		if r.System {
			name += " (system)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, name, len(r.PermissionObject.Granted()), r.Description)
	}
	return tw.Flush()
}

func (a *cli) showRole(ctx context.Context, id string) error {
	role, err := a.c.GetRole(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s: %s\n\n", role.Name, role.Description)
	return writeMatrix(a.stdout, permission.BuildMatrix(role.PermissionObject))
}

func (a *cli) exportRole(ctx context.Context, id, file string) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	if err := a.c.ExportRole(ctx, id, f); err != nil {
		_ = f.Close()
		_ = os.Remove(file)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(a.stderr, "wrote %s\n", file)
	return nil
}

func (a *cli) createRole(ctx context.Context, name, description string, viewer bool) error {
	ed := a.editor()
	defer ed.Close()
	if err := ed.BeginCreate(); err != nil {
		return err
	}
	if err := ed.SetName(name); err != nil {
		return err
	}
	if err := ed.SetDescription(description); err != nil {
		return err
	}
	if viewer {
		if err := ed.UsePreset(permission.DefaultViewer()); err != nil {
			return err
		}
	}
	return a.submit(ctx, ed)
}

func (a *cli) toggle(ctx context.Context, id, stem, action string) error {
	act, err := permission.ParseAction(action)
	if err != nil {
		return err
	}
	ed := a.editor()
	defer ed.Close()
	if err := ed.BeginEdit(ctx, id); err != nil {
		return err
	}
	if err := ed.Toggle(permission.Stem(strings.ToUpper(stem)), act); err != nil {
		return err
	}
	return a.submit(ctx, ed)
}

func (a *cli) deleteRole(ctx context.Context, id string) error {
	ed := a.editor()
	defer ed.Close()
	if err := ed.RequestDelete(id); err != nil {
		return err
	}
	return ed.ConfirmDelete(ctx)
}

func (a *cli) submit(ctx context.Context, ed *editor.Editor) error {
	role, err := ed.Submit(ctx)
	if err != nil {
		fields := ed.Snapshot().FieldErrors
		names := make([]string, 0, len(fields))
		for f := range fields {
			names = append(names, f)
		}
		sort.Strings(names)
		for _, f := range names {
			fmt.Fprintf(a.stderr, "  %s: %s\n", f, fields[f])
		}
		return err
	}
	fmt.Fprintf(a.stdout, "%s\t%s\t%d granted\n", role.ID, role.Name, len(role.PermissionObject.Granted()))
	return nil
}

func (a *cli) editor() *editor.Editor {
	return editor.New(a.c, printer{w: a.stderr})
}

// printer shows editor notifications on the terminal.
type printer struct {
	w io.Writer
}

func (p printer) Notify(level editor.Level, message string) {
	prefix := "ok"
	if level == editor.Failure {
		prefix = "error"
	}
	fmt.Fprintf(p.w, "%s: %s\n", prefix, message)
}

func writeMatrix(w io.Writer, rows []permission.MatrixRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SECTION\tCAPABILITY\tVIEW\tCREATE\tEDIT\tDELETE")
	for _, r := range rows {
		name := r.Name
		if r.Break != "" {
			name = r.Break + " / " + r.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Section, name,
			r.Cells[permission.ActionView], r.Cells[permission.ActionCreate],
			r.Cells[permission.ActionEdit], r.Cells[permission.ActionDelete])
	}
	return tw.Flush()
}

// splitFlags separates --name switches from positional arguments so that
// switches may follow them.
func splitFlags(args []string) ([]string, map[string]bool) {
	var pos []string
	flags := map[string]bool{}
	for _, arg := range args {
		if name, ok := strings.CutPrefix(arg, "--"); ok && name != "" {
			flags[name] = true
			continue
		}
		pos = append(pos, arg)
	}
	return pos, flags
}
