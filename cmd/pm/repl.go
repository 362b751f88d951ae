package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/Hussein-Mazeh/LocalVault/internal/service"
	"github.com/Hussein-Mazeh/LocalVault/internal/vault"
	"github.com/Hussein-Mazeh/LocalVault/krypto"
	"github.com/Hussein-Mazeh/LocalVault/store"
)

type repl struct {
	a   *app
	svc *service.Service
}

func (r *repl) run(ctx context.Context) error {
	out := r.a.out
	for {
		fmt.Fprint(out, "pm> ")
		line, err := r.a.in.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		fields, perr := splitArgs(line)
		if perr != nil {
			fmt.Fprintln(r.a.errOut, perr)
			continue
		}
		if len(fields) == 0 {
			continue
		}

		cmd, args := fields[0], fields[1:]
		switch cmd {
		case "exit", "quit":
			return nil
		case "lock":
			r.svc.Logout()
			fmt.Fprintln(out, "vault locked")
			return nil
		}

		if err := r.dispatch(ctx, cmd, args); err != nil {
			if errors.Is(err, vault.ErrUnauthenticated) {
				fmt.Fprintln(r.a.errOut, "session expired; run pm session to unlock again")
				return nil
			}
			handleSessionError(r.a.errOut, err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *repl) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		printSessionHelp(r.a.out)
		return nil
	case "add":
		return r.add(ctx, args)
	case "edit":
		return r.edit(ctx, args)
	case "get":
		return r.get(ctx, args)
	case "copy":
		return r.copy(ctx, args)
	case "list", "ls":
		return r.list(ctx, args)
	case "search":
		return r.search(ctx, args)
	case "rm":
		return r.remove(ctx, args)
	case "folders":
		return r.folders(ctx, args)
	case "mkfolder":
		return r.mkfolder(ctx, args)
	case "rmfolder":
		return r.rmfolder(ctx, args)
	case "export":
		return r.export(ctx, args)
	case "import":
		return r.importBackup(ctx, args)
	default:
		return userError{msg: fmt.Sprintf("unknown command: %s", cmd)}
	}
}

func handleSessionError(w io.Writer, err error) {
	if err == nil {
		return
	}

	var uerr userError
	if errors.As(userFacing(err), &uerr) {
		fmt.Fprintln(w, uerr.Error())
		return
	}

	fmt.Fprintf(w, "error: %v\n", err)
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *pflag.FlagSet, args []string, positional int) error {
	if err := fs.Parse(args); err != nil {
		return userError{msg: fmt.Sprintf("invalid %s arguments: %v", fs.Name(), err)}
	}
	if positional >= 0 && fs.NArg() != positional {
		return userError{msg: "unexpected positional arguments"}
	}
	return nil
}

// folderFlag resolves an optional --folder value; zero means unfiled.
func folderFlag(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return vault.FolderIDPtr(id)
}

func (r *repl) add(ctx context.Context, args []string) error {
	fs := newFlagSet("add")
	var c vault.Credential
	var folder int64
	fs.StringVar(&c.ServiceName, "service", "", "service name")
	fs.StringVar(&c.Username, "user", "", "username")
	fs.StringVar(&c.Email, "email", "", "email address")
	fs.StringVar(&c.URL, "url", "", "login URL")
	fs.StringVar(&c.Notes, "notes", "", "free-form notes")
	fs.Int64Var(&folder, "folder", 0, "folder id")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	if strings.TrimSpace(c.ServiceName) == "" {
		return userError{msg: "add requires --service"}
	}
	c.FolderID = folderFlag(folder)

	secret, err := r.a.readConfirmed("Password: ", "Confirm: ")
	if err != nil {
		return err
	}
	defer krypto.Wipe(secret)
	c.Password = string(secret)

	id, err := r.svc.SaveCredential(ctx, c)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.a.out, "stored credential for %s (id=%d)\n", c.ServiceName, id)
	return nil
}

func (r *repl) edit(ctx context.Context, args []string) error {
	fs := newFlagSet("edit")
	var (
		id                                   int64
		folder                               int64
		serviceName, user, email, url, notes string
		newPassword, unfile                  bool
	)
	fs.Int64Var(&id, "id", 0, "credential id")
	fs.StringVar(&serviceName, "service", "", "service name")
	fs.StringVar(&user, "user", "", "username")
	fs.StringVar(&email, "email", "", "email address")
	fs.StringVar(&url, "url", "", "login URL")
	fs.StringVar(&notes, "notes", "", "free-form notes")
	fs.Int64Var(&folder, "folder", 0, "move to folder id")
	fs.BoolVar(&unfile, "unfile", false, "remove from its folder")
	fs.BoolVar(&newPassword, "password", false, "prompt for a new password")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	if id == 0 {
		return userError{msg: "edit requires --id"}
	}

	c, err := r.svc.GetCredential(ctx, id)
	if err != nil {
		return err
	}
	set := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	set("service", &c.ServiceName, serviceName)
	set("user", &c.Username, user)
	set("email", &c.Email, email)
	set("url", &c.URL, url)
	set("notes", &c.Notes, notes)
	if fs.Changed("folder") {
		c.FolderID = folderFlag(folder)
	}
	if unfile {
		c.FolderID = nil
	}
	if newPassword {
		secret, err := r.a.readConfirmed("New password: ", "Confirm: ")
		if err != nil {
			return err
		}
		defer krypto.Wipe(secret)
		c.Password = string(secret)
	}

	if _, err := r.svc.SaveCredential(ctx, c); err != nil {
		return err
	}
	fmt.Fprintf(r.a.out, "updated credential %d\n", id)
	return nil
}

func (r *repl) get(ctx context.Context, args []string) error {
	fs := newFlagSet("get")
	var id int64
	var show bool
	fs.Int64Var(&id, "id", 0, "credential id")
	fs.BoolVar(&show, "show", false, "print the password")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	if id == 0 {
		return userError{msg: "get requires --id"}
	}

	c, err := r.svc.GetCredential(ctx, id)
	if err != nil {
		return err
	}
	folder := ""
	if c.FolderID != nil {
		folders, err := r.svc.ListFolders(ctx)
		if err != nil {
			return err
		}
		for _, f := range folders {
			if f.ID == *c.FolderID {
				folder = f.Name
			}
		}
	}
	fmt.Fprint(r.a.out, renderCredential(c, folder, show))
	return nil
}

func (r *repl) copy(ctx context.Context, args []string) error {
	fs := newFlagSet("copy")
	var id int64
	var field string
	fs.Int64Var(&id, "id", 0, "credential id")
	fs.StringVar(&field, "field", vault.FieldPassword, "field to copy (password, username, email, url)")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	if id == 0 {
		return userError{msg: "copy requires --id"}
	}

	c, err := r.svc.GetCredential(ctx, id)
	if err != nil {
		return err
	}
	var value string
	switch field {
	case vault.FieldPassword:
		value = c.Password
	case vault.FieldUsername:
		value = c.Username
	case vault.FieldEmail:
		value = c.Email
	case vault.FieldURL:
		value = c.URL
	default:
		return userError{msg: fmt.Sprintf("cannot copy field %q", field)}
	}
	if value == "" {
		return userError{msg: fmt.Sprintf("%s is empty", field)}
	}

	if _, err := r.a.copyToClipboard(value, r.a.clipTTL); err != nil {
		return err
	}
	fmt.Fprintln(r.a.out, noticeStyle.Render(fmt.Sprintf("%s copied to clipboard; clearing in %s", field, r.a.clipTTL)))
	return nil
}

func (r *repl) list(ctx context.Context, args []string) error {
	fs := newFlagSet("list")
	var folder int64
	fs.Int64Var(&folder, "folder", 0, "only this folder id")
	if err := parse(fs, args, 0); err != nil {
		return err
	}

	creds, err := r.svc.ListCredentials(ctx, folderFlag(folder))
	if err != nil {
		return err
	}
	return r.printCredentials(ctx, creds)
}

func (r *repl) search(ctx context.Context, args []string) error {
	fs := newFlagSet("search")
	var folder int64
	fs.Int64Var(&folder, "folder", 0, "only this folder id")
	if err := parse(fs, args, -1); err != nil {
		return err
	}

	creds, err := r.svc.SearchCredentials(ctx, strings.Join(fs.Args(), " "), folderFlag(folder))
	if err != nil {
		return err
	}
	return r.printCredentials(ctx, creds)
}

func (r *repl) printCredentials(ctx context.Context, creds []vault.Credential) error {
	if len(creds) == 0 {
		fmt.Fprintln(r.a.out, "no credentials found")
		return nil
	}
	folders, err := r.svc.ListFolders(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.a.out, renderCredentials(creds, folders))
	return nil
}

func (r *repl) remove(ctx context.Context, args []string) error {
	fs := newFlagSet("rm")
	var id int64
	fs.Int64Var(&id, "id", 0, "credential id")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	if id == 0 {
		return userError{msg: "rm requires --id"}
	}
	if err := r.svc.DeleteCredential(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(r.a.out, "deleted credential %d\n", id)
	return nil
}

func (r *repl) folders(ctx context.Context, args []string) error {
	if err := parse(newFlagSet("folders"), args, 0); err != nil {
		return err
	}
	folders, err := r.svc.ListFolders(ctx)
	if err != nil {
		return err
	}
	if len(folders) == 0 {
		fmt.Fprintln(r.a.out, "no folders")
		return nil
	}
	fmt.Fprintln(r.a.out, renderFolders(folders))
	return nil
}

func (r *repl) mkfolder(ctx context.Context, args []string) error {
	fs := newFlagSet("mkfolder")
	if err := parse(fs, args, -1); err != nil {
		return err
	}
	name := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(name) == "" {
		return userError{msg: "mkfolder requires a name"}
	}
	id, err := r.svc.CreateFolder(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.a.out, "created folder %s (id=%d)\n", name, id)
	return nil
}

func (r *repl) rmfolder(ctx context.Context, args []string) error {
	fs := newFlagSet("rmfolder")
	var id int64
	fs.Int64Var(&id, "id", 0, "folder id")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	if id == 0 {
		return userError{msg: "rmfolder requires --id"}
	}
	if err := r.svc.DeleteFolder(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(r.a.out, "deleted folder %d; its credentials are now unfiled\n", id)
	return nil
}

func (r *repl) export(ctx context.Context, args []string) error {
	fs := newFlagSet("export")
	var file string
	fs.StringVar(&file, "file", "", "destination file")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	if file == "" {
		file = store.DefaultBackupName(r.a.cfg.Dir, r.a.now().Format("20060102-150405"))
	}

	pw, err := r.a.readSecret("Master password: ")
	if err != nil {
		return fmt.Errorf("read master password: %w", err)
	}
	defer krypto.Wipe(pw)

	err = store.WriteBackupFile(file, func(w io.Writer) error {
		return r.svc.ExportBackup(ctx, w, pw)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(r.a.out, "backup written to %s\n", file)
	return nil
}

func (r *repl) importBackup(ctx context.Context, args []string) error {
	fs := newFlagSet("import")
	var file string
	fs.StringVar(&file, "file", "", "backup file")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	if file == "" {
		return userError{msg: "import requires --file"}
	}

	data, err := store.ReadBackupFile(file)
	if err != nil {
		return userError{msg: err.Error()}
	}

	pw, err := r.a.readSecret("Backup password: ")
	if err != nil {
		return fmt.Errorf("read backup password: %w", err)
	}
	defer krypto.Wipe(pw)

	report, err := r.svc.ImportBackup(ctx, bytes.NewReader(data), pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.a.out, "imported %d credentials (%d folders created, %d reused)\n",
		report.CredentialsImported, report.FoldersCreated, report.FoldersReused)
	return nil
}

// splitArgs splits a command line on whitespace. Single or double quotes
// group words; there are no escapes.
func splitArgs(line string) ([]string, error) {
	var (
		out     []string
		cur     strings.Builder
		quote   rune
		inToken bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inToken {
				out = append(out, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quote")
	}
	if inToken {
		out = append(out, cur.String())
	}
	return out, nil
}

func printSessionHelp(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  add --service <name> [--user u] [--email e] [--url u] [--notes n] [--folder id]")
	fmt.Fprintln(w, "  edit --id <id> [--service ..] [--user ..] [--email ..] [--url ..] [--notes ..] [--folder id | --unfile] [--password]")
	fmt.Fprintln(w, "  get --id <id> [--show]")
	fmt.Fprintln(w, "  copy --id <id> [--field password|username|email|url]")
	fmt.Fprintln(w, "  list [--folder id]")
	fmt.Fprintln(w, "  search <text> [--folder id]")
	fmt.Fprintln(w, "  rm --id <id>")
	fmt.Fprintln(w, "  folders | mkfolder <name> | rmfolder --id <id>")
	fmt.Fprintln(w, "  export [--file path] | import --file <path>")
	fmt.Fprintln(w, "  lock | exit | quit")
}
