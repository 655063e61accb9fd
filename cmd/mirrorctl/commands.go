package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"mailmirror/backend/internal/adaptor"
	"mailmirror/backend/internal/app"
	"mailmirror/backend/internal/binding"
	"mailmirror/backend/internal/domain"
	"mailmirror/backend/internal/service"
)

var errUsage = errors.New("usage error")

type command struct {
	usage string
	run   func(ctx context.Context, a *app.App, args []string, out io.Writer) error
}

var commands = map[string]command{
	"create-domain": {"-host <mail_host> [-contact <address>] [-description <text>]", createDomain},
	"create-list":   {"-domain <mail_host> -name <list_name> [-display <name>] [-hidden]", createList},
	"subscribe":     {"-list <fqdn> -address <email> [-role member|owner|moderator]", subscribe},
	"unsubscribe":   {"-list <fqdn> -address <email> [-role member|owner|moderator]", unsubscribe},
	"roster":        {"-list <fqdn> [-role member|owner|moderator]", roster},
	"settings":      {"-list <fqdn> key=value ...", settings},
	"create-user":   {"-email <address> [-name <display_name>] [-password <password>] [-superuser]", createUser},
	"set-password":  {"-email <address> -password <password>", setPassword},
	"refresh":       {"[kind ...]", refresh},
	"remote":        {"domains|lists|users|members", remote},
}

func usage(out io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(out, "用法: mirrorctl <command> [flags]")
	for _, name := range names {
		fmt.Fprintf(out, "  %-14s %s\n", name, commands[name].usage)
	}
}

// dispatch 执行子命令
func dispatch(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(out)
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		usage(out)
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	return cmd.run(ctx, a, args[1:], out)
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func required(fs *flag.FlagSet, values map[string]string) error {
	for name, value := range values {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s: -%s is required", errUsage, fs.Name(), name)
		}
	}
	return nil
}

func createDomain(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("create-domain", out)
	host := fs.String("host", "", "邮件主机名")
	contact := fs.String("contact", "", "联系人地址")
	description := fs.String("description", "", "描述")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, map[string]string{"host": *host}); err != nil {
		return err
	}

	d, err := a.Domains.Create(ctx, service.CreateDomainInput{
		MailHost:       *host,
		ContactAddress: *contact,
		Description:    *description,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "domain %d %s -> %s\n", d.ID, d.MailHost, peer(d.PartialURL))
	return nil
}

func createList(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("create-list", out)
	host := fs.String("domain", "", "邮件主机名")
	name := fs.String("name", "", "列表名")
	display := fs.String("display", "", "显示名")
	hidden := fs.Bool("hidden", false, "不在公开目录中列出")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, map[string]string{"domain": *host, "name": *name}); err != nil {
		return err
	}

	d, err := a.Domains.GetByMailHost(ctx, *host)
	if err != nil {
		return err
	}
	input := service.CreateListInput{ListName: *name, DisplayName: *display}
	if *hidden {
		advertised := false
		input.Advertised = &advertised
	}
	list, err := a.Lists.CreateList(ctx, d.ID, input)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "list %d %s -> %s\n", list.ID, list.FQDNListname, peer(list.PartialURL))
	return nil
}

// membershipFlags 解析订阅相关命令共用的参数
func membershipFlags(ctx context.Context, a *app.App, name string, args []string, out io.Writer) (*domain.MailingList, string, domain.Role, error) {
	fs := newFlagSet(name, out)
	fqdn := fs.String("list", "", "列表地址")
	address := fs.String("address", "", "订阅地址")
	role := fs.String("role", string(domain.RoleMember), "角色")
	if err := fs.Parse(args); err != nil {
		return nil, "", "", err
	}
	if err := required(fs, map[string]string{"list": *fqdn, "address": *address}); err != nil {
		return nil, "", "", err
	}
	list, err := a.Lists.GetByFQDN(ctx, *fqdn)
	if err != nil {
		return nil, "", "", err
	}
	return list, *address, domain.Role(*role), nil
}

func subscribe(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	list, address, role, err := membershipFlags(ctx, a, "subscribe", args, out)
	if err != nil {
		return err
	}
	m, err := a.Lists.Subscribe(ctx, list.ID, address, role)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "membership %d %s %s of %s -> %s\n", m.ID, m.Address, m.Role, list.FQDNListname, peer(m.PartialURL))
	return nil
}

func unsubscribe(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	list, address, role, err := membershipFlags(ctx, a, "unsubscribe", args, out)
	if err != nil {
		return err
	}
	if err := a.Lists.Unsubscribe(ctx, list.ID, address, role); err != nil {
		return err
	}
	fmt.Fprintf(out, "unsubscribed %s (%s) from %s\n", domain.NormalizeAddress(address), role, list.FQDNListname)
	return nil
}

func roster(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("roster", out)
	fqdn := fs.String("list", "", "列表地址")
	role := fs.String("role", "", "角色，留空列出全部")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, map[string]string{"list": *fqdn}); err != nil {
		return err
	}
	list, err := a.Lists.GetByFQDN(ctx, *fqdn)
	if err != nil {
		return err
	}

	var rows []*domain.Membership
	switch domain.Role(*role) {
	case "":
		rows, err = a.Lists.AllSubscribers(ctx, list.ID)
	case domain.RoleOwner:
		rows, err = a.Lists.Owners(ctx, list.ID)
	case domain.RoleModerator:
		rows, err = a.Lists.Moderators(ctx, list.ID)
	case domain.RoleMember:
		rows, err = a.Lists.Members(ctx, list.ID)
	default:
		return fmt.Errorf("%w: %q", domain.ErrInvalidRole, *role)
	}
	if err != nil {
		return err
	}
	for _, m := range rows {
		fmt.Fprintf(out, "%s\t%s\n", m.Role, m.Address)
	}
	return nil
}

func settings(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("settings", out)
	fqdn := fs.String("list", "", "列表地址")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, map[string]string{"list": *fqdn}); err != nil {
		return err
	}
	list, err := a.Lists.GetByFQDN(ctx, *fqdn)
	if err != nil {
		return err
	}

	if fs.NArg() == 0 {
		current, err := a.Lists.Settings(list.ID)
		if err != nil {
			return err
		}
		for _, name := range domain.SettingsColumns() {
			value, _ := current.Field(name)
			fmt.Fprintf(out, "%s=%v\n", name, value)
		}
		return nil
	}

	values := make(map[string]any, fs.NArg())
	for _, arg := range fs.Args() {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return fmt.Errorf("%w: settings: expected key=value, got %q", errUsage, arg)
		}
		values[key] = value
	}
	if _, err := a.Lists.UpdateSettings(ctx, list.ID, values); err != nil {
		return err
	}
	fmt.Fprintf(out, "updated %d settings of %s\n", len(values), list.FQDNListname)
	return nil
}

func createUser(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("create-user", out)
	email := fs.String("email", "", "首选邮箱")
	name := fs.String("name", "", "显示名")
	password := fs.String("password", "", "密码")
	superuser := fs.Bool("superuser", false, "超级用户")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, map[string]string{"email": *email}); err != nil {
		return err
	}

	user, err := a.Users.Create(ctx, service.CreateUserInput{
		Email:       *email,
		DisplayName: *name,
		Password:    *password,
		IsSuperuser: *superuser,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "user %d %s -> %s\n", user.ID, domain.NormalizeAddress(*email), peer(user.PartialURL))
	return nil
}

func setPassword(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("set-password", out)
	email := fs.String("email", "", "用户的任一邮箱")
	password := fs.String("password", "", "新密码")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, map[string]string{"email": *email, "password": *password}); err != nil {
		return err
	}

	e, err := a.Users.GetEmail(ctx, *email)
	if err != nil {
		return err
	}
	if err := a.Users.SetPassword(ctx, e.UserID, *password); err != nil {
		return err
	}
	fmt.Fprintf(out, "password updated for user %d\n", e.UserID)
	return nil
}

func refresh(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	kinds := binding.RefreshOrder
	if len(args) > 0 {
		kinds = make([]domain.Kind, 0, len(args))
		for _, arg := range args {
			kind, err := domain.ParseKind(arg)
			if err != nil {
				return err
			}
			kinds = append(kinds, kind)
		}
	}
	for _, kind := range kinds {
		created, err := a.Binder.Refresh(ctx, kind)
		if err != nil {
			return fmt.Errorf("refresh %s: %w", kind, err)
		}
		fmt.Fprintf(out, "%s: %d created\n", kind, created)
	}
	return nil
}

// remote 直接列出远端集合，不经过本地存储
func remote(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: remote: expected one of domains, lists, users, members", errUsage)
	}

	switch args[0] {
	case "domains":
		domains, err := adaptor.Domains(ctx, a.Conn)
		if err != nil {
			return err
		}
		for _, d := range domains {
			host, err := d.MailHost(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, host)
		}
	case "lists":
		lists, err := adaptor.Lists(ctx, a.Conn, false)
		if err != nil {
			return err
		}
		for _, l := range lists {
			fqdn, err := l.FQDNListname(ctx)
			if err != nil {
				return err
			}
			count, err := l.MemberCount(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\t%d\n", fqdn, count)
		}
	case "users":
		users, err := adaptor.Users(ctx, a.Conn)
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Fprintln(out, u.URL())
		}
	case "members":
		members, err := adaptor.Members(ctx, a.Conn)
		if err != nil {
			return err
		}
		for _, m := range members {
			id, err := m.MemberID(ctx)
			if err != nil {
				return err
			}
			listID, err := m.ListID(ctx)
			if err != nil {
				return err
			}
			role, err := m.Role(ctx)
			if err != nil {
				return err
			}
			address, err := m.Address(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", id, listID, role, address)
		}
	default:
		return fmt.Errorf("%w: remote: unknown collection %q", errUsage, args[0])
	}
	return nil
}

func peer(path string) string {
	if path == "" {
		return "(not synced)"
	}
	return path
}
