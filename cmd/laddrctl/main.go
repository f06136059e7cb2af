// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command laddrctl is the control-plane client for laddrd: it drives the
// LADDR_ADD/DEL/FLUSH/GETALL operations of spec §6 over HTTP, and offers a
// reload subcommand that prints the structured/unified diff between two
// config files. The reload subcommand does not contact the daemon.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/pmezard/go-difflib/difflib"

	"grimm.is/laddrd/internal/config"
	"grimm.is/laddrd/internal/ctlplane"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:7999", "laddrd control-plane base URL")
	flag.Parse()
	args := flag.Args()

	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	client := ctlplane.NewClient(*addr)
	ctx := context.Background()

	var err error
	switch args[0] {
	case "add":
		err = runAdd(ctx, client, args[1:])
	case "del":
		err = runDel(ctx, client, args[1:])
	case "flush":
		err = runFlush(ctx, client, args[1:])
	case "list":
		err = runList(ctx, client, args[1:])
	case "reload":
		err = runReload(args[1:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "laddrctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: laddrctl [-addr url] <command> [args]

commands:
  add -vaddr ip -vport n -proto tcp|udp -laddr ip -iface name
  del -vaddr ip -vport n -proto tcp|udp -laddr ip
  flush -vaddr ip -vport n -proto tcp|udp
  list -vaddr ip -vport n -proto tcp|udp
  reload -old path -new path [-dry-run]`)
}

func runAdd(ctx context.Context, c *ctlplane.Client, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	vaddr := fs.String("vaddr", "", "virtual server address")
	vport := fs.Int("vport", 0, "virtual server port")
	proto := fs.String("proto", "tcp", "tcp|udp")
	laddr := fs.String("laddr", "", "local address to add")
	iface := fs.String("iface", "", "interface name")
	af := fs.String("af", "inet", "inet|inet6")
	fs.Parse(args)

	req := ctlplane.AddRequest{
		Selector: ctlplane.ServiceSelector{VAddr: *vaddr, VPort: *vport, Proto: *proto},
		AFLaddr:  *af,
		Laddr:    *laddr,
		IfName:   *iface,
	}
	if err := c.Add(ctx, req); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func runDel(ctx context.Context, c *ctlplane.Client, args []string) error {
	fs := flag.NewFlagSet("del", flag.ExitOnError)
	vaddr := fs.String("vaddr", "", "virtual server address")
	vport := fs.Int("vport", 0, "virtual server port")
	proto := fs.String("proto", "tcp", "tcp|udp")
	laddr := fs.String("laddr", "", "local address to remove")
	af := fs.String("af", "inet", "inet|inet6")
	fs.Parse(args)

	req := ctlplane.DeleteRequest{
		Selector: ctlplane.ServiceSelector{VAddr: *vaddr, VPort: *vport, Proto: *proto},
		AFLaddr:  *af,
		Laddr:    *laddr,
	}
	if err := c.Delete(ctx, req); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func runFlush(ctx context.Context, c *ctlplane.Client, args []string) error {
	fs := flag.NewFlagSet("flush", flag.ExitOnError)
	vaddr := fs.String("vaddr", "", "virtual server address")
	vport := fs.Int("vport", 0, "virtual server port")
	proto := fs.String("proto", "tcp", "tcp|udp")
	fs.Parse(args)

	sel := ctlplane.ServiceSelector{VAddr: *vaddr, VPort: *vport, Proto: *proto}
	if err := c.Flush(ctx, sel); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func runList(ctx context.Context, c *ctlplane.Client, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	vaddr := fs.String("vaddr", "", "virtual server address")
	vport := fs.Int("vport", 0, "virtual server port")
	proto := fs.String("proto", "tcp", "tcp|udp")
	fs.Parse(args)

	sel := ctlplane.ServiceSelector{VAddr: *vaddr, VPort: *vport, Proto: *proto}
	resp, err := c.GetAll(ctx, sel)
	if err != nil {
		return err
	}
	fmt.Printf("%d local address(es)\n", resp.NLaddrs)
	for _, row := range resp.Laddrs {
		fmt.Printf("  %s/%s  conns=%d\n", row.Addr, row.AF, row.NConns)
	}
	return nil
}

// runReload prints both a unified diff and a structured Added/Removed/
// Modified summary of old vs. new config, the way the teacher's
// ConfigFile.Diff/DiffStructured pair previews a reload before it is
// applied (SPEC_FULL.md "Structured + unified config diff").
func runReload(args []string) error {
	fs := flag.NewFlagSet("reload", flag.ExitOnError)
	oldPath := fs.String("old", "", "previously-applied config file")
	newPath := fs.String("new", "", "candidate config file")
	dryRun := fs.Bool("dry-run", false, "print the diff without applying")
	fs.Parse(args)

	if *oldPath == "" || *newPath == "" {
		return fmt.Errorf("reload requires -old and -new")
	}

	oldCF, err := config.LoadConfigFile(*oldPath)
	if err != nil {
		return fmt.Errorf("loading -old: %w", err)
	}
	newCF, err := config.LoadConfigFile(*newPath)
	if err != nil {
		return fmt.Errorf("loading -new: %w", err)
	}

	oldJSON, _ := json.MarshalIndent(oldCF.Config, "", "  ")
	newJSON, _ := json.MarshalIndent(newCF.Config, "", "  ")
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(oldJSON)),
		B:        difflib.SplitLines(string(newJSON)),
		FromFile: *oldPath,
		ToFile:   *newPath,
		Context:  3,
	}
	unified, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return err
	}
	if unified != "" {
		fmt.Println("--- unified diff ---")
		fmt.Println(unified)
	} else {
		fmt.Println("no textual changes")
	}

	structured := config.DiffConfigs(oldCF.Config, newCF.Config)
	fmt.Println("--- structured summary ---")
	fmt.Printf("added:    %d\n", len(structured.Added))
	fmt.Printf("removed:  %d\n", len(structured.Removed))
	fmt.Printf("modified: %d\n", len(structured.Modified))
	fmt.Println(structured.String())

	if *dryRun {
		return nil
	}
	fmt.Println("(apply not yet requested: pass the new config's path to `laddrd -config` and send SIGHUP, or re-run without -dry-run once laddrctl gains a remote-apply transport)")
	return nil
}
