package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/safnadck/myapplication/core"
	"github.com/safnadck/myapplication/core/fee"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db     *sql.DB
	conf   *core.Config
	feeSvc fee.ServiceInterface
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, up-to, down, status, ...)")
	fmt.Fprintln(cli.out, "  template -franchise ID -batch ID -discount D [-total T] -lines 500:30,500:30 - replace a batch's fee template")
	fmt.Fprintln(cli.out, "  reminders [-notify] - list upcoming & overdue installments, optionally emailing upcoming ones")
	fmt.Fprintln(cli.out, "  revoke -installment ID - unenroll the student owing an overdue installment")
	fmt.Fprintln(cli.out, "  token -username USERNAME - mint a superuser API token; the signing key is prompted next")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	templateCmd := flag.NewFlagSet("template", flag.ContinueOnError)
	templateFranchise := templateCmd.Int64("franchise", 0, "The franchise id.")
	templateBatch := templateCmd.Int64("batch", 0, "The batch id.")
	templateDiscount := templateCmd.String("discount", "0", "The discount granted on the total.")
	templateTotal := templateCmd.String("total", "", "The target total. Left unchanged when empty.")
	templateLines := templateCmd.String("lines", "", "Comma separated AMOUNT:DAYS template lines, in order.")

	remindersCmd := flag.NewFlagSet("reminders", flag.ContinueOnError)
	remindersNotify := remindersCmd.Bool("notify", false, "Email students whose installment is coming up.")

	revokeCmd := flag.NewFlagSet("revoke", flag.ContinueOnError)
	revokeInstallment := revokeCmd.String("installment", "", "The overdue installment id.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenUname := tokenCmd.String("username", "", "The administrator's username.")

	for _, cmd := range []*flag.FlagSet{templateCmd, remindersCmd, revokeCmd, tokenCmd} {
		cmd.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "template":
		if err := templateCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *templateFranchise == 0 || *templateBatch == 0 {
			templateCmd.Usage()
			return errHelp
		}
		return cli.configureTemplate(*templateFranchise, *templateBatch, *templateDiscount, *templateTotal, *templateLines)

	case "reminders":
		if err := remindersCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.reminders(*remindersNotify)

	case "revoke":
		if err := revokeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *revokeInstallment == "" {
			revokeCmd.Usage()
			return errHelp
		}
		return cli.revoke(*revokeInstallment)

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenUname == "" {
			tokenCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter signing key (empty for the configured one):")
		key, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		return cli.token(*tokenUname, string(key))

	default:
		cli.printUsage()
		return errHelp
	}
}
