package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/trezcool/alama/core/marks"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db      *sql.DB
	markSvc marks.Service
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run database migrations (up, down, status, version, ...)")
	fmt.Println("  readiness -schedule ID -subject ID -section ID [-status STATUS] - check a group's readiness to leave STATUS")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	readinessCmd := flag.NewFlagSet("readiness", flag.ExitOnError)
	readinessSched := readinessCmd.String("schedule", "", "The exam schedule ID.")
	readinessSubj := readinessCmd.String("subject", "", "The subject ID.")
	readinessSect := readinessCmd.String("section", "", "The section ID.")
	readinessStatus := readinessCmd.String("status", string(marks.StatusEntered), "The status the group is expected to be at.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "readiness":
		if err := readinessCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *readinessSched == "" || *readinessSubj == "" || *readinessSect == "" {
			readinessCmd.Usage()
			return errHelp
		}
		key := marks.GroupKey{
			ScheduleID: *readinessSched,
			SubjectID:  *readinessSubj,
			SectionID:  *readinessSect,
		}
		return cli.readiness(key, marks.Status(*readinessStatus))
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) readiness(key marks.GroupKey, target marks.Status) error {
	rep, err := cli.markSvc.Readiness(context.Background(), key, target)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cli.out, string(out))
	return err
}
