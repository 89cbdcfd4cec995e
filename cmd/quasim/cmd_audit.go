package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var auditLimit int

// auditCmd groups audit-trail queries
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the persisted audit trail",
}

var auditRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the most recent audit events",
	RunE:  runAuditRecent,
}

var auditRunCmd = &cobra.Command{
	Use:   "run [run-id]",
	Short: "Export every event of one run as JSONL",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditRun,
}

func init() {
	auditRecentCmd.Flags().IntVar(&auditLimit, "limit", 20, "Number of events to show")
	auditCmd.AddCommand(auditRecentCmd)
	auditCmd.AddCommand(auditRunCmd)
	rootCmd.AddCommand(auditCmd)
}

func runAuditRecent(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	events, err := rt.store.RecentEvents(auditLimit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No audit events recorded yet.")
		return nil
	}
	for _, e := range events {
		ts := time.UnixMilli(e.Timestamp).Format(time.RFC3339)
		status := "ok"
		if !e.Success {
			status = "FAIL"
		}
		fmt.Printf("%s  %-4s %-22s %s\n", ts, status, e.Type, e.Message)
	}
	return nil
}

func runAuditRun(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	events, err := rt.store.EventsByRun(args[0])
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintf(os.Stderr, "No events for run %s\n", args[0])
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return err
		}
	}
	return nil
}
