package jobs

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/ValentinKolb/dbsrv/lib/jobs"
	"github.com/spf13/cobra"
)

var (
	createCmd = &cobra.Command{
		Use:   "create [description] [user]",
		Short: "Creates a new job and prints its id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := rpcJobDB.Create(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(job.ID)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Prints a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			job, err := rpcJobDB.Get(id)
			if err != nil {
				return err
			}
			printJobs(job)
			return nil
		},
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists all jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := rpcJobDB.List()
			if err != nil {
				return err
			}
			printJobs(all...)
			return nil
		},
	}
	statusCmd = &cobra.Command{
		Use:   "status [id] [status]",
		Short: "Changes the status of a job (executing, complete, failed, aborted)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			status, err := jobs.ParseStatus(args[1])
			if err != nil {
				return err
			}
			job, err := rpcJobDB.SetStatus(id, status)
			if err != nil {
				return err
			}
			printJobs(job)
			return nil
		},
	}
	logCmd = &cobra.Command{
		Use:   "log [id] [level] [message]",
		Short: "Appends a log record to a job",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return rpcJobDB.AppendLog(id, args[1], args[2])
		},
	}
	logsCmd = &cobra.Command{
		Use:   "logs [id]",
		Short: "Prints the log records of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			records, err := rpcJobDB.Logs(id)
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Printf("[%s #%d %s] %s\n", r.Time.Format(time.DateTime), id, r.Level, r.Message)
			}
			return nil
		},
	}
	deleteCmd = &cobra.Command{
		Use:   "delete [id]",
		Short: "Deletes a job and its logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := rpcJobDB.Delete(id); err != nil {
				return err
			}
			fmt.Println("deleted successfully")
			return nil
		},
	}
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("job id must be a number: %w", err)
	}
	return id, nil
}

func printJobs(list ...jobs.Job) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tUSER\tUPDATED\tDESCRIPTION")
	for _, j := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", j.ID, j.Status, j.User, j.UpdatedAt.Format(time.DateTime), j.Description)
	}
	_ = w.Flush()
}
