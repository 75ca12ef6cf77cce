package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewJobCmd создаёт группу команд для управления jobs.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage pipeline jobs",
	}

	cmd.AddCommand(
		newJobListCmd(clientFn, outputFn),
		newJobEnqueueCmd(clientFn, outputFn),
		newJobShowCmd(clientFn, outputFn),
		newJobCancelCmd(clientFn, outputFn),
		newJobRunsCmd(clientFn, outputFn),
	)

	return cmd
}

func jobRow(j JobResponse) []string {
	errText := j.Error
	if len(errText) > 40 {
		errText = errText[:37] + "..."
	}
	return []string{j.ID, j.ChannelID, j.Stage, j.Status, strconv.Itoa(j.Attempt), errText}
}

var jobHeaders = []string{"ID", "CHANNEL_ID", "STAGE", "STATUS", "ATTEMPT", "ERROR"}

func newJobListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var channelID string
	var status string
	var stage string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			jobs, err := client.ListJobs(ListJobsOpts{
				ChannelID: channelID,
				Status:    status,
				Stage:     stage,
				Limit:     limit,
			})
			if err != nil {
				return err
			}

			rows := make([][]string, len(jobs))
			for i, j := range jobs {
				rows[i] = jobRow(j)
			}

			out.Print(jobHeaders, rows, jobs)
			return nil
		},
	}

	cmd.Flags().StringVar(&channelID, "channel-id", "", "Filter by channel ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED, CANCELLED)")
	cmd.Flags().StringVar(&stage, "stage", "", "Filter by stage (SCRAPE, DOWNLOAD, TRANSFORM, DISTRIBUTE, DONE)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newJobEnqueueCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var payload []string

	cmd := &cobra.Command{
		Use:   "enqueue CHANNEL_ID",
		Short: "Enqueue a new job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := EnqueueJobRequest{ChannelID: args[0]}

			if len(payload) > 0 {
				req.Payload = make(map[string]any)
				for _, kv := range payload {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid payload format %q, expected KEY=VALUE", kv)
					}
					req.Payload[parts[0]] = parts[1]
				}
			}

			job, err := client.EnqueueJob(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job enqueued: %s", job.ID))
			out.Print(jobHeaders, [][]string{jobRow(*job)}, job)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&payload, "payload", nil, "Payload values as KEY=VALUE (repeatable)")

	return cmd
}

func newJobShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show JOB_ID",
		Short: "Show job details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetJob(args[0])
			if err != nil {
				return err
			}

			out.Print(jobHeaders, [][]string{jobRow(*job)}, job)
			return nil
		},
	}
}

func newJobCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel JOB_ID",
		Short: "Cancel a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.CancelJob(args[0])
			if err != nil {
				return err
			}

			if job.CancelRequested {
				out.Success(fmt.Sprintf("Cancel requested for running job %s", job.ID))
			} else {
				out.Success(fmt.Sprintf("Job cancelled: %s", job.ID))
			}
			out.Print(jobHeaders, [][]string{jobRow(*job)}, job)
			return nil
		},
	}
}

func newJobRunsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "runs JOB_ID",
		Short: "Show stage execution history for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListStageRuns(args[0])
			if err != nil {
				return err
			}

			headers := []string{"STAGE", "ATTEMPT", "OUTCOME", "FATAL", "DURATION_MS", "ERROR"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				errText := r.Error
				if len(errText) > 40 {
					errText = errText[:37] + "..."
				}
				rows[i] = []string{
					r.Stage,
					strconv.Itoa(r.Attempt),
					r.Outcome,
					strconv.FormatBool(r.Fatal),
					strconv.FormatInt(r.DurationMS, 10),
					errText,
				}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}
}
