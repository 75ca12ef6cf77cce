package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewOrchestrationCmd создаёт группу команд управления оркестрацией.
func NewOrchestrationCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orchestration",
		Short: "Control global orchestration state",
	}

	cmd.AddCommand(
		newControlCmd("status", "Show orchestration state", clientFn, outputFn,
			func(c *Client) (*OrchestrationStateResponse, error) { return c.OrchestrationState() }),
		newControlCmd("start", "Start orchestration", clientFn, outputFn,
			func(c *Client) (*OrchestrationStateResponse, error) { return c.StartOrchestration() }),
		newControlCmd("pause", "Pause orchestration (in-flight stages finish)", clientFn, outputFn,
			func(c *Client) (*OrchestrationStateResponse, error) { return c.PauseOrchestration() }),
		newControlCmd("resume", "Resume orchestration", clientFn, outputFn,
			func(c *Client) (*OrchestrationStateResponse, error) { return c.ResumeOrchestration() }),
		newControlCmd("stop", "Stop orchestration", clientFn, outputFn,
			func(c *Client) (*OrchestrationStateResponse, error) { return c.StopOrchestration() }),
	)

	return cmd
}

func newControlCmd(use, short string, clientFn func() *Client, outputFn func() *Output, call func(*Client) (*OrchestrationStateResponse, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			state, err := call(client)
			if err != nil {
				return err
			}

			out.Print(
				[]string{"PHASE", "QUEUE_PAUSED", "ACTIVE_JOBS"},
				[][]string{{state.Phase, strconv.FormatBool(state.QueuePaused), strconv.Itoa(state.ActiveJobs)}},
				state,
			)
			return nil
		},
	}
}

// NewQueueCmd создаёт группу команд управления очередью.
func NewQueueCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Control the job queue",
	}

	cmd.AddCommand(
		newQueueCmd("status", "Show queue state", clientFn, outputFn,
			func(c *Client) (*QueueStateResponse, error) { return c.QueueState() }),
		newQueueCmd("pause", "Pause the queue", clientFn, outputFn,
			func(c *Client) (*QueueStateResponse, error) { return c.PauseQueue() }),
		newQueueCmd("resume", "Resume the queue", clientFn, outputFn,
			func(c *Client) (*QueueStateResponse, error) { return c.ResumeQueue() }),
	)

	return cmd
}

func newQueueCmd(use, short string, clientFn func() *Client, outputFn func() *Output, call func(*Client) (*QueueStateResponse, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			state, err := call(client)
			if err != nil {
				return err
			}

			out.Print(
				[]string{"PAUSED"},
				[][]string{{strconv.FormatBool(state.Paused)}},
				state,
			)
			return nil
		},
	}
}
