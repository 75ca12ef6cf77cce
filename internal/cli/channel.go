package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewChannelCmd создаёт группу команд для работы с каналами.
func NewChannelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Inspect publishing channels",
	}

	cmd.AddCommand(
		newChannelListCmd(clientFn, outputFn),
		newChannelShowCmd(clientFn, outputFn),
		newChannelSlotsCmd(clientFn, outputFn),
		newChannelInvalidateCmd(clientFn, outputFn),
	)

	return cmd
}

var channelHeaders = []string{"ID", "NAME", "ACTIVE", "CONCURRENCY", "MIN_SPACING_SEC", "CRON", "TZ"}

func channelRow(c ChannelResponse) []string {
	return []string{
		c.ID,
		c.Name,
		strconv.FormatBool(c.Active),
		strconv.Itoa(c.ConcurrencyLimit),
		strconv.Itoa(c.MinSpacingSec),
		c.PublishCron,
		c.Timezone,
	}
}

func newChannelListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			channels, err := client.ListChannels()
			if err != nil {
				return err
			}

			rows := make([][]string, len(channels))
			for i, c := range channels {
				rows[i] = channelRow(c)
			}

			out.Print(channelHeaders, rows, channels)
			return nil
		},
	}
}

func newChannelShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show CHANNEL_ID",
		Short: "Show channel configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			channel, err := client.GetChannel(args[0])
			if err != nil {
				return err
			}

			out.Print(channelHeaders, [][]string{channelRow(*channel)}, channel)
			return nil
		},
	}
}

func newChannelSlotsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "slots CHANNEL_ID",
		Short: "List upcoming publish slots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			slots, err := client.ListChannelSlots(args[0], limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "PUBLISH_AT", "JOB_ID", "CONSUMED_AT"}
			rows := make([][]string, len(slots))
			for i, s := range slots {
				rows[i] = []string{s.ID, s.PublishAt, s.JobID, s.ConsumedAt}
			}

			out.Print(headers, rows, slots)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newChannelInvalidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate CHANNEL_ID",
		Short: "Invalidate cached channel configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.InvalidateChannel(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Channel cache invalidated: %s", args[0]))
			return nil
		},
	}
}
