// Vidpipe CLI — инструмент командной строки для управления
// конвейером публикации видео через HTTP API.
//
// Использование:
//
//	vidpipe [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	job            Управление jobs
//	channel        Просмотр каналов и слотов
//	orchestration  Управление глобальным состоянием
//	queue          Управление очередью
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dkurenkov/vidpipe/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "vidpipe",
		Short:         "Vidpipe CLI — video pipeline orchestration tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewJobCmd(clientFn, outputFn),
		cli.NewChannelCmd(clientFn, outputFn),
		cli.NewOrchestrationCmd(clientFn, outputFn),
		cli.NewQueueCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
