package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"schedcal/app"
	"schedcal/config"
)

var (
	inputPath  string
	outputPath string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run a single scheduling pass over an input file",
	RunE:  runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVarP(&inputPath, "input", "i", "", "appointment request file (json)")
	scheduleCmd.Flags().StringVarP(&outputPath, "output", "o", "", "result file, stdout when omitted")
	if err := scheduleCmd.MarkFlagRequired("input"); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()
	return svc.RunOnce(ctx, inputPath, outputPath)
}
