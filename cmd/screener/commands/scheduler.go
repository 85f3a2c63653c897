package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashare-lab/screener/internal/scheduler"
	"github.com/ashare-lab/screener/internal/scheduler/jobs"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Manage the scheduler",
	Long: `Starts the scheduler daemon or runs a registered job once.

Registered jobs:
  daily_screen - screening run after market close (SCHEDULE_CRON)

Example:
  go run ./cmd/screener scheduler start
  go run ./cmd/screener scheduler run daily_screen`,
}

var schedulerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scheduler daemon",
	RunE:  runSchedulerStart,
}

var schedulerRunCmd = &cobra.Command{
	Use:   "run [job]",
	Short: "Run a registered job immediately",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedulerJob,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func buildScheduler(rt *runtime) (*scheduler.Scheduler, error) {
	loc, err := time.LoadLocation(rt.cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", rt.cfg.Scheduler.Timezone, err)
	}

	sched := scheduler.New(rt.logger, loc)
	screenJob := jobs.NewDailyScreenJob(rt.pipeline, rt.cfg, rt.logger, loc)
	if err := sched.AddJob(screenJob); err != nil {
		return nil, err
	}
	return sched, nil
}

func runSchedulerStart(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	sched, err := buildScheduler(rt)
	if err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	rt.logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	return nil
}

func runSchedulerJob(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	sched, err := buildScheduler(rt)
	if err != nil {
		return err
	}

	jobName := args[0]
	if err := sched.RunJob(jobName); err != nil {
		return err
	}

	// RunJob is async; poll the history until the run lands.
	for i := 0; i < 600; i++ {
		time.Sleep(time.Second)
		history, err := sched.GetJobHistory(jobName)
		if err != nil {
			return err
		}
		if results := history.GetLatestResults(1); len(results) == 1 {
			r := results[0]
			if !r.Success {
				return fmt.Errorf("job %s failed: %s", jobName, r.Error)
			}
			fmt.Printf("Job %s completed in %s\n", jobName, r.Duration)
			return nil
		}
	}
	return fmt.Errorf("job %s did not finish in time", jobName)
}
