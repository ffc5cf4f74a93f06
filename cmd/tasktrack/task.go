package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/tasktrack/internal/logging"
	"github.com/fentz26/tasktrack/internal/models"
	"github.com/fentz26/tasktrack/internal/tracker"
	"github.com/fentz26/tasktrack/internal/wallet"
)

const timestampLayout = "Jan 2, 2006, 03:04 PM"

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return logging.Setup(os.Stderr, cfg.LogLevel)
	},
}

var taskAddCmd = &cobra.Command{
	Use:   "add [description]",
	Short: "Create a task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete [index]",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskComplete,
}

var taskStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show task counts",
	RunE:  runTaskStats,
}

var (
	assumeYes   bool
	listPending bool
)

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskCompleteCmd, taskStatsCmd)

	taskAddCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Sign without asking")
	taskCompleteCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Sign without asking")
	taskListCmd.Flags().BoolVar(&listPending, "pending", false, "Only show tasks that are not completed")
}

// connectedSession opens a session and connects the configured account.
func connectedSession(cmd *cobra.Command, confirm bool) (*session, error) {
	var opts []wallet.Option
	if confirm && cfg.ConfirmSignatures {
		opts = append(opts, wallet.WithApprover(promptApprover(cmd.InOrStdin(), cmd.ErrOrStderr())))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	s, err := openSession(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.connect(ctx); err != nil {
		s.Close()
		return nil, err
	}
	if snap := s.ctrl.Snapshot(); snap.ReadErr != nil {
		s.Close()
		return nil, snap.ReadErr
	}
	return s, nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	s, err := connectedSession(cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	return printTasks(cmd.OutOrStdout(), s.ctrl.Snapshot().Tasks, listPending)
}

func printTasks(out io.Writer, tasks []models.Task, pendingOnly bool) error {
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tSTATUS\tCREATED\tDESCRIPTION")
	for i, t := range tasks {
		if t.Completed && pendingOnly {
			continue
		}
		status := "todo"
		if t.Completed {
			status = "done"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i, status, t.CreatedAt().Format(timestampLayout), t.Description)
	}
	return w.Flush()
}

func runTaskStats(cmd *cobra.Command, args []string) error {
	s, err := connectedSession(cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	snap := s.ctrl.Snapshot()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Account:   %s\n", snap.Account.Hex())
	fmt.Fprintf(out, "Total:     %d\n", len(snap.Tasks))
	fmt.Fprintf(out, "Completed: %d\n", snap.CompletedCount)
	fmt.Fprintf(out, "Pending:   %d\n", snap.PendingCount())
	return nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	s, err := connectedSession(cmd, !assumeYes)
	if err != nil {
		return err
	}
	defer s.Close()

	description := strings.Join(args, " ")
	return watchSubmission(cmd.Context(), cmd.OutOrStdout(), s.ctrl, func() error {
		return s.ctrl.CreateTask(description)
	})
}

func runTaskComplete(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", args[0], err)
	}

	s, err := connectedSession(cmd, !assumeYes)
	if err != nil {
		return err
	}
	defer s.Close()

	tasks := s.ctrl.Snapshot().Tasks
	if index < 0 || index >= len(tasks) {
		return fmt.Errorf("no task at index %d (%d tasks)", index, len(tasks))
	}
	if tasks[index].Completed {
		fmt.Fprintf(cmd.OutOrStdout(), "Task %d is already completed\n", index)
		return nil
	}

	return watchSubmission(cmd.Context(), cmd.OutOrStdout(), s.ctrl, func() error {
		return s.ctrl.CompleteTask(index)
	})
}

// watchSubmission starts a submission and prints its transitions until it
// succeeds or fails.
func watchSubmission(ctx context.Context, out io.Writer, ctrl *tracker.Controller, start func() error) error {
	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	if err := start(); err != nil {
		return err
	}

	var last models.SubmissionStatus
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-updates:
			if !ok {
				return tracker.ErrClosed
			}
			sub := snap.Submission
			if sub.Status == last {
				continue
			}
			last = sub.Status
			switch sub.Status {
			case models.SubmissionPending:
				fmt.Fprintln(out, "Waiting for signature...")
			case models.SubmissionConfirming:
				fmt.Fprintf(out, "Submitted %s, waiting for confirmation...\n", sub.TxHash.Hex())
			case models.SubmissionSucceeded:
				if sub.Kind == models.SubmissionComplete {
					fmt.Fprintf(out, "✓ Task %d completed\n", sub.Index)
				} else {
					fmt.Fprintf(out, "✓ Task created: %s\n", sub.Description)
				}
				return nil
			case models.SubmissionFailed:
				return fmt.Errorf("transaction failed: %w", sub.Err)
			}
		}
	}
}
