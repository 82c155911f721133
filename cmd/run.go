package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/metaagentd/internal/log"
	"github.com/zjrosen/metaagentd/internal/orchestrator"
	"github.com/zjrosen/metaagentd/internal/sessionstore"
)

var runSessionDir string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive a session's task plan against the configured agent backend",
	Long: `Opens a session for the current directory (creating one unless
--session names an existing one), starts execution, and runs the outer
tick loop. Lines typed at the prompt are forwarded to the master agent.
The loop exits when "quit" is typed, without stopping anything already in
flight, or once stdin is closed and no worker job is active.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runSessionDir, "session", "", "resume an existing session directory name instead of creating one")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cleanup, err := enableDebugLogging("run")
	if err != nil {
		return err
	}
	defer cleanup()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("run: getwd: %w", err)
	}

	mgr := sessionstore.NewManager(cfg.Storage.RootDir, nil)

	var store *sessionstore.Store
	now := time.Now().Unix()
	if runSessionDir != "" {
		store, err = sessionstore.OpenExisting(mgr, runSessionDir, now)
	} else {
		store, err = sessionstore.Initialize(mgr, cwd, now)
	}
	if err != nil {
		return fmt.Errorf("run: opening session: %w", err)
	}

	graph, err := orchestrator.LoadGraph(store)
	if err != nil {
		return fmt.Errorf("run: loading task graph: %w", err)
	}

	orch, err := orchestrator.New(store, cfg, graph, cwd)
	if err != nil {
		return fmt.Errorf("run: building orchestrator: %w", err)
	}

	sessionID, err := store.SessionID()
	if err != nil {
		return fmt.Errorf("run: reading session metadata: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "session: %s (%s)\n", store.Dir(), sessionID)
	fmt.Fprintln(cmd.OutOrStdout(), orch.StartExecution())

	userInput := make(chan string)
	go readUserInput(userInput)

	lastPrinted := 0
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case line, ok := <-userInput:
			if !ok {
				userInput = nil
				continue
			}
			if strings.TrimSpace(line) == "quit" {
				return nil
			}
			orch.SendUserMessage(line)
		case <-ticker.C:
			orch.Tick()
		}

		chat := orch.Chat()
		for _, c := range chat[lastPrinted:] {
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", c.Role, c.Text)
		}
		lastPrinted = len(chat)

		if _, active := orch.Machine().ActiveJob(); !active && userInput == nil {
			log.Info(log.CatOrch, "session idle and stdin closed, exiting run loop")
			return nil
		}
	}
}

func readUserInput(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}
