package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/jordanhubbard/cogload/internal/archive"
	"github.com/jordanhubbard/cogload/internal/auth"
)

// --- Cognitive load ---

func newScoreCommand() *cobra.Command {
	var (
		days    int
		refresh bool
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Show the current cognitive load score and recent history",
		Example: `  cogctl score
  cogctl score --refresh --days=14`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().get("/api/v1/cognitive/score", queryParams("days", days, "refresh", refresh))
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "History window in days (server default 7)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Recompute instead of serving the cached score")
	return cmd
}

func newHistoryCommand() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().get("/api/v1/cognitive/history", queryParams("days", days))
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "History window in days (server default 7)")
	return cmd
}

func newExportCommand() *cobra.Command {
	var (
		days int
		file string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download snapshot history as a compressed archive",
		Example: `  cogctl export --days=90 --file=history.jsonl.zst
  cogctl export --days=7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var buf bytes.Buffer
			if _, err := newClient().download("/api/v1/cognitive/export", queryParams("days", days), &buf); err != nil {
				return err
			}
			if file != "" {
				if err := os.WriteFile(file, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", file, err)
				}
				fmt.Fprintf(os.Stderr, "wrote %d bytes to %s\n", buf.Len(), file)
				return nil
			}
			// No file: decode and print the snapshots
			snapshots, err := archive.ReadSnapshots(&buf)
			if err != nil {
				return fmt.Errorf("failed to decode archive: %w", err)
			}
			return newEncoder().Encode(snapshots)
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Export window in days (server default 30)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Write the raw archive to this path instead of printing")
	return cmd
}

// --- Agents ---

func newRecommendCommand() *cobra.Command {
	var (
		trigger    string
		title      string
		complexity float64
		priority   float64
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Run the advisory agents",
		Example: `  cogctl recommend
  cogctl recommend --trigger=new_task --title="Hotfix login" --complexity=6 --priority=5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]interface{}{"trigger": trigger}
			if trigger == "new_task" {
				body["newTaskContext"] = map[string]interface{}{
					"taskTitle":      title,
					"taskComplexity": complexity,
					"taskPriority":   priority,
				}
			}
			data, err := newClient().post("/api/v1/agents/recommend", body)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().StringVar(&trigger, "trigger", "manual", "Trigger: manual, periodic, new_task")
	cmd.Flags().StringVar(&title, "title", "", "New task title (new_task only)")
	cmd.Flags().Float64Var(&complexity, "complexity", 5, "New task complexity 1-10 (new_task only)")
	cmd.Flags().Float64Var(&priority, "priority", 3, "New task priority 1-5 (new_task only)")
	return cmd
}

func newRecommendationsCommand() *cobra.Command {
	var (
		limit            int
		includeDismissed bool
	)
	cmd := &cobra.Command{
		Use:   "recommendations",
		Short: "List stored recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().get("/api/v1/recommendations", queryParams("limit", limit, "include_dismissed", includeDismissed))
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum entries (server default 20)")
	cmd.Flags().BoolVar(&includeDismissed, "all", false, "Include dismissed recommendations")
	return cmd
}

func newDismissCommand() *cobra.Command {
	var restore bool
	cmd := &cobra.Command{
		Use:   "dismiss <recommendation-id>",
		Short: "Dismiss (or restore) a recommendation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().patch("/api/v1/agents/recommend", map[string]interface{}{
				"id":        args[0],
				"dismissed": !restore,
			})
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().BoolVar(&restore, "restore", false, "Clear the dismissed flag instead")
	return cmd
}

func newBriefingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "briefing",
		Short: "Generate and list task briefings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:     "generate <issue|pr> <task-id>",
		Short:   "Generate a briefing for an issue or pull request",
		Args:    cobra.ExactArgs(2),
		Example: `  cogctl briefing generate pr 8f2c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().post("/api/v1/ai/briefing", map[string]interface{}{
				"taskType": args[0],
				"taskId":   args[1],
			})
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	})
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent briefings",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().get("/api/v1/briefings", queryParams("limit", limit))
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 0, "Maximum entries (server default 10)")
	cmd.AddCommand(list)
	return cmd
}

// --- Activity ---

func newFocusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "focus",
		Short: "Record focus sessions",
	}

	var taskID string
	start := &cobra.Command{
		Use:     "start <task-type>",
		Short:   "Open a focus session",
		Args:    cobra.ExactArgs(1),
		Example: `  cogctl focus start coding --task=42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().post("/api/v1/focus/sessions", map[string]interface{}{
				"taskType": args[0],
				"taskId":   taskID,
			})
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	start.Flags().StringVar(&taskID, "task", "", "Task ID the session belongs to")

	var interrupted bool
	end := &cobra.Command{
		Use:   "end <session-id>",
		Short: "Close a focus session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().post("/api/v1/focus/sessions/"+url.PathEscape(args[0])+"/end",
				map[string]interface{}{"interrupted": interrupted})
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	end.Flags().BoolVar(&interrupted, "interrupted", false, "Mark the session as interrupted")

	var days int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent focus sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().get("/api/v1/focus/sessions", queryParams("days", days))
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	list.Flags().IntVar(&days, "days", 0, "Window in days (server default 1)")

	cmd.AddCommand(start, end, list)
	return cmd
}

func newSwitchCommand() *cobra.Command {
	var cost float64
	cmd := &cobra.Command{
		Use:     "switch <from-task-type> <to-task-type>",
		Short:   "Record a context switch",
		Args:    cobra.ExactArgs(2),
		Example: `  cogctl switch coding review --cost=15`,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]interface{}{
				"fromTaskType": args[0],
				"toTaskType":   args[1],
			}
			if cmd.Flags().Changed("cost") {
				body["estimatedCost"] = cost
			}
			data, err := newClient().post("/api/v1/context-switches", body)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().Float64Var(&cost, "cost", 0, "Estimated cost in minutes (server default 23)")
	return cmd
}

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Sync GitHub activity and recompute the score",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().post("/api/v1/github/sync", nil)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
}

func newAnalyticsCommand() *cobra.Command {
	var (
		days    int
		refresh bool
	)
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show daily analytics rollups",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().get("/api/v1/analytics/daily", queryParams("days", days, "refresh", refresh))
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Window in days (server default 30)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Recompute today's rollup first")
	return cmd
}

// --- Operations ---

func newLogCommand() *cobra.Command {
	var (
		limit  int
		level  string
		source string
		agent  string
	)
	cmd := &cobra.Command{
		Use:     "logs",
		Short:   "Show recent server log entries",
		Example: `  cogctl logs --level=error --limit=50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().get("/api/v1/logs", queryParams(
				"limit", limit, "level", level, "source", source, "agent", agent))
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum entries (server default 100)")
	cmd.Flags().StringVar(&level, "level", "", "Filter by level")
	cmd.Flags().StringVar(&source, "source", "", "Filter by source")
	cmd.Flags().StringVar(&agent, "agent", "", "Filter by agent")
	return cmd
}

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream live events for the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(newClient())
		},
	}
}

// watch prints each event frame from the websocket stream until interrupted
func watch(c *Client) error {
	wsURL := "ws" + strings.TrimPrefix(c.BaseURL, "http") + "/api/v1/stream"
	header := http.Header{}
	c.authorize(header)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	frames := make(chan []byte)
	errs := make(chan error, 1)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				errs <- err
				return
			}
			frames <- msg
		}
	}()

	for {
		select {
		case msg := <-frames:
			fmt.Println(string(msg))
		case err := <-errs:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("stream closed: %w", err)
		case <-interrupt:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return nil
		}
	}
}

func newTokenCommand() *cobra.Command {
	var (
		secret string
		issuer string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:     "token <user-id>",
		Short:   "Mint a bearer token for a user with the server's shared secret",
		Args:    cobra.ExactArgs(1),
		Example: `  JWT_SECRET=... cogctl token alice --ttl=24h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := auth.NewValidator(secret, issuer)
			if err != nil {
				return err
			}
			tok, err := v.Issue(args[0], ttl)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HMAC secret (defaults to $JWT_SECRET)")
	cmd.Flags().StringVar(&issuer, "issuer", "", "Token issuer")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	return cmd
}

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().get("/api/v1/health", nil)
			if err != nil {
				return err
			}
			outputJSON(data)
			return nil
		},
	}
}
