// qgcli is a terminal client for the querygraph server: it submits
// queries, renders tool-confirmation prompts, and follows event streams.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"querygraph/domain"
)

var serverURL string

func main() {
	root := &cobra.Command{
		Use:   "qgcli",
		Short: "Client for the querygraph research orchestrator",
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "querygraph server base URL")

	root.AddCommand(newAskCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newThreadsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newAskCmd() *cobra.Command {
	var threadID string

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Submit a research query, answering confirmation prompts interactively",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return ask(query, threadID)
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "continue an existing thread")
	return cmd
}

func ask(query, threadID string) error {
	body := domain.OrchestrateRequest{Query: query, ThreadID: threadID}

	for {
		resp, err := postOrchestrate(body)
		if err != nil {
			return err
		}

		var probe struct {
			Type     string `json:"type"`
			ThreadID string `json:"thread_id"`
			Error    string `json:"error"`
		}
		if err := json.Unmarshal(resp, &probe); err != nil {
			return fmt.Errorf("unexpected response: %s", resp)
		}
		if probe.Error != "" {
			return fmt.Errorf("server error: %s", probe.Error)
		}

		if probe.Type != "interrupted" {
			var done domain.CompletedResponse
			if err := json.Unmarshal(resp, &done); err != nil {
				return fmt.Errorf("unexpected response: %s", resp)
			}
			fmt.Printf("\n[%s]\n%s\n", done.ThreadID, done.Text)
			return nil
		}

		var interrupted domain.InterruptedResponse
		if err := json.Unmarshal(resp, &interrupted); err != nil {
			return fmt.Errorf("unexpected response: %s", resp)
		}

		payload, err := promptDecision(interrupted.InterruptData)
		if err != nil {
			return err
		}
		body = domain.OrchestrateRequest{
			ThreadID:      interrupted.ThreadID,
			ResumePayload: payload,
		}
	}
}

// promptDecision renders an approve/edit/reject prompt and returns the
// resume payload for the chosen action.
func promptDecision(interrupt domain.InterruptDescriptor) (json.RawMessage, error) {
	fmt.Printf("\nThe %s tool wants to run:\n    %s\n", interrupt.ToolName, interrupt.ProposedArgument)
	fmt.Print("Approve? [y]es / [e]dit / [n]o: ")

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return json.Marshal(map[string]string{"status": "rejected"})
	}

	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "y", "yes":
		return json.Marshal(interrupt.ProposedArgument)
	case "e", "edit":
		fmt.Print("New query: ")
		if !scanner.Scan() {
			return json.Marshal(map[string]string{"status": "rejected"})
		}
		edited := strings.TrimSpace(scanner.Text())
		if edited == "" {
			return json.Marshal(map[string]string{"status": "rejected"})
		}
		return json.Marshal(map[string]string{"approved_query": edited})
	default:
		return json.Marshal(map[string]string{"status": "rejected"})
	}
}

func postOrchestrate(req domain.OrchestrateRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpResp, err := http.Post(strings.TrimSuffix(serverURL, "/")+"/orchestrate", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	return io.ReadAll(httpResp.Body)
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <thread_id>",
		Short: "Follow a thread's step events over WebSocket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(args[0])
		},
	}
}

func watch(threadID string) error {
	wsURL := strings.Replace(strings.TrimSuffix(serverURL, "/"), "http", "ws", 1) +
		"/v1/threads/" + threadID + "/events"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", threadID)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}

		var event domain.Event
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}
		ts := time.UnixMilli(event.Ts).Format("15:04:05")
		fmt.Printf("[%s] %-20s %s\n", ts, event.Type, string(event.Payload))
	}
}

func newThreadsCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "threads",
		Short: "List threads",
		RunE: func(cmd *cobra.Command, args []string) error {
			u := strings.TrimSuffix(serverURL, "/") + "/v1/threads"
			if status != "" {
				u += "?status=" + status
			}

			resp, err := http.Get(u)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			var body struct {
				Threads []domain.ThreadSummary `json:"threads"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return err
			}

			for _, t := range body.Threads {
				fmt.Printf("%-12s %-10s %3d messages  updated %s\n",
					t.ThreadID, t.Status, t.Messages, t.UpdatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (RUNNING, SUSPENDED, COMPLETED, FAILED)")
	return cmd
}
