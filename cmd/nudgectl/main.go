package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/nudgebot-io/nudgebot/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "health":
		cmdHealth()
	case "tickets":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: nudgectl tickets <list|show>")
			os.Exit(1)
		}
		switch os.Args[2] {
		case "list":
			cmdTicketsList()
		case "show":
			if len(os.Args) < 4 {
				fmt.Fprintln(os.Stderr, "usage: nudgectl tickets show <id>")
				os.Exit(1)
			}
			cmdTicketsShow(os.Args[3])
		default:
			fmt.Fprintf(os.Stderr, "unknown tickets subcommand: %s\n", os.Args[2])
			os.Exit(1)
		}
	case "register":
		cmdRegister(os.Args[2:])
	case "complete":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: nudgectl complete <id>")
			os.Exit(1)
		}
		cmdComplete(os.Args[2])
	case "logs":
		cmdLogs(os.Args[2:])
	case "config":
		if len(os.Args) < 4 || os.Args[2] != "validate" {
			fmt.Fprintln(os.Stderr, "usage: nudgectl config validate <path>")
			os.Exit(1)
		}
		cmdConfigValidate(os.Args[3])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func cmdHealth() {
	body, err := apiGet("/api/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(body))
}

func cmdTicketsList() {
	body, err := apiGet("/api/tickets")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var tickets []map[string]any
	json.Unmarshal(body, &tickets)
	for _, t := range tickets {
		marker := " "
		if esc, _ := t["escalation"].(bool); esc {
			marker = "!"
		}
		fmt.Printf("%s %-12s %-30s reminders=%v\n", marker, t["id"], t["assignee_email"], t["reminder_count"])
	}
}

func cmdTicketsShow(id string) {
	body, err := apiGet("/api/tickets/" + id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(body))
}

func cmdRegister(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	ticketID := fs.String("ticket", "", "Ticket ID (required)")
	assignee := fs.String("assignee", "", "Assignee email (required)")
	channel := fs.String("channel", "", "Channel override")
	messageTS := fs.String("ts", "", "Claimed announcement message timestamp")
	escalation := fs.Bool("escalation", false, "Mark as escalation")
	url := fs.String("url", "", "Ticket URL")
	fs.Parse(args)

	if *ticketID == "" || *assignee == "" {
		fmt.Fprintln(os.Stderr, "error: -ticket and -assignee are required")
		os.Exit(1)
	}

	payload := map[string]any{
		"ticket_id":  *ticketID,
		"assignee":   *assignee,
		"channel":    *channel,
		"message_ts": *messageTS,
		"escalation": *escalation,
		"ticket_url": *url,
	}
	body, err := apiPost("/api/tickets", payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(body))
}

func cmdComplete(id string) {
	body, err := apiPost("/api/tickets/"+id+"/complete", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(body))
}

func cmdLogs(args []string) {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	limit := fs.Int("limit", 50, "Max entries")
	level := fs.String("level", "", "Minimum level (info|warn|error)")
	component := fs.String("component", "", "Filter by component")
	fs.Parse(args)

	query := fmt.Sprintf("?limit=%d", *limit)
	if *level != "" {
		query += "&level=" + *level
	}
	if *component != "" {
		query += "&component=" + *component
	}

	body, err := apiGet("/api/logs" + query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var entries []map[string]any
	json.Unmarshal(body, &entries)
	for _, e := range entries {
		comp, _ := e["component"].(string)
		fmt.Printf("%-26s %-5s %-10s %s\n", e["time"], e["level"], comp, e["message"])
	}
}

func cmdConfigValidate(path string) {
	_, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("config is valid")
}

// --- Helpers ---

func apiGet(path string) ([]byte, error) {
	req, err := http.NewRequest("GET", apiBase()+path, nil)
	if err != nil {
		return nil, err
	}
	return apiDo(req)
}

func apiPost(path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest("POST", apiBase()+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return apiDo(req)
}

func apiDo(req *http.Request) ([]byte, error) {
	if key := os.Getenv("NUDGE_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func apiBase() string {
	if v := os.Getenv("NUDGE_API_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func prettyJSON(data []byte) string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	return string(out)
}

func printUsage() {
	fmt.Println("nudgectl — ticket reminder daemon CLI")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  health                 Check daemon health")
	fmt.Println("  tickets list           List open tickets")
	fmt.Println("  tickets show <id>      Show ticket details")
	fmt.Println("  register               Register a ticket (-ticket, -assignee, -ts, -escalation, -url)")
	fmt.Println("  complete <id>          Mark a ticket resolved")
	fmt.Println("  logs                   Show recent daemon logs (-limit, -level, -component)")
	fmt.Println("  config validate <p>    Validate config file")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  NUDGE_API_URL   Daemon URL (default: http://localhost:8080)")
	fmt.Println("  NUDGE_API_KEY   API key for authentication")
}
