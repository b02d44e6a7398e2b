// Package main provides a CLI for poking a running lobby server: minting
// guest tokens, listing lobby state, and probing the WebSocket endpoint.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"nhooyr.io/websocket"

	"github.com/geodesic-gg/lobby/internal/frontend/ws"
	"github.com/geodesic-gg/lobby/internal/protocol"
)

func main() {
	serverURL := flag.String("server", "http://127.0.0.1:8080", "lobby server base URL")
	name := flag.String("name", "", "guest name to request (optional)")
	timeout := flag.Duration("timeout", 10*time.Second, "overall command timeout")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: lobbyctl [flags] mint|rooms|probe")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch flag.Arg(0) {
	case "mint":
		runMint(ctx, *serverURL, *name)
	case "rooms":
		runRooms(ctx, *serverURL)
	case "probe":
		runProbe(ctx, *serverURL, *name)
	default:
		log.Fatalf("unknown command %q: must be mint, rooms, or probe", flag.Arg(0))
	}
}

func runMint(ctx context.Context, serverURL, name string) {
	start := time.Now()
	granted := mintToken(ctx, serverURL, name)

	fmt.Fprintf(os.Stdout, "token: %s\nname: %s\nexpires_at: %s [%s]\n",
		granted.Token, granted.Name, granted.ExpiresAt.Format(time.RFC3339), time.Since(start))
}

func runRooms(ctx context.Context, serverURL string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/api/v1/lobby", nil)
	if err != nil {
		log.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("fetching lobby state: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("lobby request failed: status %d", resp.StatusCode)
	}

	var snap protocol.LobbySnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		log.Fatalf("decoding lobby state: %v", err)
	}

	fmt.Fprintf(os.Stdout, "%d connected\n\n", snap.Count)

	members := newTable([]string{"Member", "Name", "Room"})
	for _, m := range snap.Members {
		members.Append([]string{m.MemberID, m.Name, m.RoomID})
	}
	members.Render()

	fmt.Fprintln(os.Stdout)

	rooms := newTable([]string{"Room", "Name", "Host", "Occupancy", "Game"})
	for _, r := range snap.Rooms {
		rooms.Append([]string{
			r.RoomID,
			r.Name,
			r.HostID,
			fmt.Sprintf("%d/%d", len(r.MemberIDs), r.Capacity),
			r.GameID,
		})
	}
	rooms.Render()
}

func runProbe(ctx context.Context, serverURL, name string) {
	start := time.Now()
	granted := mintToken(ctx, serverURL, name)

	target := "ws" + strings.TrimPrefix(serverURL, "http") + "/api/v1/lobby/ws?token=" + url.QueryEscape(granted.Token)
	if name != "" {
		target += "&name=" + url.QueryEscape(name)
	}

	raw, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		log.Fatalf("dialing lobby: %v", err)
	}
	conn := ws.NewConn(raw, 5*time.Second)
	defer conn.Close(protocol.CloseNormal, "probe done")

	welcome := readFrame(ctx, conn, protocol.TypeWelcome)
	member, _ := welcome["member"].(map[string]any)

	pingStart := time.Now()
	if err := conn.Send(ctx, protocol.ClientMessage{Type: protocol.TypePing}); err != nil {
		log.Fatalf("sending ping: %v", err)
	}
	readFrame(ctx, conn, protocol.TypePong)

	fmt.Fprintf(os.Stdout, "welcome as %v (%v), ping %s, total %s\n",
		member["name"], member["member_id"], time.Since(pingStart), time.Since(start))
}

func mintToken(ctx context.Context, serverURL, name string) protocol.GuestAuthResponse {
	body, err := json.Marshal(protocol.GuestAuthRequest{Name: name})
	if err != nil {
		log.Fatalf("encoding request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/api/v1/auth/guest", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("requesting token: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("token request failed: status %d", resp.StatusCode)
	}

	var granted protocol.GuestAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&granted); err != nil {
		log.Fatalf("decoding token response: %v", err)
	}
	return granted
}

// readFrame reads frames until one carries the wanted type tag.
func readFrame(ctx context.Context, conn *ws.Conn, want string) map[string]any {
	for {
		data, err := conn.Receive(ctx, 10*time.Second)
		if err != nil {
			log.Fatalf("reading %s frame: %v", want, err)
		}
		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Fatalf("decoding frame: %v", err)
		}
		if frame["type"] == want {
			return frame
		}
	}
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}
