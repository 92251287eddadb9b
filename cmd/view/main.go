// Command view is a terminal history view. It authenticates against a
// running server, opens the notification relay and re-renders the
// stored clips whenever a refresh arrives, focus is simulated or the
// poll timer fires.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/domain/entities"
	"github.com/voxkeep/voxkeep/internal/viewsync"
	relay "github.com/voxkeep/voxkeep/internal/websocket"
)

type viewerAuthResponse struct {
	ViewerID string `json:"viewer_id"`
	Token    string `json:"token"`
}

// httpStore reads the clip list over the server's HTTP API.
type httpStore struct {
	baseURL    string
	httpClient *http.Client
}

func (s *httpStore) List(ctx context.Context, query string) ([]*entities.AudioRecord, error) {
	u := s.baseURL + "/api/v1/audios"
	if query != "" {
		u += "?q=" + url.QueryEscape(query)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list audios: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list audios: %d", resp.StatusCode)
	}
	var records []*entities.AudioRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode audio list: %w", err)
	}
	return records, nil
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	_ = godotenv.Load()

	serverURL := flag.String("server", envOr("VOXKEEP_SERVER", "http://localhost:8080"), "server base URL")
	query := flag.String("q", "", "filter clips by source text")
	interval := flag.Duration("interval", viewsync.DefaultInterval, "poll interval")
	flag.Parse()

	store := &httpStore{
		baseURL:    strings.TrimRight(*serverURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}

	sync := viewsync.New(store, renderTable, *interval, logger)
	sync.SetQuery(*query)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, viewerID, err := connectRelay(ctx, store.baseURL, store.httpClient)
	if err != nil {
		logger.Fatal("Failed to connect to relay", zap.Error(err))
	}
	defer conn.Close()
	logger.Info("Connected to relay", zap.String("viewerID", viewerID))

	go relayLoop(conn, sync, logger)
	go sync.Run(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
}

// connectRelay fetches a view token then dials the websocket endpoint.
func connectRelay(ctx context.Context, baseURL string, httpClient *http.Client) (*websocket.Conn, string, error) {
	body := bytes.NewReader([]byte(`{"view":"history"}`))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/views/auth", body)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("view auth: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("view auth: %d", resp.StatusCode)
	}
	var authResp viewerAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return nil, "", fmt.Errorf("decode view auth: %w", err)
	}

	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/ws?token=" + url.QueryEscape(authResp.Token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("dial relay: %w", err)
	}
	return conn, authResp.ViewerID, nil
}

// relayLoop reacts to refresh fan-outs and acknowledges each one after
// triggering a re-query.
func relayLoop(conn *websocket.Conn, sync *viewsync.Synchronizer, logger *zap.Logger) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			logger.Warn("Relay connection closed", zap.Error(err))
			return
		}
		msgType, err := relay.ParseMessageType(message)
		if err != nil {
			logger.Warn("Unparseable relay message", zap.Error(err))
			continue
		}

		switch msgType {
		case relay.MessageTypeRefresh:
			var msg relay.RefreshMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				logger.Warn("Bad refresh message", zap.Error(err))
				continue
			}
			sync.OnRefresh(msg.Force)
			ack := relay.RefreshAck{
				BaseMessage: relay.BaseMessage{
					Type:      relay.MessageTypeRefreshAck,
					MessageID: msg.MessageID,
					Timestamp: time.Now().UnixMilli(),
				},
				Refreshed: true,
			}
			if err := conn.WriteJSON(ack); err != nil {
				logger.Warn("Failed to ack refresh", zap.Error(err))
			}

		case relay.MessageTypePong, relay.MessageTypeRefreshAccepted:
			// Nothing to do.

		default:
			logger.Debug("Ignoring relay message", zap.String("type", string(msgType)))
		}
	}
}

// renderTable prints the clip list, newest first.
func renderTable(records []*entities.AudioRecord) {
	fmt.Printf("\n%-6s %-20s %-40s %s\n", "ID", "CREATED", "TEXT", "TRANSLATION")
	for _, record := range records {
		fmt.Printf("%-6d %-20s %-40s %s\n",
			record.ID,
			record.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			truncate(record.SourceText, 40),
			truncate(record.Translation, 40))
	}
	if len(records) == 0 {
		fmt.Println("(no clips stored)")
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
