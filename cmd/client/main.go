package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/KDT2006/termsnake/internal/client"
	"github.com/KDT2006/termsnake/internal/config"
	"github.com/KDT2006/termsnake/internal/model"
	"github.com/KDT2006/termsnake/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "directory holding termsnake.yaml")
	host := flag.String("host", "", "server host (overrides config)")
	port := flag.Int("port", 0, "server port (overrides config)")
	name := flag.String("name", "", "player name (overrides config)")
	ws := flag.Bool("ws", false, "connect over WebSocket")
	flag.Parse()

	if err := config.LoadEnv(); err != nil {
		slog.Error("failed to load environment", "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadClientConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *name != "" {
		cfg.Name = *name
	}
	if *ws {
		cfg.Transport = "ws"
	}
	if err := config.ValidateClientConfig(cfg); err != nil {
		slog.Error("invalid command line", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.LogLevel(cfg.LogLevel),
	})))

	if err := run(cfg); err != nil {
		slog.Error("client failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.ClientConfig) error {
	opts := []client.Option{}
	if cfg.Transport == "ws" {
		opts = append(opts, client.WithTransport(func() transport.LineConn {
			return transport.NewWS(cfg.WSPath)
		}))
	}
	sess := client.New(opts...)
	defer sess.Disconnect()

	updates := sess.Subscribe(cfg.SubscriberBuffer)
	sess.OnDisconnect(func(err error) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "disconnected: %v\n", err)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	playerID, size, err := sess.Connect(ctx, cfg.Host, cfg.Port, cfg.Name)
	cancel()
	if err != nil {
		return err
	}
	fmt.Printf("Connected to %s:%d as player %d, arena size %d\n", cfg.Host, cfg.Port, playerID, size)
	fmt.Println("Steer with w/a/s/d or up/down/left/right, one per line.")

	go startWriteLoop(sess)

	for snap := range updates {
		printSummary(playerID, snap)
	}

	return nil
}

// startWriteLoop forwards stdin lines as movement commands.
func startWriteLoop(sess *client.Session) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())

		var err error
		if len(input) == 1 {
			err = sess.HandleKey(input)
		} else {
			err = sess.SendDirection(input)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to send command: %v\n", err)
			return
		}
	}
	sess.Disconnect()
}

func printSummary(playerID int, snap model.Snapshot) {
	me, ok := snap.Snakes[playerID]
	if !ok {
		return
	}

	head, _ := me.Head()
	status := "alive"
	switch {
	case me.Died:
		status = "died"
	case !me.Alive:
		status = "dead"
	}
	slog.Debug("world updated",
		"snakes", len(snap.Snakes), "alive", snap.Alive(), "powerups", len(snap.PowerUps))
	fmt.Printf("\rscore %d  head (%d,%d)  %s  players %d   ", me.Score, head.X, head.Y, status, snap.Alive())
}
