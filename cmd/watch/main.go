// Command watch follows a showcase event stream and prints profile changes.
//
// Usage:
//
//	watch -url http://localhost:8080/events            # print every change
//	watch -url http://localhost:8080/events -subject A123
//
// After repeated connection failures the stream is disabled; send SIGHUP to
// reconnect.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"showcase/internal/platform/logger"
	"showcase/pkg/domain"
	"showcase/pkg/liveclient"
)

func main() {
	url := flag.String("url", "http://localhost:8080/events", "SSE endpoint to follow")
	subject := flag.String("subject", "", "only print changes for this subject id")
	asJSON := flag.Bool("json", false, "print one JSON object per change")
	heartbeats := flag.Bool("heartbeats", false, "also print control frames")
	exitOnDisable := flag.Bool("exit-on-disable", false, "exit when reconnect attempts are exhausted")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	log := logger.NewWithWriter(os.Stderr, *logLevel, "text")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, *url, *subject, *asJSON, *heartbeats, *exitOnDisable); err != nil {
		log.Error("watch: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, url, subject string, asJSON, heartbeats, exitOnDisable bool) error {
	var filter domain.SubjectID
	if subject != "" {
		id, err := domain.ParseSubjectID(subject)
		if err != nil {
			return fmt.Errorf("subject: %w", err)
		}
		filter = id
	}

	disabled := make(chan struct{}, 1)
	client := liveclient.New(url,
		liveclient.WithLogger(log),
		liveclient.WithStatusFunc(func(s liveclient.Status) {
			log.Info("stream status", "status", s)
			if s == liveclient.StatusDisabled {
				select {
				case disabled <- struct{}{}:
				default:
				}
			}
		}),
	)

	enc := json.NewEncoder(os.Stdout)
	sub := client.Subscribe(ctx, func(m liveclient.Message) {
		if m.Type != liveclient.TypeUpdate && !heartbeats {
			return
		}
		if filter != "" && m.Type == liveclient.TypeUpdate && domain.SubjectID(m.OpenalexID) != filter {
			return
		}
		if asJSON {
			_ = enc.Encode(m)
			return
		}
		if m.Type != liveclient.TypeUpdate {
			fmt.Printf("%s %s\n", m.Timestamp.Format("15:04:05"), m.Type)
			return
		}
		fmt.Printf("%s %s %s\n", m.Timestamp.Format("15:04:05"), m.OpenalexID, m.UpdateType)
	})
	defer sub.Close()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			log.Info("manual reconnect")
			sub.Reconnect()
		case <-disabled:
			if exitOnDisable {
				return fmt.Errorf("event stream %s unreachable", url)
			}
			log.Warn("stream disabled; send SIGHUP to reconnect")
		}
	}
}
