package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/events"
	pktNats "ai-tutor-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	watchNatsURL string
	watchFilter  string
)

var eventColors = map[string]*color.Color{
	events.TypeMemoryCommitted: color.New(color.FgYellow),
	events.TypeQuizFinished:    color.New(color.FgMagenta),
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print tutor domain events as they are published",
	RunE: func(cmd *cobra.Command, args []string) error {
		zl, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		sub, err := pktNats.NewSubscriber(watchNatsURL, logger.NewFromZap(zl))
		if err != nil {
			return err
		}
		defer sub.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err = sub.Subscribe(ctx, watchFilter, "", func(_ context.Context, event events.BaseEvent) error {
			c, ok := eventColors[event.Type]
			if !ok {
				c = dimColor
			}
			data, _ := json.Marshal(event.Data)
			c.Printf("%s %-18s %s\n", event.OccurredAt.Format("15:04:05"), event.Type, data)
			return nil
		})
		if err != nil {
			return err
		}

		dimColor.Printf("watching %s on %s (ctrl-c to stop)\n", watchFilter, watchNatsURL)
		<-ctx.Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchNatsURL, "nats", envOr("NATS_URL", "nats://localhost:4222"), "NATS server URL")
	watchCmd.Flags().StringVar(&watchFilter, "filter", "events.>", "subject filter")
}
