package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/radieske/matka-settlement/internal/domain"
	sharedkafka "github.com/radieske/matka-settlement/internal/shared/kafka"
	"github.com/radieske/matka-settlement/pkg/contracts/events"
)

func (a *app) topicsCmd() *cobra.Command {
	var partitions int
	cmd := &cobra.Command{
		Use:         "topics",
		Short:       "Create the Kafka topics used by the engine (local/dev)",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotStore: "none"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			created, err := sharedkafka.EnsureTopics(ctx, a.cfg.KafkaBrokers, partitions,
				a.cfg.TopicBidsPlaced,
				a.cfg.TopicResultDeclared,
				a.cfg.TopicResultRevoked,
				a.cfg.TopicResultDetected,
				a.cfg.TopicResultDetectedDL,
			)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"created": created})
		},
	}
	cmd.Flags().IntVar(&partitions, "partitions", 1, "partitions per new topic")
	return cmd
}

// feedCmd injeta um resultado no tópico do feed, como o scraper faria. O
// result-feed-worker declara; útil para replays e para testar o pipeline.
func (a *app) feedCmd() *cobra.Command {
	var (
		ev    events.ResultDetected
		digit int
	)
	cmd := &cobra.Command{
		Use:         "feed",
		Short:       "Publish a detected result to the result feed topic",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotStore: "none"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ev.MarketID == "" && ev.MarketName == "" {
				return domain.Invalid("market", "--market or --market-id is required")
			}
			s, err := domain.ParseSession(ev.Session)
			if err != nil {
				return err
			}
			ev.Session = string(s)
			if cmd.Flags().Changed("digit") {
				ev.Digit = &digit
			}
			if _, err := domain.NewDraw(ev.Pattern, ev.Digit); err != nil {
				return err
			}
			if ev.Day != "" {
				if err := domain.ValidateDay(ev.Day); err != nil {
					return err
				}
			}
			ev.DetectedAt = time.Now().UTC()

			w := a.feedWriter
			if w == nil {
				kw := sharedkafka.NewWriter(a.cfg.KafkaBrokers, a.cfg.TopicResultDetected)
				a.closers = append(a.closers, kw)
				w = kw
			}
			key := ev.MarketID
			if key == "" {
				key = ev.MarketName
			}
			if err := sharedkafka.WriteJSON(cmd.Context(), w, key, ev); err != nil {
				return fmt.Errorf("publish result: %w", err)
			}
			return printJSON(cmd, ev)
		},
	}
	f := cmd.Flags()
	f.StringVar(&ev.MarketName, "market", "", "market name")
	f.StringVar(&ev.MarketID, "market-id", "", "market id (takes precedence over --market)")
	f.StringVar(&ev.Session, "session", "", "open or close")
	f.StringVar(&ev.Pattern, "pattern", "", "three digit pattern")
	f.IntVar(&digit, "digit", 0, "session digit (default: derived by the engine)")
	f.StringVar(&ev.Day, "day", "", "market day YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("pattern")
	return cmd
}
