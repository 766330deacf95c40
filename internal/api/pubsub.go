package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/triviaquiz/internal/domain"
)

const maxConcurrent = 10

type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PublishLeaderboardUpdated broadcasts the new ranking on the leaderboard channel and
// notifies every ranked player on their own channel.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	eg.Go(func() error {
		return a.publishNotification(ctx, a.channel("leaderboard"), e.Name(), e.Entries)
	})

	notified := make(map[string]bool, len(e.Entries))
	for _, entry := range e.Entries {
		if notified[entry.Name] {
			continue
		}
		notified[entry.Name] = true

		eg.Go(func() error {
			return a.publishNotification(ctx, a.channel("user:"+entry.Name), e.Name(), e.Entries)
		})
	}

	return eg.Wait()
}

func (a *API) PublishQuizFinished(ctx context.Context, e domain.EventQuizFinished) error {
	return a.publishNotification(ctx, a.channel("quiz"), e.Name(), e.Result)
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}

func (a *API) channel(name string) string {
	if a.prefix == "" {
		return name
	}
	return fmt.Sprintf("%s:%s", a.prefix, name)
}
