package app

import (
	"testing"

	"edulearn-quiz-service/internal/domain"
)

func TestProgressFeedDropsStaleUpdates(t *testing.T) {
	feed := NewProgressFeed()
	ch, cancel := feed.Subscribe("u1", domain.NewUserStats())
	defer cancel()

	// Never drained: the buffer fills and older updates are discarded.
	for i := 1; i <= 10; i++ {
		feed.Publish("u1", domain.UserStats{TotalQuizzes: i})
	}

	var last domain.UserStats
	for len(ch) > 0 {
		last = <-ch
	}
	if last.TotalQuizzes != 10 {
		t.Fatalf("expected newest update to survive, got %d", last.TotalQuizzes)
	}
}

func TestProgressFeedIsolatesUsersAndCancels(t *testing.T) {
	feed := NewProgressFeed()
	a, cancelA := feed.Subscribe("a", domain.NewUserStats())
	b, cancelB := feed.Subscribe("b", domain.NewUserStats())
	defer cancelB()
	<-a
	<-b

	feed.Publish("a", domain.UserStats{TotalQuizzes: 1})
	if len(b) != 0 {
		t.Fatalf("user b received user a's update")
	}
	if got := <-a; got.TotalQuizzes != 1 {
		t.Fatalf("unexpected update %+v", got)
	}

	cancelA()
	cancelA()
	if _, ok := <-a; ok {
		t.Fatalf("expected channel closed after cancel")
	}
	if feed.Subscribers("a") != 0 || feed.Subscribers("b") != 1 {
		t.Fatalf("unexpected subscriber counts")
	}
	feed.Publish("a", domain.UserStats{TotalQuizzes: 2})
}
