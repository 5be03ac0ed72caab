// File: internal/usecase/resolver_test.go
package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"telegram-channel-subscription/internal/domain"
	"telegram-channel-subscription/internal/domain/model"
)

func TestResolveInviteLinks(t *testing.T) {
	t.Run("returns channels in plan order", func(t *testing.T) {
		plan := &model.Plan{ID: "p", Name: "Bundle", Channels: []model.Channel{
			{ID: "a", InviteLink: "https://t.me/+a", Position: 0},
			{ID: "b", InviteLink: "https://t.me/+b", Position: 1},
		}}
		links, err := ResolveInviteLinks(plan)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(links) != 2 || links[0].ID != "a" || links[1].ID != "b" {
			t.Errorf("unexpected links: %+v", links)
		}
	})

	t.Run("drops entries without a usable link", func(t *testing.T) {
		plan := &model.Plan{ID: "p", Name: "Bundle", Channels: []model.Channel{
			{ID: "a", InviteLink: "  "},
			{ID: "b", InviteLink: "https://t.me/+b"},
		}}
		links, err := ResolveInviteLinks(plan)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(links) != 1 || links[0].ID != "b" {
			t.Errorf("expected only the usable link, got %+v", links)
		}
	})

	t.Run("empty plan is a configuration failure", func(t *testing.T) {
		for name, plan := range map[string]*model.Plan{
			"nil plan":       nil,
			"no channels":    {ID: "p", Name: "Bundle"},
			"no valid links": {ID: "p", Name: "Bundle", Channels: []model.Channel{{ID: "a", InviteLink: ""}}},
		} {
			if _, err := ResolveInviteLinks(plan); domain.ClassOf(err) != domain.FailureConfig {
				t.Errorf("%s: expected config failure, got %v", name, err)
			}
		}
	})
}

func TestMessageDispatcher(t *testing.T) {
	ctx := context.Background()
	links := []model.Channel{
		{InviteLink: "https://t.me/+a", Title: "News"},
		{InviteLink: "https://t.me/+b"},
	}

	t.Run("sends one formatted message per dispatch", func(t *testing.T) {
		bot := &fakeBot{}
		d := newMessageDispatcher(bot, time.Second)

		msgID, err := d.Dispatch(ctx, 42, "Jo Doe", "Gold", links)
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if msgID == 0 {
			t.Error("expected the telegram message id")
		}
		if bot.callCount() != 1 {
			t.Fatalf("expected exactly one send, got %d", bot.callCount())
		}
		text := bot.sent[0]
		if !strings.Contains(text, "Jo Doe") || !strings.Contains(text, "Gold") {
			t.Errorf("message missing buyer or plan name:\n%s", text)
		}
		if !strings.Contains(text, "1. https://t.me/+a (News)") || !strings.Contains(text, "2. https://t.me/+b") {
			t.Errorf("message missing numbered links:\n%s", text)
		}
	})

	t.Run("send failure is classified transient", func(t *testing.T) {
		bot := &fakeBot{script: []error{context.DeadlineExceeded}}
		d := newMessageDispatcher(bot, time.Second)

		_, err := d.Dispatch(ctx, 42, "Jo", "Gold", links)
		if domain.ClassOf(err) != domain.FailureTransient {
			t.Fatalf("expected transient failure, got: %v", err)
		}
	})

	t.Run("blank buyer name gets a fallback greeting", func(t *testing.T) {
		bot := &fakeBot{}
		d := newMessageDispatcher(bot, time.Second)
		if _, err := d.Dispatch(ctx, 42, "  ", "Gold", links); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if !strings.Contains(bot.sent[0], "Hi there,") {
			t.Errorf("expected fallback greeting:\n%s", bot.sent[0])
		}
	})
}
