package stage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/phuslu/log"

	"github.com/PollyDrive/estate-sub000/internal/store"
	"github.com/PollyDrive/estate-sub000/internal/telegram"
)

// BotClient is the Telegram surface the feedback listener needs.
type BotClient interface {
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
}

// FeedbackBot is the long-lived reaction listener. It correlates emoji
// reactions on delivered messages back to listings and records them
// append-only; the same user flipping a reaction twice is two rows.
type FeedbackBot struct {
	db     DB
	client BotClient

	pollTimeout int
	retryDelay  time.Duration
}

func NewFeedbackBot(db DB, client BotClient) *FeedbackBot {
	return &FeedbackBot{
		db:          db,
		client:      client,
		pollTimeout: 30,
		retryDelay:  5 * time.Second,
	}
}

// Run polls until the context is canceled.
func (b *FeedbackBot) Run(ctx context.Context) error {
	var offset int64
	log.Info().Msg("feedback bot started")
	for {
		updates, err := b.client.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("getUpdates failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(b.retryDelay):
			}
			continue
		}
		for _, u := range updates {
			offset = u.UpdateID + 1
			b.handleUpdate(ctx, u)
		}
	}
}

func (b *FeedbackBot) handleUpdate(ctx context.Context, u telegram.Update) {
	switch {
	case u.MessageReaction != nil:
		b.handleReaction(ctx, u.MessageReaction)
	case u.Message != nil:
		b.handleCommand(ctx, u.Message)
	}
}

func (b *FeedbackBot) handleReaction(ctx context.Context, r *telegram.MessageReactionUpdated) {
	added := r.AddedEmojis()
	if len(added) == 0 {
		return
	}

	listing, err := b.db.GetByMessageID(ctx, r.MessageID)
	if errors.Is(err, store.ErrNotFound) {
		log.Debug().Int64("message_id", r.MessageID).Msg("reaction on unknown message")
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("message_id", r.MessageID).Msg("reaction lookup failed")
		return
	}

	chatID := strconv.FormatInt(r.Chat.ID, 10)
	for _, emoji := range added {
		if err := b.db.InsertReaction(ctx, r.MessageID, listing.FBID, chatID, emoji); err != nil {
			log.Error().Err(err).Str("fb_id", listing.FBID).Msg("record reaction failed")
			continue
		}
		log.Info().Str("fb_id", listing.FBID).Str("emoji", emoji).Msg("reaction recorded")
	}
}

func (b *FeedbackBot) handleCommand(ctx context.Context, m *telegram.Message) {
	switch m.Text {
	case "/start":
		text := "👋 Я собираю обратную связь по объявлениям.\n\n" +
			"Ставьте реакции на присланные варианты:\n" +
			"❤️ нравится\n💩 не подходит\n🤡 спам или фейк\n\n" +
			"Команда /stats покажет статистику пайплайна."
		if _, err := b.client.SendMessage(ctx, m.Chat.ID, text); err != nil {
			log.Error().Err(err).Msg("start reply failed")
		}
	case "/stats":
		st, err := b.db.Stats(ctx)
		if err != nil {
			log.Error().Err(err).Msg("stats query failed")
			return
		}
		reactions, err := b.db.ReactionStats(ctx)
		if err != nil {
			log.Error().Err(err).Msg("reaction stats query failed")
			return
		}
		if _, err := b.client.SendMessage(ctx, m.Chat.ID, FormatStatsMessage(st, reactions)); err != nil {
			log.Error().Err(err).Msg("stats reply failed")
		}
	}
}

var _ BotClient = (*telegram.Client)(nil)
