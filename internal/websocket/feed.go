package websocket

import (
	"context"
	"errors"
	"sync"

	"lingua-backend/internal/chat"
	"lingua-backend/internal/models"
)

// catchUpPage is the largest page the chat service hands out.
const catchUpPage = 200

type fetchFunc func(ctx context.Context, afterSeq int64, limit int) ([]models.ChatMessage, error)

// roomFeed delivers a room's messages to one connection in seq order with
// no gaps. Pub/sub may drop notifications; a gap triggers a catch-up read.
// Callers hold mu across deliver/catchUp and the writes that follow, so a
// join catch-up and live notifications cannot interleave out of order.
type roomFeed struct {
	mu       sync.Mutex
	timeline *chat.Timeline
	fetch    fetchFunc
}

func newRoomFeed(timeline *chat.Timeline, fetch fetchFunc) *roomFeed {
	return &roomFeed{timeline: timeline, fetch: fetch}
}

// deliver returns the messages to forward for one notification, oldest
// first. Duplicates produce nothing.
func (f *roomFeed) deliver(ctx context.Context, msg models.ChatMessage) ([]models.ChatMessage, error) {
	before := f.timeline.LastSeq()
	err := f.timeline.Apply(msg)
	if err == nil {
		if f.timeline.LastSeq() == before {
			return nil, nil
		}
		return []models.ChatMessage{msg}, nil
	}
	if !errors.Is(err, chat.ErrGap) {
		return nil, err
	}
	return f.catchUp(ctx)
}

// catchUp reads everything after the last delivered seq, page by page.
func (f *roomFeed) catchUp(ctx context.Context) ([]models.ChatMessage, error) {
	var out []models.ChatMessage
	for {
		before := f.timeline.LastSeq()
		page, err := f.fetch(ctx, before, catchUpPage)
		if err != nil {
			return out, err
		}
		f.timeline.Reset(page)
		for _, m := range page {
			if m.Seq > before {
				out = append(out, m)
			}
		}
		if len(page) < catchUpPage || f.timeline.LastSeq() == before {
			return out, nil
		}
	}
}
