package service

import (
	"context"
	"errors"
	"time"

	"relaychat/model"
	"relaychat/platform"
)

const scheduledTask = "scheduled task"

type backfillStore interface {
	ListUntitledConversations(ctx context.Context, idleBefore time.Time, limit int) ([]model.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	UpdateConversationTitle(ctx context.Context, id, title string) error
}

// TitleBackfillTask names conversations whose first exchange was answered but whose title write
// was lost, e.g. because the request was cancelled after the answer had been saved.
type TitleBackfillTask struct {
	store  backfillStore
	titles titleSynthesizer
	locks  conversationLocker
	minAge time.Duration
	batch  int
	now    func() time.Time
}

func NewTitleBackfillTask(store backfillStore, titles titleSynthesizer, locks conversationLocker, minAge time.Duration) *TitleBackfillTask {
	return &TitleBackfillTask{
		store:  store,
		titles: titles,
		locks:  locks,
		minAge: minAge,
		batch:  20,
		now:    time.Now,
	}
}

// Run titles one batch and reports how many conversations were updated.
func (t *TitleBackfillTask) Run(ctx context.Context) (int, error) {
	ctx = WithRequestID(ctx, scheduledTask)
	logger.Infof("[%s] Start scheduled task TitleBackfillTask", scheduledTask)
	startTime := t.now()

	convs, err := t.store.ListUntitledConversations(ctx, startTime.Add(-t.minAge), t.batch)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, conv := range convs {
		ok, err := t.backfill(ctx, conv)
		if err != nil {
			logger.Warnf("[%s] backfill title for chat %s error, %s", scheduledTask, conv.ID, err)
			continue
		}
		if ok {
			updated++
		}
	}

	logger.Infof("[%s] Finished scheduled task TitleBackfillTask, %d/%d titled, cost %v",
		scheduledTask, updated, len(convs), t.now().Sub(startTime))
	return updated, nil
}

func (t *TitleBackfillTask) backfill(ctx context.Context, conv model.Conversation) (bool, error) {
	release, err := t.locks.Acquire(ctx, conv.ID)
	if errors.Is(err, platform.ErrConversationBusy) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer release()

	msgs, err := t.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return false, err
	}
	question, answer, ok := firstExchange(msgs)
	if !ok {
		// the first send never got an answer, later exchanges do not name the chat
		if err := t.store.UpdateConversationTitle(ctx, conv.ID, model.DefaultTitle); err != nil {
			return false, err
		}
		return false, nil
	}

	title := t.titles.SynthesizeTitle(ctx, question, answer)
	if err := t.store.UpdateConversationTitle(ctx, conv.ID, title); err != nil {
		return false, err
	}
	return true, nil
}

// firstExchange returns the opening question and its answer. It fails when the conversation
// does not start with a user turn answered by the assistant.
func firstExchange(msgs []model.Message) (question, answer string, ok bool) {
	if len(msgs) < 2 || msgs[0].Role != model.MessageRoleUser || msgs[1].Role != model.MessageRoleAssistant {
		return "", "", false
	}
	return msgs[0].Content, msgs[1].Content, true
}
