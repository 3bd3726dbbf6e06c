package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"jokeboard/internal/config"
	"jokeboard/internal/jokelist"
	"jokeboard/internal/storage"
	"jokeboard/pkg/logger"

	"github.com/sethvargo/go-retry"
	"gopkg.in/telebot.v4"
)

var ErrRateLimited = errors.New("telegram rate limited")

const (
	sendAttempts  = 3
	sendBaseDelay = time.Second
)

// messenger is the part of *telebot.Bot the handlers talk through.
type messenger interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
	Edit(msg telebot.Editable, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Bot serves one joke list per chat, persisted under "chat.<id>".
type Bot struct {
	cfg   config.BotConfig
	src   jokelist.Source
	store storage.Store
	opts  []jokelist.Option

	mu       sync.Mutex
	sessions map[int64]*jokelist.Controller

	ctx      context.Context
	api      messenger
	settings telebot.Settings
}

func New(cfg config.BotConfig, src jokelist.Source, store storage.Store, opts ...jokelist.Option) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	return &Bot{
		cfg:      cfg,
		src:      src,
		store:    store,
		opts:     opts,
		sessions: make(map[int64]*jokelist.Controller),
		ctx:      context.Background(),
		settings: telebot.Settings{
			Token:  cfg.Token,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) {
				logger.Error("Telegram handler error", logger.Err(err))
			},
		},
	}, nil
}

// Start connects to Telegram and polls in the background. Fills started by
// handlers run under ctx, so cancelling it aborts them.
func (b *Bot) Start(ctx context.Context) (*telebot.Bot, error) {
	tbot, err := telebot.NewBot(b.settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b.ctx = ctx
	b.api = tbot
	b.setupHandlers(tbot)

	go tbot.Start()

	return tbot, nil
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("chat.%d", chatID)
}

// session returns the chat's controller, creating it on first use.
func (b *Bot) session(chatID int64) *jokelist.Controller {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctrl, ok := b.sessions[chatID]
	if !ok {
		ctrl = jokelist.New(b.src, storage.Bind(b.store, sessionKey(chatID)), b.opts...)
		b.sessions[chatID] = ctrl
	}
	return ctrl
}

func (b *Bot) setupHandlers(bot *telebot.Bot) {
	bot.Use(func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			if c.Sender() != nil {
				logger.Info("Incoming update",
					logger.Int64("user_id", c.Sender().ID),
					logger.String("username", c.Sender().Username),
					logger.String("text", c.Text()),
				)
			}
			return next(c)
		}
	})

	bot.Handle("/start", b.handleShow)
	bot.Handle("/jokes", b.handleShow)
	bot.Handle("/more", b.handleMore)
	bot.Handle("/reset", b.handleReset)
	bot.Handle("/help", b.handleHelp)
	bot.Handle(telebot.OnText, b.handleText)

	bot.Handle(&telebot.Btn{Unique: uniqueUp}, b.voteHandler(1))
	bot.Handle(&telebot.Btn{Unique: uniqueDown}, b.voteHandler(-1))
	bot.Handle(&telebot.Btn{Unique: uniqueLock}, b.handleLock)
	bot.Handle(&telebot.Btn{Unique: uniqueMore}, b.handleMoreButton)
	bot.Handle(&telebot.Btn{Unique: uniqueReset}, b.handleResetButton)
}

// handleShow sends the chat's list, filling it first when the chat has no
// list yet.
func (b *Bot) handleShow(c telebot.Context) error {
	ctrl := b.session(c.Chat().ID)

	switch ctrl.Status() {
	case jokelist.StatusIdle:
		return b.fillAndShow(c, nil, ctrl.Initialize)
	case jokelist.StatusLoading:
		_, err := b.send(c.Chat(), loadingText, nil)
		return err
	}

	text, menu := render(ctrl.Snapshot())
	_, err := b.send(c.Chat(), text, menu)
	return err
}

func (b *Bot) handleMore(c telebot.Context) error {
	ctrl := b.session(c.Chat().ID)
	if ctrl.Status() == jokelist.StatusIdle {
		return b.fillAndShow(c, nil, ctrl.Initialize)
	}
	return b.fillAndShow(c, nil, ctrl.Regenerate)
}

func (b *Bot) handleReset(c telebot.Context) error {
	ctrl := b.session(c.Chat().ID)
	err := b.ensureLoaded(ctrl)
	if err == nil {
		err = ctrl.ResetVotes(b.ctx)
	}
	if errors.Is(err, jokelist.ErrBusy) {
		_, sendErr := b.send(c.Chat(), busyText(err), nil)
		return sendErr
	}
	text, menu := render(ctrl.Snapshot())
	_, err = b.send(c.Chat(), text, menu)
	return err
}

func (b *Bot) handleHelp(c telebot.Context) error {
	_, err := b.send(c.Chat(), helpText, nil)
	return err
}

func (b *Bot) handleText(c telebot.Context) error {
	_, err := b.send(c.Chat(), "Use /jokes to see your jokes!", nil)
	return err
}

func (b *Bot) voteHandler(delta int) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		ctrl := b.session(c.Chat().ID)
		return b.applyButton(c, ctrl, func() error {
			return ctrl.Vote(b.ctx, c.Callback().Data, delta)
		})
	}
}

func (b *Bot) handleLock(c telebot.Context) error {
	ctrl := b.session(c.Chat().ID)
	return b.applyButton(c, ctrl, func() error {
		return ctrl.ToggleLock(b.ctx, c.Callback().Data)
	})
}

func (b *Bot) handleResetButton(c telebot.Context) error {
	ctrl := b.session(c.Chat().ID)
	return b.applyButton(c, ctrl, func() error {
		return ctrl.ResetVotes(b.ctx)
	})
}

func (b *Bot) handleMoreButton(c telebot.Context) error {
	ctrl := b.session(c.Chat().ID)
	if ctrl.IsLoading() {
		return c.Respond(&telebot.CallbackResponse{Text: busyText(jokelist.ErrBusy)})
	}
	if err := c.Respond(&telebot.CallbackResponse{Text: "Fetching new jokes…"}); err != nil {
		logger.Warn("Failed to answer callback", logger.Err(err))
	}

	fill := ctrl.Regenerate
	if ctrl.Status() == jokelist.StatusIdle {
		fill = ctrl.Initialize
	}
	return b.fillAndShow(c, c.Callback().Message, fill)
}

// ensureLoaded initializes a controller that has not loaded its list yet.
// Buttons from before a restart land on such a controller.
func (b *Bot) ensureLoaded(ctrl *jokelist.Controller) error {
	if ctrl.Status() != jokelist.StatusIdle {
		return nil
	}
	logger.Debug("Loading joke list for button press")
	return ctrl.Initialize(b.ctx)
}

// applyButton loads the list if needed, runs op, answers the button press and
// redraws the list it came from. A failed load is shown as the failed list.
func (b *Bot) applyButton(c telebot.Context, ctrl *jokelist.Controller, op func() error) error {
	err := b.ensureLoaded(ctrl)
	if err == nil {
		err = op()
	}
	if errors.Is(err, jokelist.ErrBusy) {
		return c.Respond(&telebot.CallbackResponse{Text: busyText(err)})
	}
	if err != nil {
		logger.Warn("Button action failed", logger.Err(err))
	}

	if err := c.Respond(); err != nil {
		logger.Warn("Failed to answer callback", logger.Err(err))
	}

	text, menu := render(ctrl.Snapshot())
	return b.edit(c.Callback().Message, text, menu)
}

// fillAndShow shows the loading text (editing msg, or sending a new message
// when msg is nil), runs fill and replaces the text with the outcome.
func (b *Bot) fillAndShow(c telebot.Context, msg *telebot.Message, fill func(context.Context) error) error {
	if msg == nil {
		sent, err := b.send(c.Chat(), loadingText, nil)
		if err != nil {
			return err
		}
		msg = sent
	} else if err := b.edit(msg, loadingText, nil); err != nil {
		return err
	}

	err := fill(b.ctx)
	if errors.Is(err, jokelist.ErrBusy) {
		return b.edit(msg, busyText(err), nil)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}

	text, menu := render(b.session(c.Chat().ID).Snapshot())
	return b.edit(msg, text, menu)
}

func busyText(err error) string {
	if errors.Is(err, jokelist.ErrBusy) {
		return "Still fetching jokes…"
	}
	return err.Error()
}

func (b *Bot) sendOptions(menu *telebot.ReplyMarkup) *telebot.SendOptions {
	return &telebot.SendOptions{
		ParseMode:   telebot.ParseMode(b.cfg.ParseMode),
		ReplyMarkup: menu,
	}
}

func (b *Bot) send(to telebot.Recipient, text string, menu *telebot.ReplyMarkup) (*telebot.Message, error) {
	var msg *telebot.Message
	err := b.withRetry(func() error {
		var err error
		msg, err = b.api.Send(to, text, b.sendOptions(menu))
		return err
	})
	return msg, err
}

func (b *Bot) edit(msg telebot.Editable, text string, menu *telebot.ReplyMarkup) error {
	err := b.withRetry(func() error {
		_, err := b.api.Edit(msg, text, b.sendOptions(menu))
		return err
	})
	if err != nil && isNotModified(err) {
		return nil
	}
	return err
}

// withRetry repeats fn with exponential backoff while Telegram reports rate
// limiting; any other error is returned at once.
func (b *Bot) withRetry(fn func() error) error {
	backoff := retry.WithMaxRetries(sendAttempts-1, retry.NewExponential(sendBaseDelay))

	limited := false
	err := retry.Do(b.ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err != nil && isRateLimited(err) {
			limited = true
			logger.Warn("Rate limited, retrying...", logger.Err(err))
			return retry.RetryableError(err)
		}
		limited = false
		return err
	})
	if err != nil && limited {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func isRateLimited(err error) bool {
	s := err.Error()
	return strings.Contains(s, "Too Many Requests") || strings.Contains(s, "retry after")
}

func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}
