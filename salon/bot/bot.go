// Package bot binds the booking flow to Telegram updates.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/m3rciful/salonbot/core/buildinfo"
	"github.com/m3rciful/salonbot/core/logger"
	"github.com/m3rciful/salonbot/core/session"
	tg "github.com/m3rciful/salonbot/core/telegram"
	"github.com/m3rciful/salonbot/core/telegram/callbacks"
	"github.com/m3rciful/salonbot/core/telegram/format"
	tghelpers "github.com/m3rciful/salonbot/core/telegram/helpers"
	"github.com/m3rciful/salonbot/core/telegram/keyboard"
	"github.com/m3rciful/salonbot/core/telegram/router"
	"github.com/m3rciful/salonbot/salon/booking"
	"github.com/m3rciful/salonbot/salon/storage"

	tele "gopkg.in/telebot.v4"
)

const component = "tg"

const (
	textAskPhone     = "Чтобы записаться, поделитесь номером телефона 👇"
	textPhoneButton  = "Отправить телефон 📞"
	textPhoneSaved   = "Спасибо, номер сохранён!"
	textForeignPhone = "Пожалуйста, отправьте свой номер кнопкой ниже."
	textUseButtons   = "Взаимодействие с ботом происходит кнопками."
	textNoDocuments  = "Файлы не нужны, пользуйтесь кнопками 🙂"
	textTryAgain     = "Что-то пошло не так, попробуйте ещё раз 🙏"
	textSlowDown     = "Слишком часто, подождите немного ⏳"
	textAdminOnly    = "Команда доступна только администратору."
	textReloaded     = "Расписание и каталог обновлены."
)

// Flow handles booking actions.
type Flow interface {
	Handle(ctx context.Context, act booking.Action) error
}

// PhoneBook stores the phones clients share.
type PhoneBook interface {
	SavePhone(ctx context.Context, chatID int64, username, phone string) error
	Phone(ctx context.Context, chatID int64) (string, bool, error)
}

// OccupancySource reports slot usage for /stats.
type OccupancySource interface {
	Occupancy(ctx context.Context) (storage.Occupancy, error)
}

// Options are the collaborators of a Bot.
type Options struct {
	Flow   Flow
	Phones PhoneBook

	Sessions  *session.Store
	Sweeper   *session.Sweeper
	Occupancy OccupancySource
	// Reloaders run on /reload, all of them even when one fails.
	Reloaders []func(context.Context) error

	// LookupTimeout bounds phone book calls; 0 means 5s.
	LookupTimeout time.Duration
}

// Bot owns the Telegram handlers of the salon.
type Bot struct {
	flow      Flow
	phones    PhoneBook
	sessions  *session.Store
	sweeper   *session.Sweeper
	occupancy OccupancySource
	reloaders []func(context.Context) error
	timeout   time.Duration

	mu    sync.RWMutex
	known map[int64]string
}

// New validates opts and builds a Bot.
func New(opts Options) (*Bot, error) {
	if opts.Flow == nil {
		return nil, errors.New("bot: flow is required")
	}
	if opts.Phones == nil {
		return nil, errors.New("bot: phone book is required")
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 5 * time.Second
	}
	return &Bot{
		flow:      opts.Flow,
		phones:    opts.Phones,
		sessions:  opts.Sessions,
		sweeper:   opts.Sweeper,
		occupancy: opts.Occupancy,
		reloaders: opts.Reloaders,
		timeout:   opts.LookupTimeout,
		known:     make(map[int64]string),
	}, nil
}

var _ router.Fallbacks = (*Bot)(nil)

// Register adds commands, button callbacks and the text fallback to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	var errs *multierror.Error
	cmds := []struct {
		name string
		cmd  tg.Command
	}{
		{"/start", tg.Command{Handler: b.onStart, Description: "Начать"}},
		{"/menu", tg.Command{Handler: b.onMenu, Description: "Главное меню", Aliases: []string{"меню"}}},
		{"/stats", tg.Command{Handler: b.onStats, Description: "Статистика", AdminOnly: true, Hidden: true}},
		{"/reload", tg.Command{Handler: b.onReload, Description: "Перечитать расписание", AdminOnly: true, Hidden: true}},
	}
	for _, c := range cmds {
		errs = multierror.Append(errs, reg.RegisterCommand(c.name, c.cmd))
	}
	for _, kind := range booking.ButtonActions() {
		errs = multierror.Append(errs, reg.RegisterCallback(string(kind), b.onButton(kind)))
	}
	reg.SetTextFallback(b.UnknownText())
	reg.SetCallbackNotFound(b.UnknownCallback())
	return errs.ErrorOrNil()
}

// Routes returns the update routes that are not commands, callbacks or text.
func (b *Bot) Routes() []tg.Route {
	return []tg.Route{
		router.HandlerRoute(tele.OnContact, "contact", b.onContact),
	}
}

// UnknownText answers free text.
func (b *Bot) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, textUseButtons)
	}
}

// UnknownDocument answers uploaded files.
func (b *Bot) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, textNoDocuments)
	}
}

// UnknownCallback answers buttons of removed versions of the bot.
func (b *Bot) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return b.onButton(booking.ActMenu)(c)
	}
}

// OnLimited answers a rate limited update.
func (b *Bot) OnLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: textSlowDown})
	}
	return nil
}

// OnPanic apologizes for an update whose handler crashed.
func (b *Bot) OnPanic(c tele.Context) error {
	if c.Callback() != nil {
		_ = c.Respond()
	}
	return tghelpers.SendText(c, textTryAgain)
}

// AdminReject answers a non-admin calling an admin command.
func (b *Bot) AdminReject(c tele.Context) error {
	return tghelpers.SendText(c, textAdminOnly)
}

func chatOf(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

// client resolves the booking identity of the sender. ok is false when no
// phone has been shared yet.
func (b *Bot) client(ctx context.Context, u *tele.User) (booking.Client, bool, error) {
	if u == nil {
		return booking.Client{}, false, errors.New("bot: update without sender")
	}
	cl := booking.Client{ID: u.ID, Username: u.Username}

	b.mu.RLock()
	phone, cached := b.known[u.ID]
	b.mu.RUnlock()
	if cached {
		cl.Phone = phone
		return cl, true, nil
	}

	lctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	phone, ok, err := b.phones.Phone(lctx, u.ID)
	if err != nil {
		return cl, false, err
	}
	if ok {
		b.remember(u.ID, phone)
		cl.Phone = phone
	}
	return cl, ok, nil
}

func (b *Bot) remember(id int64, phone string) {
	b.mu.Lock()
	b.known[id] = phone
	b.mu.Unlock()
}

func (b *Bot) apologize(ctx context.Context, c tele.Context, err error) error {
	logger.Error(ctx, component, "client.lookup",
		slog.String("status", "fail"),
		slog.String("err", err.Error()),
	)
	if serr := tghelpers.SendText(c, textTryAgain); serr != nil {
		return errors.Join(err, serr)
	}
	return err
}

func (b *Bot) onButton(kind booking.ActionKind) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		cl, ok, err := b.client(ctx, c.Sender())
		if err != nil {
			return b.apologize(ctx, c, err)
		}
		if !ok {
			if c.Callback() != nil {
				_ = c.Respond()
			}
			return b.askPhone(ctx, c)
		}
		act := booking.Action{
			Kind:    kind,
			ChatID:  session.ID(chatOf(c)),
			Client:  cl,
			Payload: callbacks.Payload(c),
		}
		if msg := c.Message(); msg != nil && msg.Chat != nil {
			act.Origin = booking.Handle{ChatID: msg.Chat.ID, MessageID: msg.ID}
		}
		return b.flow.Handle(ctx, act)
	}
}

func (b *Bot) onStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	cl, ok, err := b.client(ctx, c.Sender())
	if err != nil {
		return b.apologize(ctx, c, err)
	}
	if !ok {
		return b.askPhone(ctx, c)
	}
	return b.flow.Handle(ctx, booking.Action{Kind: booking.ActMenu, ChatID: session.ID(chatOf(c)), Client: cl})
}

// askPhone requests the contact every booking log entry is keyed by.
func (b *Bot) askPhone(ctx context.Context, c tele.Context) error {
	logger.Info(ctx, component, "client.phone",
		slog.String("status", "skip"),
		slog.String("reason", "unknown_phone"),
	)
	return tghelpers.SendText(c, textAskPhone, &tele.SendOptions{
		ReplyMarkup: keyboard.ContactRequest(textPhoneButton),
	})
}

func (b *Bot) onMenu(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	cl, ok, err := b.client(ctx, c.Sender())
	if err != nil {
		return b.apologize(ctx, c, err)
	}
	if !ok {
		return b.askPhone(ctx, c)
	}
	return b.flow.Handle(ctx, booking.Action{Kind: booking.ActMenu, ChatID: session.ID(chatOf(c)), Client: cl})
}

func (b *Bot) onContact(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	msg, u := c.Message(), c.Sender()
	if msg == nil || msg.Contact == nil || u == nil {
		return nil
	}
	if msg.Contact.UserID != u.ID {
		return tghelpers.SendText(c, textForeignPhone, &tele.SendOptions{
			ReplyMarkup: keyboard.ContactRequest(textPhoneButton),
		})
	}

	phone := strings.TrimSpace(msg.Contact.PhoneNumber)
	sctx, cancel := context.WithTimeout(ctx, b.timeout)
	err := b.phones.SavePhone(sctx, u.ID, u.Username, phone)
	cancel()
	logger.Info(ctx, component, "client.phone",
		slog.String("status", logger.Status(err)),
		slog.Int64("user_id", u.ID),
	)
	if err != nil {
		return b.apologize(ctx, c, err)
	}
	b.remember(u.ID, phone)

	if err := c.Send(textPhoneSaved, &tele.SendOptions{ReplyMarkup: keyboard.RemoveKeyboard()}); err != nil {
		return fmt.Errorf("confirm phone: %w", err)
	}
	cl := booking.Client{ID: u.ID, Username: u.Username, Phone: phone}
	return b.flow.Handle(ctx, booking.Action{Kind: booking.ActMenu, ChatID: session.ID(chatOf(c)), Client: cl})
}

// statsLines renders the /stats report, one fact per line.
func (b *Bot) statsLines(ctx context.Context) []string {
	lines := []string{"Версия: " + buildinfo.Read().Short()}
	if b.sessions != nil {
		st := b.sessions.Stats()
		lines = append(lines, fmt.Sprintf("Сессии: %d (календари: %d)", st.Records, st.Markers))
	}
	if b.sweeper != nil {
		sw := b.sweeper.Stats()
		lines = append(lines, fmt.Sprintf("Очистки: %d, удалено: %d, ошибок: %d", sw.Runs, sw.Evicted, sw.Failures))
	}
	if b.occupancy != nil {
		occ, err := b.occupancy.Occupancy(ctx)
		if err != nil {
			lines = append(lines, "Слоты: недоступно")
		} else {
			lines = append(lines, fmt.Sprintf("Слоты: занято %d, свободно %d", occ.Booked, occ.Free))
		}
	}
	return lines
}

func (b *Bot) onStats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	qctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var sb strings.Builder
	sb.WriteString("*Статистика*")
	for _, line := range b.statsLines(qctx) {
		sb.WriteString("\n")
		sb.WriteString(format.MDV2(line))
	}
	return tghelpers.SendMDV2(c, sb.String())
}

// reload runs every reloader and aggregates their failures.
func (b *Bot) reload(ctx context.Context) error {
	var errs *multierror.Error
	for _, fn := range b.reloaders {
		errs = multierror.Append(errs, fn(ctx))
	}
	return errs.ErrorOrNil()
}

func (b *Bot) onReload(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	start := time.Now()
	err := b.reload(ctx)
	logger.Info(ctx, component, "admin.reload",
		slog.String("status", logger.Status(err)),
		slog.Int("steps", len(b.reloaders)),
		slog.Duration("duration", logger.Took(start)),
	)
	if err != nil {
		if serr := tghelpers.SendText(c, textTryAgain); serr != nil {
			return errors.Join(err, serr)
		}
		return err
	}
	return tghelpers.SendText(c, textReloaded)
}
