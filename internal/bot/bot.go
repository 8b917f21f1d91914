package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"coffee-timer/internal/bootstrap"
	"coffee-timer/internal/countdown"
	"coffee-timer/internal/model"
	"coffee-timer/internal/service"
	"coffee-timer/internal/store"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageName
	stageDuration
	stageCategory
)

const (
	cbBrewPrefix   = "brew:"
	cbDeletePrefix = "delete:"
	cbStop         = "stop"
	cbKeep         = "keep"
)

const (
	btnKeep          = "⏭️ Keep"
	btnCancelDialog  = "⏪ Cancel"
	btnCoffee        = "Coffee"
	btnTea           = "Tea"
	menuLabelTimers  = "☕ Timers"
	menuLabelNew     = "➕ New timer"
	menuLabelStop    = "⏹ Stop"
	menuLabelHelp    = "ℹ️ Help"
	brewRefreshEvery = 5 * time.Second
)

// pendingBrewMessage marks a brew whose message has not been sent yet.
const pendingBrewMessage = 0

type conversationState struct {
	stage   conversationStage
	timerID string
	isNew   bool
	input   service.Edit
}

type brewEnd struct {
	timer model.TimerRecord
	event countdown.Event
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Connect authorizes against the Telegram Bot API.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Printf("[info] bot authorized on account %s", api.Self.UserName)
	return api, nil
}

// Bot aggregates Telegram API with services.
//
// Store access happens on the update loop only. Brew events arrive on
// other goroutines and touch nothing but brewMessages.
type Bot struct {
	api    *tgbotapi.BotAPI
	out    sender
	timers *service.TimerService
	brews  *service.BrewService
	store  *store.Store
	loc    *time.Location

	conversations map[int64]*conversationState
	lists         map[int64]int
	listsDirty    bool
	lastChange    store.EventKind
	unsubscribe   func()

	mu           sync.Mutex
	brewMessages map[int64]int
	brewEnded    map[int64]brewEnd
}

// New builds the bot. Ready times are shown in loc.
func New(api *tgbotapi.BotAPI, timers *service.TimerService, brews *service.BrewService, loc *time.Location) *Bot {
	return newBot(api, api, timers, brews, loc)
}

func newBot(api *tgbotapi.BotAPI, out sender, timers *service.TimerService, brews *service.BrewService, loc *time.Location) *Bot {
	if loc == nil {
		loc = time.Local
	}
	b := &Bot{
		api:           api,
		out:           out,
		timers:        timers,
		brews:         brews,
		store:         timers.Store(),
		loc:           loc,
		conversations: make(map[int64]*conversationState),
		lists:         make(map[int64]int),
		brewMessages:  make(map[int64]int),
		brewEnded:     make(map[int64]brewEnd),
	}
	b.unsubscribe = b.store.Subscribe(store.ObserverFunc(b.storeChanged))
	brews.SetEventHandler(b.brewChanged)
	return b
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	defer b.unsubscribe()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			log.Printf("handle callback: %v", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			log.Printf("handle message: %v", err)
		}
	}
	b.refreshLists()
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID

	if !msg.IsCommand() && strings.TrimSpace(msg.Text) == btnCancelDialog {
		return b.cancelConversation(ctx, chatID)
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", chatID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	if _, ok := b.conversations[chatID]; ok {
		log.Printf("[info] conversation step %d from %d", b.conversations[chatID].stage, chatID)
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(chatID, "I did not get that. Try /timers, /newtimer or /help.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(chatID)
	case "timers":
		return b.sendList(chatID)
	case "newtimer":
		return b.startNewTimer(chatID, args)
	case "edit":
		return b.startEdit(chatID, args)
	case "delete":
		return b.askDelete(chatID, args)
	case "move":
		return b.handleMove(ctx, chatID, args)
	case "brew":
		return b.handleBrewCommand(ctx, chatID, args)
	case "stop":
		return b.stopBrew(chatID)
	case "export":
		return b.handleExport(chatID)
	case "cancel":
		return b.cancelConversation(ctx, chatID)
	default:
		return b.sendText(chatID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := ""
	if msg.From != nil {
		name = strings.TrimSpace(msg.From.FirstName)
	}
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf("👋 Hi, %s!\n<b>I time your coffee and tea.</b>\n\nTap a timer to start brewing, or see /help.", escape(name))
	if err := b.sendText(msg.Chat.ID, text); err != nil {
		return err
	}
	return b.sendList(msg.Chat.ID)
}

func (b *Bot) handleHelp(chatID int64) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /timers — show timers, tap one to brew\n" +
		"• /newtimer [coffee|tea] — add a timer step by step\n" +
		"• /edit &lt;coffee|tea&gt; &lt;n&gt; — change a timer\n" +
		"• /delete &lt;coffee|tea&gt; &lt;n&gt; — remove a timer\n" +
		"• /move &lt;coffee|tea&gt; &lt;from&gt; [coffee|tea] &lt;to&gt; — reorder within a list\n" +
		"• /brew &lt;coffee|tea&gt; &lt;n&gt; — start brewing\n" +
		"• /stop — stop the running brew\n" +
		"• /export — download your timers as YAML\n" +
		"• /cancel — abort the current input"
	return b.sendText(chatID, text)
}

func (b *Bot) startNewTimer(chatID int64, args string) error {
	b.dropConversation(chatID)

	cat := model.CategoryCoffee
	if args != "" {
		parsed, err := model.ParseCategory(args)
		if err != nil {
			return b.sendText(chatID, "Use /newtimer coffee or /newtimer tea.")
		}
		cat = parsed
	}

	id, err := b.timers.BeginNew(cat)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not start a new timer: %s", escape(err.Error())))
	}
	log.Printf("[info] start new timer conversation chat=%d draft=%s", chatID, id)

	b.conversations[chatID] = &conversationState{
		stage:   stageName,
		timerID: id,
		isNew:   true,
		input:   service.Edit{DurationSeconds: service.DefaultDraftSeconds, Category: cat},
	}
	return b.sendWithReplyMarkup(chatID, "🆕 New timer.\n<b>Step 1:</b> what is it called?", cancelKeyboard())
}

func (b *Bot) startEdit(chatID int64, args string) error {
	cat, index, err := parseRef(args)
	if err != nil {
		return b.sendText(chatID, "Which timer? For example: /edit tea 2")
	}
	rec, err := b.store.At(cat, index)
	if err != nil {
		return b.sendText(chatID, "Timer not found.")
	}

	b.dropConversation(chatID)
	b.conversations[chatID] = &conversationState{
		stage:   stageName,
		timerID: rec.ID,
		input:   service.Edit{Name: rec.Name, DurationSeconds: rec.DurationSeconds, Category: rec.Category},
	}
	text := fmt.Sprintf("✏️ Editing <b>%s</b>.\n<b>Step 1:</b> new name?", escape(displayName(rec.Name)))
	return b.sendWithReplyMarkup(chatID, text, keepKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	state := b.conversations[chatID]
	text := strings.TrimSpace(msg.Text)
	keep := text == btnKeep

	switch state.stage {
	case stageName:
		if !keep || state.input.Name == "" {
			if text == "" || keep {
				return b.sendWithReplyMarkup(chatID, "The name cannot be empty. What is it called?", b.stageKeyboard(state))
			}
			state.input.Name = text
		}
		state.stage = stageDuration
		prompt := fmt.Sprintf("⏱ <b>Step 2:</b> how long? Send <code>m:ss</code>, for example <code>4:00</code>. Now: %s.",
			describeDuration(state.input.DurationSeconds))
		return b.sendWithReplyMarkup(chatID, prompt, b.stageKeyboard(state))
	case stageDuration:
		if !keep {
			seconds, err := parseDuration(text)
			if err != nil {
				return b.sendWithReplyMarkup(chatID, fmt.Sprintf("That does not look like a duration (%s). Try <code>3:30</code>.", escape(err.Error())), b.stageKeyboard(state))
			}
			state.input.DurationSeconds = seconds
		}
		state.stage = stageCategory
		return b.sendWithReplyMarkup(chatID, "🏷 <b>Step 3:</b> coffee or tea?", categoryKeyboard(state.isNew))
	case stageCategory:
		if !keep {
			cat, err := model.ParseCategory(text)
			if err != nil {
				return b.sendWithReplyMarkup(chatID, "Pick Coffee or Tea.", categoryKeyboard(state.isNew))
			}
			state.input.Category = cat
		}
		delete(b.conversations, chatID)
		return b.finishEdit(ctx, chatID, state)
	default:
		b.dropConversation(chatID)
		return b.sendText(chatID, "Input reset. Start again with /newtimer.")
	}
}

func (b *Bot) finishEdit(ctx context.Context, chatID int64, state *conversationState) error {
	rec, err := b.timers.Save(ctx, state.timerID, state.input)
	switch {
	case errors.Is(err, store.ErrPersistence):
		if sendErr := b.sendTextWithRemove(chatID, "⚠️ Saved, but writing to disk failed. It will be retried with the next change."); sendErr != nil {
			return sendErr
		}
	case errors.Is(err, store.ErrNotFound):
		return b.sendTextWithRemove(chatID, "That timer no longer exists.")
	case err != nil:
		if state.isNew {
			_ = b.timers.CancelNew(ctx, state.timerID)
		}
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Could not save the timer: %s", escape(err.Error())))
	}

	log.Printf("[info] timer saved id=%s chat=%d new=%t", rec.ID, chatID, state.isNew)

	var summary strings.Builder
	summary.WriteString("✅ <b>Timer saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>Name:</b> %s\n", escape(rec.Name)))
	summary.WriteString(fmt.Sprintf("• <b>Duration:</b> %s (%s)\n", rec.DurationText(), describeDuration(rec.DurationSeconds)))
	summary.WriteString(fmt.Sprintf("• <b>Type:</b> %s %s", categoryIcon(rec.Category), rec.Category))
	if err := b.sendTextWithRemove(chatID, summary.String()); err != nil {
		return err
	}
	return b.sendList(chatID)
}

func (b *Bot) cancelConversation(ctx context.Context, chatID int64) error {
	state, ok := b.conversations[chatID]
	if !ok {
		return b.sendText(chatID, "Nothing to cancel.")
	}
	delete(b.conversations, chatID)
	if state.isNew {
		if err := b.timers.CancelNew(ctx, state.timerID); err != nil {
			log.Printf("[warn] cancel draft %s: %v", state.timerID, err)
		}
	}
	return b.sendTextWithRemove(chatID, "⏪ Input cancelled.")
}

// dropConversation abandons an unfinished conversation without replying.
func (b *Bot) dropConversation(chatID int64) {
	state, ok := b.conversations[chatID]
	if !ok {
		return
	}
	delete(b.conversations, chatID)
	if state.isNew {
		if err := b.timers.CancelNew(context.Background(), state.timerID); err != nil {
			log.Printf("[warn] drop draft %s: %v", state.timerID, err)
		}
	}
}

func (b *Bot) askDelete(chatID int64, args string) error {
	cat, index, err := parseRef(args)
	if err != nil {
		return b.sendText(chatID, "Which timer? For example: /delete coffee 1")
	}
	rec, err := b.store.At(cat, index)
	if err != nil {
		return b.sendText(chatID, "Timer not found.")
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", cbDeletePrefix+rec.ID),
		tgbotapi.NewInlineKeyboardButtonData("↩️ Keep", cbKeep),
	))
	text := fmt.Sprintf("Delete <b>%s</b> (%s)?", escape(displayName(rec.Name)), rec.DurationText())
	return b.sendWithReplyMarkup(chatID, text, markup)
}

func (b *Bot) deleteTimer(ctx context.Context, chatID int64, id string) error {
	rec, err := b.timers.Delete(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return b.sendText(chatID, "Timer not found or already deleted.")
	case errors.Is(err, store.ErrPersistence):
		log.Printf("[warn] delete %s not persisted yet: %v", id, err)
	case err != nil:
		return b.sendText(chatID, fmt.Sprintf("Could not delete the timer: %s", escape(err.Error())))
	}
	log.Printf("[info] timer deleted id=%s chat=%d", id, chatID)
	return b.sendText(chatID, fmt.Sprintf("🗑 Timer \"%s\" deleted.", escape(displayName(rec.Name))))
}

func (b *Bot) handleMove(ctx context.Context, chatID int64, args string) error {
	req, err := parseMove(args)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Usage: /move tea 1 3 (%s).", escape(err.Error())))
	}
	rec, err := b.store.At(req.src, req.from)
	if err != nil {
		return b.sendText(chatID, "Timer not found.")
	}

	// Timers never change type by moving; a drop in the other list snaps
	// to the boundary slot.
	to := b.store.TargetIndexForMove(req.src, req.dst, req.to)
	err = b.timers.Move(ctx, req.src, req.from, to)
	switch {
	case errors.Is(err, store.ErrPersistence):
		log.Printf("[warn] move not persisted yet: %v", err)
	case err != nil:
		return b.sendText(chatID, fmt.Sprintf("Could not move the timer: %s", escape(err.Error())))
	}

	_, index, _ := b.store.Position(rec.ID)
	text := fmt.Sprintf("↕️ %s is now #%d in %s.", escape(displayName(rec.Name)), index+1, req.src.Title())
	if req.dst != req.src {
		text += fmt.Sprintf(" Use /edit to turn it into a %s timer.", req.dst)
	}
	return b.sendText(chatID, text)
}

func (b *Bot) handleBrewCommand(ctx context.Context, chatID int64, args string) error {
	cat, index, err := parseRef(args)
	if err != nil {
		return b.sendText(chatID, "Which timer? For example: /brew coffee 1")
	}
	rec, err := b.store.At(cat, index)
	if err != nil {
		return b.sendText(chatID, "Timer not found.")
	}
	return b.startBrew(ctx, chatID, rec.ID)
}

func (b *Bot) startBrew(ctx context.Context, chatID int64, id string) error {
	if _, _, running := b.brews.Active(chatID); running {
		return b.sendText(chatID, "Something is already brewing. Send /stop first.")
	}

	// Events that arrive before the message exists are parked in brewEnded.
	b.mu.Lock()
	b.brewMessages[chatID] = pendingBrewMessage
	delete(b.brewEnded, chatID)
	b.mu.Unlock()

	brew, err := b.brews.Start(ctx, chatID, id)
	if err != nil {
		b.mu.Lock()
		delete(b.brewMessages, chatID)
		b.mu.Unlock()
	}
	switch {
	case errors.Is(err, countdown.ErrInvalidState):
		return b.sendText(chatID, "Something is already brewing. Send /stop first.")
	case errors.Is(err, store.ErrNotFound):
		return b.sendText(chatID, "Timer not found.")
	case err != nil:
		return b.sendText(chatID, fmt.Sprintf("Could not start the timer: %s", escape(err.Error())))
	}
	rec := brew.Timer
	log.Printf("[info] brew started id=%s chat=%d duration=%d", rec.ID, chatID, rec.DurationSeconds)

	msg := tgbotapi.NewMessage(chatID, brewText(rec, rec.Duration(), brew.Deadline, b.loc))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = stopMarkup()
	sent, err := b.out.Send(msg)

	b.mu.Lock()
	end, ended := b.brewEnded[chatID]
	delete(b.brewEnded, chatID)
	if err != nil || ended {
		delete(b.brewMessages, chatID)
	} else {
		b.brewMessages[chatID] = sent.MessageID
	}
	b.mu.Unlock()

	if err != nil {
		return err
	}
	if ended {
		b.editBrew(chatID, sent.MessageID, end.timer, end.event)
	}
	return nil
}

func (b *Bot) stopBrew(chatID int64) error {
	if !b.brews.Stop(chatID) {
		return b.sendText(chatID, "Nothing is brewing.")
	}
	return nil
}

// brewChanged mirrors countdown events into the brew message.
func (b *Bot) brewChanged(chatID int64, rec model.TimerRecord, ev countdown.Event) {
	terminal := ev.Type == countdown.EventFinished || ev.Type == countdown.EventCancelled

	b.mu.Lock()
	messageID, ok := b.brewMessages[chatID]
	if ok && messageID == pendingBrewMessage {
		if terminal {
			b.brewEnded[chatID] = brewEnd{timer: rec, event: ev}
		}
		b.mu.Unlock()
		return
	}
	if terminal {
		delete(b.brewMessages, chatID)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	b.editBrew(chatID, messageID, rec, ev)
}

func (b *Bot) editBrew(chatID int64, messageID int, rec model.TimerRecord, ev countdown.Event) {
	var edit tgbotapi.EditMessageTextConfig
	switch ev.Type {
	case countdown.EventTick:
		if ev.Remaining > brewRefreshEvery && ev.Remaining%brewRefreshEvery != 0 {
			return
		}
		edit = tgbotapi.NewEditMessageText(chatID, messageID, brewText(rec, ev.Remaining, ev.Deadline, b.loc))
		markup := stopMarkup()
		edit.ReplyMarkup = &markup
	case countdown.EventFinished:
		log.Printf("[info] brew finished id=%s chat=%d", rec.ID, chatID)
		edit = tgbotapi.NewEditMessageText(chatID, messageID,
			fmt.Sprintf("✅ <b>%s</b> is ready.", escape(displayName(rec.Name))))
	case countdown.EventCancelled:
		log.Printf("[info] brew stopped id=%s chat=%d", rec.ID, chatID)
		edit = tgbotapi.NewEditMessageText(chatID, messageID,
			fmt.Sprintf("⏹ <b>%s</b> stopped with %s left.", escape(displayName(rec.Name)), countdown.FormatRemaining(ev.Remaining)))
	default:
		return
	}

	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := b.out.Send(edit); err != nil && !isNotModified(err) {
		log.Printf("[warn] update brew message chat=%d: %v", chatID, err)
	}
}

func (b *Bot) handleExport(chatID int64) error {
	var buf bytes.Buffer
	if err := bootstrap.Export(&buf, b.store); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Export failed: %s", escape(err.Error())))
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "timers.yaml", Bytes: buf.Bytes()})
	doc.Caption = fmt.Sprintf("%d timers", b.store.Len())
	_, err := b.out.Send(doc)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.out.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	chatID := cb.Message.Chat.ID
	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbBrewPrefix):
		log.Printf("[info] callback brew chat=%d timer=%s", chatID, strings.TrimPrefix(data, cbBrewPrefix))
		return b.startBrew(ctx, chatID, strings.TrimPrefix(data, cbBrewPrefix))
	case strings.HasPrefix(data, cbDeletePrefix):
		log.Printf("[info] callback delete chat=%d timer=%s", chatID, strings.TrimPrefix(data, cbDeletePrefix))
		b.clearMarkup(chatID, cb.Message.MessageID)
		return b.deleteTimer(ctx, chatID, strings.TrimPrefix(data, cbDeletePrefix))
	case data == cbKeep:
		b.clearMarkup(chatID, cb.Message.MessageID)
		return nil
	case data == cbStop:
		return b.stopBrew(chatID)
	default:
		return nil
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	chatID := msg.Chat.ID
	switch strings.TrimSpace(msg.Text) {
	case menuLabelTimers:
		return true, b.sendList(chatID)
	case menuLabelNew:
		return true, b.startNewTimer(chatID, "")
	case menuLabelStop:
		return true, b.stopBrew(chatID)
	case menuLabelHelp:
		return true, b.handleHelp(chatID)
	default:
		return false, nil
	}
}

// storeChanged marks open list messages stale; they are redrawn once the
// current update has been handled.
func (b *Bot) storeChanged(ev store.Event) {
	b.listsDirty = true
	b.lastChange = ev.Kind()
}

func (b *Bot) sendList(chatID int64) error {
	text, markup := renderList(b.store)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = *markup
	} else {
		msg.ReplyMarkup = mainMenuKeyboard()
	}
	sent, err := b.out.Send(msg)
	if err != nil {
		return err
	}
	b.lists[chatID] = sent.MessageID
	return nil
}

func (b *Bot) refreshLists() {
	if !b.listsDirty {
		return
	}
	b.listsDirty = false

	if len(b.lists) == 0 {
		return
	}
	log.Printf("[info] refresh %d open lists after %s", len(b.lists), b.lastChange)

	text, markup := renderList(b.store)
	for chatID, messageID := range b.lists {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
		edit.ParseMode = tgbotapi.ModeHTML
		edit.ReplyMarkup = markup
		if _, err := b.out.Send(edit); err != nil && !isNotModified(err) {
			log.Printf("[warn] refresh list chat=%d: %v", chatID, err)
			delete(b.lists, chatID)
		}
	}
}

func (b *Bot) clearMarkup(chatID int64, messageID int) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := b.out.Request(edit); err != nil {
		log.Printf("[warn] clear markup chat=%d: %v", chatID, err)
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) stageKeyboard(state *conversationState) tgbotapi.ReplyKeyboardMarkup {
	if state.isNew && state.stage == stageName {
		return cancelKeyboard()
	}
	return keepKeyboard()
}

func stopMarkup() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⏹ Stop", cbStop),
	))
}

func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelTimers),
			tgbotapi.NewKeyboardButton(menuLabelNew),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelStop),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func keepKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnKeep),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func categoryKeyboard(isNew bool) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCoffee),
			tgbotapi.NewKeyboardButton(btnTea),
		),
	}
	last := tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog))
	if !isNew {
		last = tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnKeep),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		)
	}
	kb := tgbotapi.NewReplyKeyboard(append(rows, last)...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}
