package bot

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"coffee-timer/internal/countdown"
	"coffee-timer/internal/model"
	"coffee-timer/internal/store"
)

// maxDurationSeconds matches the 59:59 ceiling of the edit form.
const maxDurationSeconds = 59*60 + 59

var errBadRef = errors.New("expected <coffee|tea> <number>")

func escape(s string) string {
	return html.EscapeString(s)
}

func categoryIcon(cat model.Category) string {
	if cat == model.CategoryTea {
		return "🍵"
	}
	return "☕"
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "New timer"
	}
	return name
}

func shortName(name string, maxLen int) string {
	clean := displayName(strings.ReplaceAll(name, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

// parseRef reads "<category> <n>" where n counts from 1 and returns a
// zero-based index.
func parseRef(args string) (model.Category, int, error) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return 0, 0, errBadRef
	}
	cat, err := model.ParseCategory(fields[0])
	if err != nil {
		return 0, 0, errBadRef
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 1 {
		return 0, 0, errBadRef
	}
	return cat, n - 1, nil
}

type moveRequest struct {
	src, dst model.Category
	from, to int
}

var errBadMove = errors.New("expected <coffee|tea> <from> [coffee|tea] <to>")

// parseMove reads "<category> <from> <to>" or
// "<category> <from> <category> <to>" with 1-based positions.
func parseMove(args string) (moveRequest, error) {
	fields := strings.Fields(args)
	if len(fields) != 3 && len(fields) != 4 {
		return moveRequest{}, errBadMove
	}
	src, from, err := parseRef(fields[0] + " " + fields[1])
	if err != nil {
		return moveRequest{}, errBadMove
	}
	dst, to := src, 0
	if len(fields) == 4 {
		dst, to, err = parseRef(fields[2] + " " + fields[3])
		if err != nil {
			return moveRequest{}, errBadMove
		}
	} else {
		n, err := strconv.Atoi(fields[2])
		if err != nil {
			return moveRequest{}, errors.New("target position must be a number")
		}
		to = n - 1
	}
	return moveRequest{src: src, dst: dst, from: from, to: to}, nil
}

// parseDuration accepts "m:ss", Go duration strings such as "4m30s", or a
// plain number of seconds.
func parseDuration(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("empty duration")
	}

	var seconds int
	switch {
	case strings.Contains(raw, ":"):
		parts := strings.SplitN(raw, ":", 2)
		minutes, err := strconv.Atoi(parts[0])
		if err != nil || minutes < 0 {
			return 0, fmt.Errorf("bad minutes in %q", raw)
		}
		if minutes > maxDurationSeconds/60 {
			return 0, fmt.Errorf("duration must not exceed %s", model.FormatSeconds(maxDurationSeconds))
		}
		secs, err := strconv.Atoi(parts[1])
		if err != nil || secs < 0 || secs > 59 {
			return 0, fmt.Errorf("bad seconds in %q", raw)
		}
		seconds = minutes*60 + secs
	default:
		if n, err := strconv.Atoi(raw); err == nil {
			seconds = n
			break
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("cannot read duration %q", raw)
		}
		seconds = int(d.Round(time.Second) / time.Second)
	}

	if seconds <= 0 {
		return 0, errors.New("duration must be positive")
	}
	if seconds > maxDurationSeconds {
		return 0, fmt.Errorf("duration must not exceed %s", model.FormatSeconds(maxDurationSeconds))
	}
	return seconds, nil
}

func pluralize(value int, singular, plural string) string {
	if value == 1 {
		return "1 " + singular
	}
	return fmt.Sprintf("%d %s", value, plural)
}

// describeDuration renders seconds the way the edit form labels them.
func describeDuration(seconds int) string {
	return pluralize(seconds/60, "minute", "minutes") + " " + pluralize(seconds%60, "second", "seconds")
}

// renderList builds the timer list message. Empty categories are left out.
// The keyboard is nil when there are no timers.
func renderList(s *store.Store) (string, *tgbotapi.InlineKeyboardMarkup) {
	var text strings.Builder
	var rows [][]tgbotapi.InlineKeyboardButton

	for _, cat := range model.Categories() {
		records := s.Records(cat)
		if len(records) == 0 {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n")
		}
		text.WriteString(fmt.Sprintf("%s <b>%s</b>\n", categoryIcon(cat), cat.Title()))
		for i, rec := range records {
			text.WriteString(fmt.Sprintf("%d. %s · %s\n", i+1, escape(displayName(rec.Name)), rec.DurationText()))
			label := fmt.Sprintf("▶️ %s (%s)", shortName(rec.Name, 24), rec.DurationText())
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(label, cbBrewPrefix+rec.ID),
			))
		}
	}

	if len(rows) == 0 {
		return "No timers yet. Add one with /newtimer.", nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return strings.TrimSpace(text.String()), &markup
}

func brewText(rec model.TimerRecord, remaining time.Duration, deadline time.Time, loc *time.Location) string {
	return fmt.Sprintf("%s Brewing <b>%s</b>\nRemaining: <code>%s</code>\nReady at %s",
		categoryIcon(rec.Category), escape(displayName(rec.Name)), countdown.FormatRemaining(remaining),
		deadline.In(loc).Format("15:04:05"))
}
