// Package keyboard builds reply markups.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn is an inline button. Telebot sends its callback data as
// "\f<Unique>|<Data>".
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

func (b InlineBtn) button() tele.InlineButton {
	return tele.InlineButton{Text: b.Text, Unique: b.Unique, Data: b.Data}
}

// Inline builds an inline keyboard with one keyboard row per row. Empty
// rows are dropped.
func Inline(rows ...[]InlineBtn) *tele.ReplyMarkup {
	kb := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]tele.InlineButton, len(row))
		for i, b := range row {
			line[i] = b.button()
		}
		kb = append(kb, line)
	}
	return &tele.ReplyMarkup{InlineKeyboard: kb}
}

// ContactRequest is a one-time reply keyboard whose single button shares
// the user's phone number.
func ContactRequest(label string) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
		ReplyKeyboard:   [][]tele.ReplyButton{{{Text: label, Contact: true}}},
	}
}

// RemoveKeyboard hides the reply keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}
