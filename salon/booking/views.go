package booking

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// AnyMaster is the master payload meaning "whoever is free".
const AnyMaster = "*"

const (
	textMainMenu      = "Выберите пункт меню:"
	textChooseService = "Выбери услугу:"
	textChooseMaster  = "Выбери Мастера:"
	textChooseDate    = "Выбери доступную дату:\n ✅ - есть свободное время"
	textChooseTime    = "Выберите время:"
	textNoDates       = "Для выбранного мастера нет доступных дат!\nПопробуй другого мастера😉"
	textNoTimes       = "Для выбранного даты нет доступного времени!\nПопробуй другую дату😉"
	textCheckSummary  = "Проверьте данные записи:\n\n"
	textBooked        = "Успешно записал вас!\n\n"
	textConfirmedNote = "Ваша запись подтверждена! 👍"
	textSlotTaken     = "К сожалению, выбранное время уже забронировано.\nПопробуйте выбрать другое время."
	textNoBookings    = "Актуальных записей не найдено 🔍"
	textUpcoming      = "Ближайшие записи:\n\n"
	textCancelWhich   = "Какую запись вы хотите отменить?🙈"
	textNothingCancel = "Отменять пока нечего 🤷"
	textCancelSure    = "Точно отменить?"
	textCancelled     = "Запись отменена!"
	textCancelFailed  = "Не смог отменить запись."
	textTryAgain      = "Что-то пошло не так, попробуйте ещё раз 🙏"

	labelBook       = "Записаться 📝"
	labelMine       = "Мои записи 📋"
	labelCancel     = "Отменить запись ❌"
	labelAnyMaster  = "Любой мастер"
	labelApprove    = "Подтверждаю"
	labelBack       = "Назад"
	labelToMenu     = "В главное меню"
	labelAnyInTexts = "Любой"
)

func menuRow() []Option {
	return []Option{{Text: labelToMenu, Key: string(ActMenu)}}
}

func menuView() View {
	return View{
		Text: textMainMenu,
		Rows: [][]Option{
			{{Text: labelBook, Key: string(ActBook)}},
			{{Text: labelMine, Key: string(ActMyBookings)}},
			{{Text: labelCancel, Key: string(ActCancelList)}},
		},
	}
}

func servicesView(catalog map[string][]string) View {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	slices.Sort(names)

	rows := make([][]Option, 0, len(names)+1)
	for _, name := range names {
		rows = append(rows, []Option{{Text: name, Key: string(ActSelectService), Payload: name}})
	}
	rows = append(rows, menuRow())
	return View{Text: textChooseService, Rows: rows}
}

func mastersView(masters []string) View {
	rows := make([][]Option, 0, len(masters)+2)
	for _, m := range masters {
		rows = append(rows, []Option{{Text: m, Key: string(ActSelectMaster), Payload: m}})
	}
	rows = append(rows,
		[]Option{{Text: labelAnyMaster, Key: string(ActSelectMaster), Payload: AnyMaster}},
		[]Option{{Text: labelBack, Key: string(ActBook)}, menuRow()[0]},
	)
	return View{Text: textChooseMaster, Rows: rows}
}

func backToServiceRow(service string) []Option {
	return []Option{
		{Text: labelBack, Key: string(ActSelectService), Payload: service},
		menuRow()[0],
	}
}

func backToMasterRow(master string) []Option {
	if master == "" {
		master = AnyMaster
	}
	return []Option{
		{Text: labelBack, Key: string(ActSelectMaster), Payload: master},
		menuRow()[0],
	}
}

func noDatesView(service string) View {
	return View{Text: textNoDates, Rows: [][]Option{backToServiceRow(service)}}
}

func noTimesView(master string) View {
	return View{Text: textNoTimes, Rows: [][]Option{backToMasterRow(master)}}
}

// timesView lists free times, three per row.
func timesView(free []string, master string) View {
	const perRow = 3
	var rows [][]Option
	for chunk := range slices.Chunk(free, perRow) {
		row := make([]Option, 0, len(chunk))
		for _, t := range chunk {
			row = append(row, Option{Text: t, Key: string(ActSelectTime), Payload: t})
		}
		rows = append(rows, row)
	}
	rows = append(rows, backToMasterRow(master))
	return View{Text: textChooseTime, Rows: rows}
}

func describe(b Booking) string {
	master := b.Master
	if master == "" {
		master = labelAnyInTexts
	}
	return fmt.Sprintf("🛎️ Услуга: %s\n👤 Мастер: %s\n📅 Дата: %s\n🕓 Время: %s",
		b.Service, master, b.Date, b.Time)
}

func summaryView(b Booking) View {
	return View{
		Text: textCheckSummary + describe(b),
		Rows: [][]Option{
			{{Text: labelApprove, Key: string(ActConfirm)}},
			backToMasterRow(b.Master),
		},
	}
}

func bookedView(b Booking) View {
	return View{Text: textBooked + describe(b), Rows: [][]Option{menuRow()}}
}

func bookingsView(list []Booking) View {
	if len(list) == 0 {
		return View{Text: textNoBookings}
	}
	var sb strings.Builder
	sb.WriteString(textUpcoming)
	for i, b := range list {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(describe(b))
	}
	return View{Text: sb.String()}
}

func cancelListView(list []Booking) View {
	rows := make([][]Option, 0, len(list)+1)
	for i, b := range list {
		label := strings.Join([]string{b.Date, b.Time, b.Service}, " - ")
		rows = append(rows, []Option{{Text: label, Key: string(ActCancelPick), Payload: strconv.Itoa(i)}})
	}
	rows = append(rows, menuRow())
	return View{Text: textCancelWhich, Rows: rows}
}

func askCancelView(b Booking) View {
	return View{
		Text: textCancelSure + "\n\n" + describe(b),
		Rows: [][]Option{
			{{Text: labelApprove, Key: string(ActCancelApprove)}},
			menuRow(),
		},
	}
}
