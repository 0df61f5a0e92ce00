// Package i18n renders the announcements the engine posts to a chat.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	Prompt              = "prompt"
	Correct             = "correct"
	Incorrect           = "incorrect"
	TimeUp              = "time_up"
	NotYourTurn         = "not_your_turn"
	StandingsHeader     = "standings_header"
	FinalStandings      = "final_standings"
	StandingsRow        = "standings_row"
	StandingsRowOut     = "standings_row_out"
	Eliminated          = "eliminated"
	SuddenDeathStart    = "sudden_death_start"
	SuddenDeathContinue = "sudden_death_continue"
	SuddenDeathResolved = "sudden_death_resolved"
	TourStart           = "tour_start"
	TourBreak           = "tour_break"
	Paused              = "paused"
	Resumed             = "resumed"
	GameOver            = "game_over"
	Winner              = "winner"
	Cancelled           = "cancelled"
	NotEnoughPlayers    = "not_enough_players"
	NoQuestionPool      = "no_question_pool"
	Joined              = "joined"
	Left                = "left"
	Configured          = "configured"
	PoolPreparing       = "pool_preparing"
	PoolReady           = "pool_ready"
	PoolFailed          = "pool_failed"
	Standings           = "standings"
	NoGame              = "no_game"
	CommandFailed       = "command_failed"
	UnknownCommand      = "unknown_command"
	Help                = "help"
)

var english = map[string]string{
	Prompt:              "Tour %d, round %d. %s, your question (%s):\n%s\nYou have %d seconds.",
	Correct:             "Correct, %s! +1 point.",
	Incorrect:           "Wrong, %s. The answer was: %s",
	TimeUp:              "Time is up, %s. The answer was: %s",
	NotYourTurn:         "%s, it is not your turn.",
	StandingsHeader:     "Standings after tour %d:",
	FinalStandings:      "Final standings:",
	StandingsRow:        "%d. %s: %d (correct %d, wrong %d)",
	StandingsRowOut:     "-. %s: %d (eliminated)",
	Eliminated:          "Eliminated: %s",
	SuddenDeathStart:    "Sudden death between: %s",
	SuddenDeathContinue: "Still tied. Another sudden-death round!",
	SuddenDeathResolved: "The tie is broken.",
	TourStart:           "Tour %d of %d: %s",
	TourBreak:           "The next tour starts in %d seconds.",
	Paused:              "Game paused.",
	Resumed:             "Game resumed.",
	GameOver:            "Game over!",
	Winner:              "Winner: %s with %d points!",
	Cancelled:           "The game was stopped.",
	NotEnoughPlayers:    "At least one player has to join before the game can start.",
	NoQuestionPool:      "There are no questions yet. Prepare the question pool first.",
	Joined:              "%s joined the game.",
	Left:                "%s left the game.",
	Configured:          "Tournament set up: %d tours, %d rounds each, %d seconds per answer.",
	PoolPreparing:       "Preparing questions...",
	PoolReady:           "Question pool ready: %d questions.",
	PoolFailed:          "Could not prepare questions. Try again later.",
	Standings:           "Standings:",
	NoGame:              "There is no game in this chat. Use /configure to set one up.",
	CommandFailed:       "/%s failed: %s",
	UnknownCommand:      "Unknown command /%s. Try /help.",
	Help:                "Commands: /configure topics=a,b tours=N rounds=N timeout=S lang=en mode=bank|ai eliminate=true|false, /join, /leave, /prepare, /start, /pause, /resume, /stop, /standings, /newmatch",
}

var russian = map[string]string{
	Prompt:              "Тур %d, раунд %d. %s, ваш вопрос (%s):\n%s\nНа ответ %d секунд.",
	Correct:             "Верно, %s! +1 очко.",
	Incorrect:           "Неверно, %s. Правильный ответ: %s",
	TimeUp:              "Время вышло, %s. Правильный ответ: %s",
	NotYourTurn:         "%s, сейчас не ваша очередь.",
	StandingsHeader:     "Итоги после тура %d:",
	FinalStandings:      "Итоговая таблица:",
	StandingsRow:        "%d. %s: %d (верно %d, неверно %d)",
	StandingsRowOut:     "-. %s: %d (выбыл)",
	Eliminated:          "Выбывает: %s",
	SuddenDeathStart:    "Перестрелка между: %s",
	SuddenDeathContinue: "Снова ничья. Ещё один раунд перестрелки!",
	SuddenDeathResolved: "Ничья разрешена.",
	TourStart:           "Тур %d из %d: %s",
	TourBreak:           "Следующий тур начнётся через %d секунд.",
	Paused:              "Игра на паузе.",
	Resumed:             "Игра продолжается.",
	GameOver:            "Игра окончена!",
	Winner:              "Победитель: %s, очков: %d!",
	Cancelled:           "Игра остановлена.",
	NotEnoughPlayers:    "Для начала игры нужен хотя бы один участник.",
	NoQuestionPool:      "Вопросов пока нет. Сначала подготовьте пул вопросов.",
	Joined:              "%s присоединяется к игре.",
	Left:                "%s покидает игру.",
	Configured:          "Турнир настроен: туров %d, раундов в туре %d, секунд на ответ %d.",
	PoolPreparing:       "Готовим вопросы...",
	PoolReady:           "Пул вопросов готов: %d вопросов.",
	PoolFailed:          "Не удалось подготовить вопросы. Попробуйте позже.",
	Standings:           "Таблица:",
	NoGame:              "В этом чате нет игры. Настройте её командой /configure.",
	CommandFailed:       "/%s не выполнена: %s",
	UnknownCommand:      "Неизвестная команда /%s. Попробуйте /help.",
	Help:                "Команды: /configure topics=a,b tours=N rounds=N timeout=S lang=ru mode=bank|ai eliminate=true|false, /join, /leave, /prepare, /start, /pause, /resume, /stop, /standings, /newmatch",
}

var (
	supported = []language.Tag{language.English, language.Russian}
	matcher   = language.NewMatcher(supported)
	messages  = mustBuild()
)

func mustBuild() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, table := range map[language.Tag]map[string]string{
		language.English: english,
		language.Russian: russian,
	} {
		for key, msg := range table {
			if err := b.SetString(tag, key, msg); err != nil {
				panic("i18n: " + err.Error())
			}
		}
	}
	return b
}

// Tag resolves a language code such as "ru" or "en-GB" to a supported tag.
// Unknown codes fall back to English.
func Tag(code string) language.Tag {
	_, index, confidence := matcher.Match(language.Make(code))
	if confidence == language.No {
		return language.English
	}
	return supported[index]
}

// Printer returns a printer for the given language code.
func Printer(code string) *message.Printer {
	return message.NewPrinter(Tag(code), message.Catalog(messages))
}
