package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/mentorloop/internal/lifecycle"
	"github.com/shrimpsizemoose/mentorloop/internal/models"
)

const (
	studentHelp = `Доступные команды:
/token - Получить токен для доступа к API
/xp - Мой опыт и уровень
/rewards - История начислений опыта
/challenges [course] - Открытые задания
/enroll <course> - Записаться на курс
/help - Показать это сообщение`

	mentorHelp = `Доступные команды:
/token - Получить токен для доступа к API
/challenge add <course> xp <xp> deadline <date> title <title> - Опубликовать задание
/challenge list <course> - Список заданий курса
/pending <challenge> - Работы, ждущие проверки
/approve <submission> <grade> [feedback] - Принять работу
/reject <submission> [feedback] - Вернуть на доработку
/comment <submission> <text> - Комментарий к работе
/complete <user_id> <course> - Отметить курс пройденным
/top - Рейтинг по опыту
/help - Показать это сообщение

Примеры:
/challenge add DE15 xp 150 deadline 2024-12-01 title Linked lists
/approve 0190a3c2-7d1e-7000-8000-000000000001 90 отличная работа`

	adminHelp = mentorHelp + `
/link <telegram_id> <user_id> [role] - Связать аккаунт Telegram с пользователем
/stats - Статистика платформы`

	commandTimeout = 10 * time.Second
)

type commandHandler func(ctx context.Context, msg *tgbotapi.Message, p models.Principal) error

func (b *Bot) routeStudentCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"start":      b.handleStart,
		"help":       b.handleHelp,
		"token":      b.handleToken,
		"xp":         b.handleXP,
		"rewards":    b.handleRewards,
		"enroll":     b.handleEnroll,
		"challenges": b.handleChallenges,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) routeMentorCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"challenge": b.handleChallenge,
		"pending":   b.handlePending,
		"approve":   b.handleApprove,
		"reject":    b.handleReject,
		"comment":   b.handleComment,
		"complete":  b.handleComplete,
		"top":       b.handleTop,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) routeAdminCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"link":  b.handleLink,
		"stats": b.handleStats,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) route(cmd string, p models.Principal) (commandHandler, bool) {
	if handler, ok := b.routeStudentCommands(cmd); ok {
		return handler, true
	}
	if p.IsReviewer() {
		if handler, ok := b.routeMentorCommands(cmd); ok {
			return handler, true
		}
	}
	if p.IsAdmin() {
		return b.routeAdminCommands(cmd)
	}
	return nil, false
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() || msg.From == nil {
		b.sendHelp(msg.Chat.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	p, err := b.principalFor(ctx, msg.From)
	if err != nil {
		logger.Error.Printf("Failed to resolve telegram user %d: %v", msg.From.ID, err)
		b.sendMessage(msg.Chat.ID, "Не получилось определить пользователя, попробуй позже")
		return
	}

	handler, ok := b.route(msg.Command(), p)
	if !ok {
		b.sendHelp(msg.Chat.ID)
		return
	}

	if err := handler(ctx, msg, p); err != nil {
		logger.Error.Printf("Command /%s from %s failed: %v", msg.Command(), p.ID, err)
		b.sendMessage(msg.Chat.ID, describeError(err))
	}
}

// describeError turns an engine failure into a chat reply.
func describeError(err error) string {
	var engineErr *lifecycle.Error
	if !errors.As(err, &engineErr) {
		return fmt.Sprintf("Ошибка: %v", err)
	}

	switch engineErr.Kind {
	case lifecycle.KindNotFound:
		return "Не найдено: " + engineErr.Msg
	case lifecycle.KindForbidden:
		return "Недостаточно прав"
	case lifecycle.KindExpired:
		return "Дедлайн уже прошёл"
	case lifecycle.KindConflict:
		return "Работа по этому заданию уже отправлена"
	case lifecycle.KindInvalidState:
		return "Работа уже проверена"
	case lifecycle.KindInvalidArgument:
		return fmt.Sprintf("Некорректные параметры: %v", engineErr.Err)
	default:
		return "Хранилище недоступно, попробуй позже"
	}
}

func (b *Bot) handleHelp(ctx context.Context, msg *tgbotapi.Message, p models.Principal) error {
	text := studentHelp
	switch {
	case p.IsAdmin():
		text = adminHelp
	case p.IsReviewer():
		text = mentorHelp
	}
	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) sendHelp(chatID int64) error {
	return b.sendMessage(chatID, "Используйте команды для взаимодействия с ботом. Отправьте /help для списка команд.")
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message, p models.Principal) error {
	text := "Привет! Я помогу тебе с заданиями курса.\n\n"
	if p.IsReviewer() {
		text += "Ты ментор. Используй /help для списка команд."
	} else {
		text += "Используй /token чтобы получить токен и /challenges чтобы увидеть задания."
	}

	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) handleToken(ctx context.Context, msg *tgbotapi.Message, p models.Principal) error {
	if b.tokens == nil {
		return b.sendMessage(msg.Chat.ID, "Токены отключены: API работает без авторизации")
	}

	token, isNew, err := b.tokens.FetchOrCreateToken(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	status := "Твой токен"
	if isNew {
		status = "Новый токен создан"
	}
	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("%s для %s:\n%s\n\nЗапросов: %d",
		status, p.ID, token.Token, token.RequestCount))
}

func (b *Bot) handleXP(ctx context.Context, msg *tgbotapi.Message, p models.Principal) error {
	progress, err := b.engine.Progress(ctx, p.ID)
	if err != nil {
		return err
	}

	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("⭐ Опыт: %d\n🏅 Уровень: %d\nДо следующего уровня: %d",
		progress.XP, progress.Level, progress.XPToNextLevel))
}

func (b *Bot) handleRewards(ctx context.Context, msg *tgbotapi.Message, p models.Principal) error {
	grants, err := b.engine.RewardHistory(ctx, p, p.ID)
	if err != nil {
		return err
	}
	if len(grants) == 0 {
		return b.sendMessage(msg.Chat.ID, "Начислений пока нет")
	}

	var text strings.Builder
	text.WriteString("Начисления опыта:\n\n")
	for _, g := range grants {
		fmt.Fprintf(&text, "%s  +%d XP за %s\n",
			time.Unix(g.GrantedAt, 0).UTC().Format("2006-01-02"), g.Amount, g.ChallengeID)
	}
	return b.sendMessage(msg.Chat.ID, text.String())
}

func (b *Bot) handleChallenges(ctx context.Context, msg *tgbotapi.Message, p models.Principal) error {
	filter := lifecycle.ChallengeFilter{Bucket: lifecycle.BucketActive}
	if args := strings.Fields(msg.CommandArguments()); len(args) > 0 {
		filter.CourseID = args[0]
	}

	board, err := b.engine.ListChallenges(ctx, p, filter)
	if err != nil {
		return err
	}
	if len(board) == 0 {
		return b.sendMessage(msg.Chat.ID, "Открытых заданий нет")
	}

	var text strings.Builder
	text.WriteString("Открытые задания:\n\n")
	for _, c := range board {
		text.WriteString(formatChallenge(&c.Challenge))
	}
	return b.sendMessage(msg.Chat.ID, text.String())
}

func formatChallenge(c *models.Challenge) string {
	return fmt.Sprintf("📝 %s [%s] (опыт: %d)\n🆔 %s\n📅 %s UTC\n\n",
		c.Title,
		c.CourseID,
		c.XPReward,
		c.ID,
		time.Unix(c.DueAt, 0).UTC().Format("2006-Jan-02 Mon 15:04"),
	)
}

func (b *Bot) handleChallenge(ctx context.Context, msg *tgbotapi.Message, p models.Principal) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return b.sendMessage(msg.Chat.ID, "Использование:\n"+
			"/challenge add <course> xp <xp> deadline <date> title <title> - Опубликовать задание\n"+
			"/challenge list <course> - Список заданий курса")
	}

	switch args[0] {
	case "add":
		in, err := parseChallengeAdd(args[1:])
		if err != nil {
			return err
		}
		challenge, err := b.engine.PublishChallenge(ctx, p, in)
		if err != nil {
			return err
		}
		return b.sendMessage(msg.Chat.ID, "✅ Задание опубликовано:\n"+formatChallenge(challenge))
	case "list":
		if len(args) < 2 {
			return fmt.Errorf("укажи курс: /challenge list DE15")
		}
		board, err := b.engine.ListChallenges(ctx, p, lifecycle.ChallengeFilter{CourseID: args[1]})
		if err != nil {
			return err
		}
		if len(board) == 0 {
			return b.sendMessage(msg.Chat.ID, "Задания не найдены")
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Задания курса %s:\n\n", args[1]))
		for _, c := range board {
			text.WriteString(formatChallenge(&c.Challenge))
			text.WriteString(fmt.Sprintf("Отправлено работ: %d\n\n", c.TotalSubmissions))
		}
		return b.sendMessage(msg.Chat.ID, text.String())
	default:
		return fmt.Errorf("неизвестная подкоманда: %s", args[0])
	}
}

// parseChallengeAdd reads "<course> xp <xp> deadline <date> [title <words...>]".
// title swallows the rest of the line.
func parseChallengeAdd(args []string) (models.NewChallenge, error) {
	var in models.NewChallenge
	if len(args) < 1 {
		return in, fmt.Errorf("использование: add <course> xp <xp> deadline <date> title <title>")
	}
	in.CourseID = args[0]

	for i := 1; i < len(args); i += 2 {
		if i+1 >= len(args) {
			return in, fmt.Errorf("пропущено значение для %s", args[i])
		}

		switch args[i] {
		case "xp":
			xp, err := strconv.ParseInt(args[i+1], 10, 64)
			if err != nil {
				return in, fmt.Errorf("некорректный опыт: %v", err)
			}
			in.XPReward = xp
		case "deadline":
			deadline, err := time.Parse("2006-01-02", args[i+1])
			if err != nil {
				return in, fmt.Errorf("некорректная дата (используйте YYYY-MM-DD): %v", err)
			}
			in.DueAt = time.Date(
				deadline.Year(),
				deadline.Month(),
				deadline.Day(),
				23, 59, 59, 0,
				time.UTC,
			).Unix()
		case "title":
			in.Title = strings.Join(args[i+1:], " ")
			return in, nil
		default:
			return in, fmt.Errorf("неизвестный параметр: %s", args[i])
		}
	}
	return in, nil
}

func (b *Bot) handlePending(ctx context.Context, msg *tgbotapi.Message, p models.Principal) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return fmt.Errorf("укажи задание: /pending <challenge>")
	}

	pending, err := b.engine.ListPendingReviews(ctx, p, args[0])
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return b.sendMessage(msg.Chat.ID, "Все работы проверены 🎉")
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("Ждут проверки (%d):\n\n", len(pending)))
	for _, s := range pending {
		text.WriteString(fmt.Sprintf("👉🏻 %s от %s\n%s\n\n", s.ID, s.UserID, preview(s.Content, 200)))
	}
	return b.sendMessage(msg.Chat.ID, text.String())
}

func preview(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

// parseApprove reads "<submission> <grade> [feedback...]".
func parseApprove(args []string) (string, models.ReviewInput, error) {
	in := models.ReviewInput{Decision: models.StatusApproved}
	if len(args) < 2 {
		return "", in, fmt.Errorf("использование: /approve <submission> <grade> [feedback]")
	}

	grade, err := strconv.Atoi(args[1])
	if err != nil {
		return "", in, fmt.Errorf("некорректная оценка: %v", err)
	}
	in.Grade = &grade
	in.Feedback = strings.Join(args[2:], " ")
	return args[0], in, nil
}

// parseReject reads "<submission> [feedback...]".
func parseReject(args []string) (string, models.ReviewInput, error) {
	in := models.ReviewInput{Decision: models.StatusRejected}
	if len(args) < 1 {
		return "", in, fmt.Errorf("использование: /reject <submission> [feedback]")
	}
	in.Feedback = strings.Join(args[1:], " ")
	return args[0], in, nil
}

func (b *Bot) handleApprove(ctx context.Context, msg *tgbotapi.Message, p models.Principal) error {
	id, in, err := parseApprove(strings.Fields(msg.CommandArguments()))
	if err != nil {
		return err
	}
	return b.review(ctx, msg.Chat.ID, p, id, in)
}

func (b *Bot) handleReject(ctx context.Context, msg *tgbotapi.Message, p models.Principal) error {
	id, in, err := parseReject(strings.Fields(msg.CommandArguments()))
	if err != nil {
		return err
	}
	return b.review(ctx, msg.Chat.ID, p, id, in)
}

func (b *Bot) review(ctx context.Context, chatID int64, p models.Principal, id string, in models.ReviewInput) error {
	submission, err := b.engine.Review(ctx, p, id, in)
	if err != nil {
		return err
	}

	if submission.Status == models.StatusApproved {
		progress, err := b.engine.Progress(ctx, submission.UserID)
		if err != nil {
			return err
		}
		return b.sendMessage(chatID, fmt.Sprintf("✅ Работа %s принята (оценка %d).\n%s: %d опыта, уровень %d",
			submission.ID, *submission.Grade, submission.UserID, progress.XP, progress.Level))
	}
	return b.sendMessage(chatID, fmt.Sprintf("↩️ Работа %s возвращена на доработку", submission.ID))
}

func (b *Bot) handleComment(ctx context.Context, msg *tgbotapi.Message, p models.Principal) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		return fmt.Errorf("использование: /comment <submission> <text>")
	}

	comment, err := b.engine.AddComment(ctx, p, args[0], models.CommentInput{Body: strings.Join(args[1:], " ")})
	if err != nil {
		return err
	}
	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("💬 Комментарий %s добавлен", comment.ID))
}

func (b *Bot) handleEnroll(ctx context.Context, msg *tgbotapi.Message, p models.Principal) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 1 {
		return fmt.Errorf("использование: /enroll <course>")
	}

	enrollment, err := b.engine.Enroll(ctx, p, args[0])
	if err != nil {
		return err
	}
	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("📚 Ты записан на курс %s", enrollment.CourseID))
}

func (b *Bot) handleComplete(ctx context.Context, msg *tgbotapi.Message, p models.Principal) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		return fmt.Errorf("использование: /complete <user_id> <course>")
	}

	enrollment, err := b.engine.CompleteEnrollment(ctx, p, args[0], args[1])
	if err != nil {
		return err
	}
	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("🎓 Курс %s пройден: %s", enrollment.CourseID, enrollment.UserID))
}

func (b *Bot) handleTop(ctx context.Context, msg *tgbotapi.Message, p models.Principal) error {
	board, err := b.engine.Leaderboard(ctx, 0)
	if err != nil {
		return err
	}
	if len(board) == 0 {
		return b.sendMessage(msg.Chat.ID, "Пока никто не набрал опыта")
	}

	var text strings.Builder
	text.WriteString("Рейтинг:\n\n")
	for i, u := range board {
		text.WriteString(fmt.Sprintf("%d. %s: %d опыта (уровень %d)\n", i+1, u.UserID, u.XP, u.Level))
	}
	return b.sendMessage(msg.Chat.ID, text.String())
}

// parseLink reads "<telegram_id> <user_id> [role]".
func parseLink(args []string) (int64, models.Principal, error) {
	if len(args) < 2 {
		return 0, models.Principal{}, fmt.Errorf("использование: /link <telegram_id> <user_id> [role]")
	}

	telegramID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, models.Principal{}, fmt.Errorf("некорректный telegram id: %v", err)
	}

	p := models.Principal{ID: args[1], Role: models.RoleStudent}
	if len(args) > 2 {
		p.Role = models.Role(strings.ToLower(args[2]))
		if !p.Role.Valid() {
			return 0, models.Principal{}, fmt.Errorf("неизвестная роль: %s", args[2])
		}
	}
	return telegramID, p, nil
}

func (b *Bot) handleLink(ctx context.Context, msg *tgbotapi.Message, p models.Principal) error {
	if b.tokens == nil {
		return fmt.Errorf("связка аккаунтов требует redis (auth.enabled)")
	}

	telegramID, linked, err := parseLink(strings.Fields(msg.CommandArguments()))
	if err != nil {
		return err
	}
	if err := b.tokens.LinkTelegram(ctx, telegramID, linked); err != nil {
		return fmt.Errorf("failed to link telegram account: %w", err)
	}

	logger.Info.Printf("Telegram %d linked to %s (%s) by %s", telegramID, linked.ID, linked.Role, p.ID)
	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("🔗 %d теперь действует как %s (%s)", telegramID, linked.ID, linked.Role))
}

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message, p models.Principal) error {
	stats, err := b.engine.AdminStats(ctx, p)
	if err != nil {
		return err
	}

	return b.sendMessage(msg.Chat.ID, fmt.Sprintf(
		"👥 Пользователей: %d (активных: %d)\n📚 Курсов: %d\n🎓 Записей на курсы: %d\n📝 Работ: %d\n"+
			"✅ Завершаемость: %d%%\n📈 Рост за месяц: %d%%",
		stats.TotalUsers, stats.ActiveUsers,
		stats.TotalCourses,
		stats.TotalEnrollments,
		stats.TotalSubmissions,
		stats.CompletionRate,
		stats.MonthlyGrowth,
	))
}
