package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/signintech/gopdf"

	"medical-triage/internal/platform/logging"
	"medical-triage/internal/story"
	"medical-triage/internal/symptom"
)

type TelegramClient interface {
	SendMessage(chatID int64, text string) error
	SendDocument(chatID int64, fileData []byte, fileName string) error
}

// DejaVuSans covers Cyrillic; these are its usual Debian and Alpine locations.
var defaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

// Service renders archived stories as PDF and sends them to the doctor chat.
type Service struct {
	tgClient     TelegramClient
	doctorChatID int64
	fontPaths    []string
}

// NewService creates the report sender. fontPath, when set, is tried before
// the default DejaVu locations.
func NewService(tg TelegramClient, doctorChatID int64, fontPath string) *Service {
	paths := defaultFontPaths
	if fontPath != "" {
		paths = append([]string{fontPath}, defaultFontPaths...)
	}
	return &Service{
		tgClient:     tg,
		doctorChatID: doctorChatID,
		fontPaths:    paths,
	}
}

// SendStoryReport sends the story as a PDF document. If the PDF cannot be
// rendered the same content goes out as a plain text message.
func (s *Service) SendStoryReport(ctx context.Context, st story.Story) error {
	log := logging.FromContext(ctx).With("dialog_id", st.DialogID, "chat_id", s.doctorChatID)
	sections := buildSections(st)

	pdfData, err := s.render(sections)
	if err != nil {
		log.Warn("pdf report unavailable, sending text", "error", err)
		if err := s.tgClient.SendMessage(s.doctorChatID, plainText(sections)); err != nil {
			return fmt.Errorf("send text report: %w", err)
		}
		return nil
	}

	fileName := fmt.Sprintf("story_%s.pdf", st.DialogID)
	if err := s.tgClient.SendDocument(s.doctorChatID, pdfData, fileName); err != nil {
		return fmt.Errorf("send pdf report: %w", err)
	}
	log.Info("story report sent", "bytes", len(pdfData))
	return nil
}

type section struct {
	title string
	lines []string
}

func buildSections(st story.Story) []section {
	header := section{
		title: "Отчет о диалоге",
		lines: []string{
			fmt.Sprintf("Дата: %s", st.CreatedAt.Format("02.01.2006 15:04")),
			fmt.Sprintf("ID диалога: %s", st.DialogID),
			fmt.Sprintf("ID пользователя: %s", st.UserID),
		},
	}

	symptoms := section{title: "Симптомы:"}
	for _, o := range st.Instances {
		symptoms.lines = append(symptoms.lines, "- "+describeObservation(o))
	}
	if len(symptoms.lines) == 0 {
		symptoms.lines = []string{"- Симптомы не выявлены."}
	}

	ranking := section{title: "Вероятные заболевания:"}
	for _, e := range st.TopRanking {
		ranking.lines = append(ranking.lines, fmt.Sprintf("- %s: %d%%", e.Disease, e.Percentage))
	}
	if len(ranking.lines) == 0 {
		ranking.lines = []string{"- Нет подходящих заболеваний."}
	}

	answers := section{title: "Вопросы и ответы:"}
	for _, q := range st.QuestionHistory {
		answers.lines = append(answers.lines, fmt.Sprintf("- %s: %s", q.Text, yesNo(q.Answer)))
	}
	if len(answers.lines) == 0 {
		answers.lines = []string{"- Вопросы не задавались."}
	}

	stats := section{
		title: "Статистика:",
		lines: []string{fmt.Sprintf("Вопросов: %d, сценариев: %d",
			st.Statistics.QuestionCount, st.Statistics.ScenarioCount)},
	}

	return []section{header, symptoms, ranking, answers, stats}
}

func describeObservation(o symptom.Observation) string {
	if !o.Presence {
		return o.Key + ": нет"
	}
	var details []string
	if o.Severity != nil {
		details = append(details, fmt.Sprintf("тяжесть %d", *o.Severity))
	}
	if o.DurationDays != nil {
		details = append(details, fmt.Sprintf("%d дн.", *o.DurationDays))
	}
	if len(details) == 0 {
		return o.Key + ": есть"
	}
	return fmt.Sprintf("%s: есть (%s)", o.Key, strings.Join(details, ", "))
}

func yesNo(v bool) string {
	if v {
		return "да"
	}
	return "нет"
}

func plainText(sections []section) string {
	var b strings.Builder
	for i, sec := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(sec.title)
		b.WriteString("\n")
		for _, l := range sec.lines {
			b.WriteString(l)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (s *Service) loadFont(pdf *gopdf.GoPdf) error {
	var lastErr error
	for _, path := range s.fontPaths {
		err := pdf.AddTTFFont("DejaVu", path)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to load font for PDF, last error: %w", lastErr)
}

func (s *Service) render(sections []section) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := s.loadFont(&pdf); err != nil {
		return nil, err
	}

	for i, sec := range sections {
		size := 14.0
		if i == 0 {
			size = 20
		}
		if err := pdf.SetFont("DejaVu", "", size); err != nil {
			return nil, err
		}
		pdf.Cell(nil, sec.title)
		pdf.Br(20)

		if err := pdf.SetFont("DejaVu", "", 11); err != nil {
			return nil, err
		}
		for _, line := range sec.lines {
			wrapped, err := pdf.SplitText(line, 500)
			if err != nil {
				wrapped = []string{line}
			}
			for _, l := range wrapped {
				pdf.Cell(nil, l)
				pdf.Br(14)
			}
		}
		pdf.Br(10)
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}
