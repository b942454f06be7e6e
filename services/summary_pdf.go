package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/cppla/moodbloom/models"
)

const (
	// Fallback texts used when the AI service cannot produce a summary.
	DefaultInsights        = "Weekly insights not available."
	DefaultRecommendations = "Weekly recommendations not available."
)

// SummaryDocument is everything rendered into a weekly summary PDF.
type SummaryDocument struct {
	GeneratedAt     time.Time
	CheckIns        []models.CheckIn
	Insights        string
	Recommendations string
}

// SummaryFileName returns the stored file name of a summary.
func SummaryFileName(userID uint, at time.Time) string {
	return fmt.Sprintf("summary-%d-%d.pdf", userID, at.UnixMilli())
}

// WriteSummaryPDF renders doc to path, creating parent directories.
func WriteSummaryPDF(path string, doc SummaryDocument) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create summary dir: %w", err)
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(50, 50, 50)
	pdf.SetAutoPageBreak(true, 50)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	heading := func(size float64, text string) {
		pdf.SetFont("Helvetica", "B", size)
		pdf.MultiCell(0, size*1.3, tr(text), "", "L", false)
	}
	body := func(text string) {
		pdf.SetFont("Helvetica", "", 12)
		pdf.MultiCell(0, 16, tr(text), "", "L", false)
	}

	pdf.SetFont("Helvetica", "B", 25)
	pdf.CellFormat(0, 32, tr("MoodBloom Weekly Summary"), "", 1, "C", false, 0, "")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 16, tr("Generated on "+doc.GeneratedAt.Format("January 2, 2006")), "", 1, "C", false, 0, "")
	pdf.Ln(12)

	heading(18, "Your Week in Moods")
	pdf.Ln(6)
	for _, ci := range doc.CheckIns {
		heading(14, ci.CreatedAt.Format("Monday, January 2"))
		body("Mood: " + ci.Mood)
		body(fmt.Sprintf("Mood Score: %d/10", ci.MoodScore))
		body(fmt.Sprintf("Energy Level: %d/10", ci.EnergyLevel))
		body("Emotional State: " + ci.EmotionalState)
		body("Detected Emotions: " + strings.Join(ci.DetectedEmotions, ", "))
		pdf.Ln(12)
	}

	pdf.Ln(12)
	heading(18, "Insights")
	pdf.Ln(6)
	body(orDefault(doc.Insights, DefaultInsights))

	pdf.Ln(12)
	heading(18, "Recommendations")
	pdf.Ln(6)
	body(orDefault(doc.Recommendations, DefaultRecommendations))

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write summary pdf: %w", err)
	}
	return nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
