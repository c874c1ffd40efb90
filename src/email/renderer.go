package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"
	"time"

	"ir-stock-service/src/logger"
	"ir-stock-service/src/models"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

const notAvailable = "n/a"

// RenderOptions controls personalisation.
type RenderOptions struct {
	// MergeTags leaves Mailchimp merge tags in the greeting for per-recipient
	// substitution. Without it the greeting uses Recipient directly.
	MergeTags bool
	Recipient *models.MSubscriber
	Date      time.Time
}

// Renderer turns a quote into the EOD summary email.
type Renderer struct {
	CompanyName   string
	SubjectPrefix string
	WebsiteURL    string
	Location      *time.Location
	Logger        *logger.Logger

	tmpl      *template.Template
	converter *md.Converter
}

type templateData struct {
	Subject       string
	CompanyName   string
	Symbol        string
	Date          string
	Price         string
	Open          string
	High          string
	Low           string
	PreviousClose string
	Change        string
	ChangePercent string
	Direction     string
	Volume        string
	LastUpdated   string
	WebsiteURL    string
	MergeTags     bool
	FirstName     string
}

// -----------------------------------------------------------------------------

func NewRenderer(cfg *models.MEmailConfig, loc *time.Location, log *logger.Logger) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/eod_summary.html")
	if err != nil {
		return nil, fmt.Errorf("parse email template: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{
		CompanyName:   cfg.CompanyName,
		SubjectPrefix: cfg.SubjectPrefix,
		WebsiteURL:    cfg.WebsiteURL,
		Location:      loc,
		Logger:        log,
		tmpl:          tmpl,
		converter:     md.NewConverter("", true, nil),
	}, nil
}

// -----------------------------------------------------------------------------

// Render produces the subject, HTML body and a plain-text alternative.
func (r *Renderer) Render(q *models.MQuote, opts RenderOptions) (models.MRenderedEmail, error) {
	if q == nil {
		return models.MRenderedEmail{}, fmt.Errorf("render email: nil quote")
	}

	date := opts.Date
	if date.IsZero() {
		date = q.LastUpdated
	}
	date = date.In(r.Location)

	subject := r.Subject(q, date)
	data := templateData{
		Subject:       subject,
		CompanyName:   r.CompanyName,
		Symbol:        q.Symbol,
		Date:          date.Format("Monday, January 2, 2006"),
		Price:         money(q.Price),
		Open:          optionalMoney(q.Open),
		High:          money(q.High),
		Low:           money(q.Low),
		PreviousClose: optionalMoney(q.PreviousClose),
		Change:        signed(q.Change),
		ChangePercent: signed(q.ChangePercent),
		Direction:     direction(q.Change),
		Volume:        humanize.Comma(q.Volume),
		LastUpdated:   q.LastUpdated.In(r.Location).Format("Jan 2, 2006 3:04 PM MST"),
		WebsiteURL:    r.WebsiteURL,
		MergeTags:     opts.MergeTags,
	}
	if opts.Recipient != nil {
		data.FirstName = strings.TrimSpace(opts.Recipient.FirstName)
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return models.MRenderedEmail{}, fmt.Errorf("render email template: %w", err)
	}
	html := buf.String()

	text, err := r.converter.ConvertString(html)
	if err != nil {
		if r.Logger != nil {
			r.Logger.Warning("Plain-text conversion failed, sending HTML only: %v", err)
		}
		text = ""
	}

	return models.MRenderedEmail{Subject: subject, HTML: html, Text: text}, nil
}

// -----------------------------------------------------------------------------

func (r *Renderer) Subject(q *models.MQuote, date time.Time) string {
	subject := fmt.Sprintf("%s closed at $%s (%s%%) on %s", q.Symbol, money(q.Price), signed(q.ChangePercent), date.Format("Jan 2, 2006"))
	if r.SubjectPrefix != "" {
		subject = r.SubjectPrefix + " " + subject
	}
	return subject
}

// -----------------------------------------------------------------------------
// Formatting
// -----------------------------------------------------------------------------

// money formats to two decimals, rounding half away from zero, with thousands
// separators.
func money(v float64) string {
	fixed := decimal.NewFromFloat(math.Abs(v)).StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	n, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return fixed
	}
	out := humanize.Comma(n) + "." + frac
	if v < 0 && out != "0.00" {
		return "-" + out
	}
	return out
}

func optionalMoney(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return "$" + money(*v)
}

func signed(v float64) string {
	out := money(v)
	if v > 0 && out != "0.00" {
		return "+" + out
	}
	return out
}

func direction(change float64) string {
	switch {
	case change > 0:
		return "▲"
	case change < 0:
		return "▼"
	default:
		return ""
	}
}
