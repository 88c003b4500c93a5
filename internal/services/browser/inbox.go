package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/audiens/internal/models"
)

// inboxDateFormats covers the date renderings the CRM inbox uses
var inboxDateFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"Jan 2, 2006 3:04 PM",
	"01/02/2006",
}

// ParseInboxHTML extracts the message listing from a rendered inbox page.
// Rows without a data-email-id attribute are skipped.
func ParseInboxHTML(html string) ([]models.EmailSummary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse inbox HTML: %w", err)
	}

	var summaries []models.EmailSummary
	doc.Find("table.inbox tbody tr").Each(func(i int, row *goquery.Selection) {
		emailID, ok := row.Attr("data-email-id")
		if !ok || emailID == "" {
			return
		}

		summary := models.EmailSummary{
			EmailID: emailID,
			Subject: strings.TrimSpace(row.Find("td.subject").Text()),
			Sender:  strings.TrimSpace(row.Find("td.sender").Text()),
			Read:    !row.HasClass("unread"),
		}
		summary.Date = parseInboxDate(strings.TrimSpace(row.Find("td.date").Text()))

		summaries = append(summaries, summary)
	})

	return summaries, nil
}

// ParseMessageHTML extracts a full message from a rendered message page.
// The body is kept as HTML; the email pipeline converts it to markdown.
func ParseMessageHTML(html string) (*models.EmailMessage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message HTML: %w", err)
	}

	body := doc.Find("div.message-body")
	if body.Length() == 0 {
		return nil, fmt.Errorf("message body not found in page")
	}

	bodyHTML, err := body.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to extract message body: %w", err)
	}

	message := &models.EmailMessage{
		Subject:   strings.TrimSpace(doc.Find("h1.message-subject").Text()),
		Sender:    strings.TrimSpace(doc.Find("span.message-sender").Text()),
		Recipient: strings.TrimSpace(doc.Find("span.message-recipient").Text()),
		BodyHTML:  strings.TrimSpace(bodyHTML),
	}
	message.Date = parseInboxDate(strings.TrimSpace(doc.Find("span.message-date").Text()))

	doc.Find("ul.attachments li a").Each(func(i int, link *goquery.Selection) {
		part := models.AttachmentPart{
			Filename: strings.TrimSpace(link.Text()),
		}
		if href, ok := link.Attr("href"); ok {
			part.URL = href
		}
		message.Parts = append(message.Parts, part)
	})

	return message, nil
}

func parseInboxDate(raw string) time.Time {
	for _, format := range inboxDateFormats {
		if t, err := time.Parse(format, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
