package notifications

import (
	"fmt"
	"html"
	"strings"
)

func subject(r Reminder) string {
	switch r.DaysUntil {
	case 0:
		return fmt.Sprintf("Today is the last day to cancel %s", r.Name)
	case 1:
		return fmt.Sprintf("Cancel %s by tomorrow", r.Name)
	default:
		return fmt.Sprintf("%d days left to cancel %s", r.DaysUntil, r.Name)
	}
}

// RenderEmail builds the reminder email for r.
func RenderEmail(r Reminder) Email {
	lines := []string{
		fmt.Sprintf("Your cancel-by date for %s is %s.", r.Name, r.CancelByDate),
		fmt.Sprintf("It renews on %s for %s %s.", r.RenewalDate, r.Amount, r.Currency),
	}
	if r.CancellationURL != "" {
		lines = append(lines, "Cancel here: "+r.CancellationURL)
	}
	lines = append(lines, "After cancelling, record it in CancelMem and attach your confirmation as proof.")

	var b strings.Builder
	for _, line := range lines {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>")
	}
	return Email{
		To:      r.Email,
		Subject: subject(r),
		Text:    strings.Join(lines, "\n\n"),
		HTML:    b.String(),
	}
}
