package export

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/cancelmem/cancelmem-backend/internal/deadline"
	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
)

const productID = "-//CancelMem//Deadlines//EN"

// ErrNoDeadlines is returned when no subscription has a calendar-worthy
// deadline. A VCALENDAR needs at least one component.
var ErrNoDeadlines = errors.New("no cancel-by deadlines to export")

// reminderOffsets lists the reminder flags as days before the deadline.
var reminderOffsets = []int{7, 3, 1, 0}

// ICalendar builds one all-day event per live subscription with a real
// cancel-by deadline, with an alarm at 09:00 for every enabled reminder.
func ICalendar(subs []models.Subscription, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText("X-WR-CALNAME", "CancelMem deadlines")

	for i := range subs {
		sub := &subs[i]
		if !sub.Status.IsLive() || !deadline.HasDeadline(sub.CancelByDate) {
			continue
		}
		cal.Children = append(cal.Children, deadlineEvent(sub, stamp).Component)
	}
	return cal
}

// WriteICalendar encodes the deadline calendar to w.
func WriteICalendar(w io.Writer, subs []models.Subscription, stamp time.Time) error {
	cal := ICalendar(subs, stamp)
	if len(cal.Children) == 0 {
		return ErrNoDeadlines
	}
	return ical.NewEncoder(w).Encode(cal)
}

func deadlineEvent(sub *models.Subscription, stamp time.Time) *ical.Event {
	start := sub.CancelByDate.Midnight(time.UTC)

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, fmt.Sprintf("%s-%s@cancelmem", sub.ID, sub.CancelByDate))
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	event.Props.SetDate(ical.PropDateTimeStart, start)
	event.Props.SetDate(ical.PropDateTimeEnd, start.AddDate(0, 0, 1))
	event.Props.SetText(ical.PropSummary, fmt.Sprintf("Cancel %s", sub.Name))
	event.Props.SetText(ical.PropDescription, describe(sub))
	if sub.CancellationURL != nil {
		event.Props.SetText(ical.PropURL, *sub.CancellationURL)
	}

	for _, days := range reminderOffsets {
		if !sub.Reminders.Enabled(days) {
			continue
		}
		alarm := ical.NewComponent(ical.CompAlarm)
		alarm.Props.SetText(ical.PropAction, "DISPLAY")
		alarm.Props.SetText(ical.PropDescription, reminderText(sub.Name, days))
		trigger := ical.NewProp(ical.PropTrigger)
		trigger.Value = triggerDuration(days)
		alarm.Props.Set(trigger)
		event.Children = append(event.Children, alarm)
	}
	return event
}

// triggerDuration places the alarm at 09:00 local on the reminder day,
// relative to the all-day event's midnight start.
func triggerDuration(daysBefore int) string {
	if daysBefore == 0 {
		return "PT9H"
	}
	if daysBefore == 1 {
		return "-PT15H"
	}
	return fmt.Sprintf("-P%dDT15H", daysBefore-1)
}

func reminderText(name string, daysBefore int) string {
	switch daysBefore {
	case 0:
		return fmt.Sprintf("Last day to cancel %s", name)
	case 1:
		return fmt.Sprintf("Cancel %s by tomorrow", name)
	default:
		return fmt.Sprintf("Cancel %s within %d days", name, daysBefore)
	}
}

func describe(sub *models.Subscription) string {
	desc := fmt.Sprintf("%s %s renews on %s.", sub.Amount.StringFixed(2), sub.Currency, sub.RenewalDate)
	if sub.CancellationSteps != nil {
		desc += "\n" + *sub.CancellationSteps
	}
	if sub.SupportContact != nil {
		desc += "\nSupport: " + *sub.SupportContact
	}
	return desc
}
