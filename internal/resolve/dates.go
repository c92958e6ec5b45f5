package resolve

import (
	"time"

	"github.com/a3tai/proposal-builder/internal/fields"
)

// DateLayout renders dates as "January 02, 2006"
const DateLayout = "January 02, 2006"

// closingDays is the gap between the auction end and closing
const closingDays = 30

// Dates holds the business dates derived from a run date and a lead time
type Dates struct {
	Proposal           time.Time
	AuctionEnd         time.Time
	Contract           time.Time
	AdvertisingStart   time.Time
	Closing            time.Time
	AcceptanceDeadline time.Time
}

// NextWeekday returns the first day strictly after from that falls on wd.
// When from is already wd the result is one week later.
func NextWeekday(from time.Time, wd time.Weekday) time.Time {
	days := int(wd) - int(from.Weekday())
	if days <= 0 {
		days += 7
	}
	return from.AddDate(0, 0, days)
}

// BusinessDates computes the proposal dates for run date today and an
// auction weeks weeks out.
func BusinessDates(today time.Time, weeks int) Dates {
	t := midnight(today)

	auction := NextWeekday(t.AddDate(0, 0, 7*weeks), time.Thursday)

	closing := auction.AddDate(0, 0, closingDays)
	switch closing.Weekday() {
	case time.Saturday:
		closing = closing.AddDate(0, 0, 2)
	case time.Sunday:
		closing = closing.AddDate(0, 0, 1)
	}

	return Dates{
		Proposal:           t,
		AuctionEnd:         auction,
		Contract:           NextWeekday(t, time.Friday).AddDate(0, 0, 7),
		AdvertisingStart:   NextWeekday(t, time.Monday).AddDate(0, 0, 7),
		Closing:            closing,
		AcceptanceDeadline: NextWeekday(t, time.Friday),
	}
}

// Fields returns the dates keyed by field name and formatted for display
func (d Dates) Fields() map[string]string {
	return map[string]string{
		fields.ProposalDate:           d.Proposal.Format(DateLayout),
		fields.AuctionEndDate:         d.AuctionEnd.Format(DateLayout),
		fields.ContractDate:           d.Contract.Format(DateLayout),
		fields.AdvertisingStartDate:   d.AdvertisingStart.Format(DateLayout),
		fields.ClosingDate:            d.Closing.Format(DateLayout),
		fields.AcceptanceDeadlineDate: d.AcceptanceDeadline.Format(DateLayout),
	}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
