package calcom

// EventType is a bookable Cal.com event type.
type EventType struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Slug   string `json:"slug,omitempty"`
	Length int    `json:"length,omitempty"`
}

// Attendee is the person a booking is made for.
type Attendee struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	TimeZone string `json:"timeZone"`
}

// BookingRequest is the payload for POST /bookings.
type BookingRequest struct {
	EventTypeID int               `json:"eventTypeId"`
	Start       string            `json:"start"`
	End         string            `json:"end"`
	Attendee    Attendee          `json:"attendee"`
	Metadata    map[string]string `json:"metadata"`
}

// Booking is a Cal.com booking.
type Booking struct {
	ID          int    `json:"id"`
	UID         string `json:"uid,omitempty"`
	Title       string `json:"title,omitempty"`
	StartTime   string `json:"startTime,omitempty"`
	EndTime     string `json:"endTime,omitempty"`
	Status      string `json:"status,omitempty"`
	EventTypeID int    `json:"eventTypeId,omitempty"`
}

// Slot is an availability entry. Cal.com returns either a single "time" or a
// start/end pair depending on API version.
type Slot struct {
	Time  string `json:"time,omitempty"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
	Date  string `json:"date,omitempty"`
}

// Profile is the authenticated Cal.com user.
type Profile struct {
	ID       int    `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}
