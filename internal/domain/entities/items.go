package entities

import "time"

// TimeSlot is an offer of working time, e.g. for on-site orders.
type TimeSlot struct {
	ID                 int64        `json:"id" db:"id"`
	Slug               string       `json:"slug" db:"slug"`
	Category           Category     `json:"category" db:"category"`
	CardTemplate       CardTemplate `json:"card_template" db:"card_template"`
	Mode               TaskMode     `json:"mode" db:"mode"`
	DateStart          time.Time    `json:"date_start" db:"date_start"`
	DateEnd            time.Time    `json:"date_end" db:"date_end"`
	TimeStart          string       `json:"time_start" db:"time_start"`
	TimeEnd            string       `json:"time_end" db:"time_end"`
	ReservedTimeOnRoad int          `json:"reserved_time_on_road" db:"reserved_time_on_road"`
	StartLocation      string       `json:"start_location" db:"start_location"`
	CostPerHourCents   int64        `json:"cost_of_1_hour_of_work" db:"cost_per_hour_cents"`
	MinimumTimeSlot    string       `json:"minimum_time_slot" db:"minimum_time_slot"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at" db:"updated_at"`
}

// JobSearch tracks one job application.
type JobSearch struct {
	ID           int64        `json:"id" db:"id"`
	Slug         string       `json:"slug" db:"slug"`
	Category     Category     `json:"category" db:"category"`
	CardTemplate CardTemplate `json:"card_template" db:"card_template"`
	Mode         TaskMode     `json:"mode" db:"mode"`
	Title        string       `json:"title" db:"title"`
	CompanyName  string       `json:"company_name" db:"company_name"`
	VacancyURL   *string      `json:"vacancy_url" db:"vacancy_url"`
	Description  string       `json:"description" db:"description"`
	AppliedAt    *time.Time   `json:"applied_at" db:"applied_at"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// Advertising is a published service offer.
type Advertising struct {
	ID           int64        `json:"id" db:"id"`
	Slug         string       `json:"slug" db:"slug"`
	Category     Category     `json:"category" db:"category"`
	CardTemplate CardTemplate `json:"card_template" db:"card_template"`
	Mode         TaskMode     `json:"mode" db:"mode"`
	Title        string       `json:"title" db:"title"`
	Description  string       `json:"description" db:"description"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// Activity is a logged touchpoint such as a call or a meeting.
type Activity struct {
	ID           int64      `json:"id" db:"id"`
	Slug         string     `json:"slug" db:"slug"`
	Category     Category   `json:"category" db:"category"`
	Mode         TaskMode   `json:"mode" db:"mode"`
	Title        string     `json:"title" db:"title"`
	Description  string     `json:"description" db:"description"`
	ActivityType string     `json:"activity_type" db:"activity_type"`
	HappenedAt   *time.Time `json:"happened_at" db:"happened_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}
