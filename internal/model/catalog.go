package model

import "encoding/json"

// Course is a course as listed by the LMS API. Teacher and category come
// back either as ids or as nested objects depending on the endpoint, so
// they stay raw.
type Course struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Slug        string          `json:"slug,omitempty"`
	Description string          `json:"description,omitempty"`
	Price       json.Number     `json:"price,omitempty"`
	Teacher     json.RawMessage `json:"teacher,omitempty"`
	Category    json.RawMessage `json:"category,omitempty"`
	IsPublished bool            `json:"is_published"`
	CreatedAt   string          `json:"created_at,omitempty"`
}

type Note struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Price       json.Number     `json:"price,omitempty"`
	Seller      json.RawMessage `json:"seller,omitempty"`
	File        string          `json:"file,omitempty"`
	Subject     string          `json:"subject,omitempty"`
	IsApproved  bool            `json:"is_approved"`
	CreatedAt   string          `json:"created_at,omitempty"`
}

type NoteOrder struct {
	ID        int64           `json:"id"`
	Note      json.RawMessage `json:"note,omitempty"`
	Buyer     json.RawMessage `json:"buyer,omitempty"`
	Amount    json.Number     `json:"amount,omitempty"`
	Status    string          `json:"status"`
	CreatedAt string          `json:"created_at,omitempty"`
}
