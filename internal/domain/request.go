package domain

import "time"

type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestVerified RequestStatus = "VERIFIED"
	RequestRejected RequestStatus = "REJECTED"
)

// ServiceRequest is a lead submitted through the public intake form.
type ServiceRequest struct {
	RequestID   string        `json:"id" dynamodbav:"request_id"`
	ClientName  string        `json:"client_name" dynamodbav:"client_name"`
	ClientEmail string        `json:"client_email" dynamodbav:"client_email"`
	Company     string        `json:"company,omitempty" dynamodbav:"company"`
	Phone       string        `json:"phone,omitempty" dynamodbav:"phone"`
	ServiceName string        `json:"service_name" dynamodbav:"service_name"`
	Budget      string        `json:"budget,omitempty" dynamodbav:"budget"`
	Message     string        `json:"message,omitempty" dynamodbav:"message"`
	Status      RequestStatus `json:"status" dynamodbav:"status"`
	Note        string        `json:"note,omitempty" dynamodbav:"note"`
	ReviewedBy  string        `json:"reviewed_by,omitempty" dynamodbav:"reviewed_by"`
	Score       *ScoreResult  `json:"score,omitempty" dynamodbav:"score"`
	CreatedAt   time.Time     `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time     `json:"updated" dynamodbav:"updated_at"`
}

// LeadInput is the public intake form body.
type LeadInput struct {
	ClientName  string `json:"client_name" validate:"required,max=120"`
	ClientEmail string `json:"client_email" validate:"required,email"`
	Company     string `json:"company" validate:"max=120"`
	Phone       string `json:"phone" validate:"omitempty,max=32"`
	ServiceName string `json:"service_name" validate:"required,max=120"`
	Budget      string `json:"budget" validate:"max=64"`
	Message     string `json:"message" validate:"max=4000"`
}

// ReviewInput is the admin body for approve / reject.
type ReviewInput struct {
	Note string `json:"note" validate:"max=2000"`
}
