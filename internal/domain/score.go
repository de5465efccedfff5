package domain

// LeadContext is what the scoring service sees of a request.
type LeadContext struct {
	ClientName  string `json:"clientName"`
	Company     string `json:"company,omitempty"`
	ServiceName string `json:"serviceName"`
	Budget      string `json:"budget,omitempty"`
	Message     string `json:"message,omitempty"`
}

// ScoreResult is the response contract of the AI scoring collaborator.
type ScoreResult struct {
	Priority   string  `json:"priority" dynamodbav:"priority"`
	Category   string  `json:"category" dynamodbav:"category"`
	Reason     string  `json:"reason" dynamodbav:"reason"`
	Confidence float64 `json:"confidence" dynamodbav:"confidence"`
}

func (r *ServiceRequest) LeadContext() LeadContext {
	return LeadContext{
		ClientName:  r.ClientName,
		Company:     r.Company,
		ServiceName: r.ServiceName,
		Budget:      r.Budget,
		Message:     r.Message,
	}
}
